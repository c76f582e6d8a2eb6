package journal

import "embed"

// sqlSchemas embeds the SQL migration files so the journal schema travels
// with the binary.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS
