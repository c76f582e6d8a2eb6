package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
)

// LatestMigrationVersion is the latest migration version of the journal
// database, used to implement downgrade protection.
//
// NOTE: This MUST be updated when a new migration is added.
const LatestMigrationVersion uint = 2

// ErrMigrationDowngrade is returned when the database on disk is newer than
// the migrations known to this binary.
var ErrMigrationDowngrade = errors.New("journal database downgrade detected")

// MigrationTarget selects which version to migrate the database to.
type MigrationTarget func(mig *migrate.Migrate) error

var (
	// TargetLatest migrates to the newest version available.
	TargetLatest = func(mig *migrate.Migrate) error {
		return mig.Up()
	}

	// TargetVersion returns a MigrationTarget pinned to one version.
	TargetVersion = func(version uint) MigrationTarget {
		return func(mig *migrate.Migrate) error {
			return mig.Migrate(version)
		}
	}
)

// migrationLogger adapts slog.Logger to the migrate.Logger interface.
type migrationLogger struct {
	log *slog.Logger
}

// Printf implements the migrate.Logger interface.
func (m *migrationLogger) Printf(format string, v ...any) {
	m.log.Info(fmt.Sprintf(strings.TrimRight(format, "\n"), v...))
}

// Verbose returns true when verbose logging is enabled.
func (m *migrationLogger) Verbose() bool {
	return true
}

// executeMigrations brings the journal schema to the given target using the
// migration files embedded in the binary.
func (s *Store) executeMigrations(target MigrationTarget) error {
	driver, err := sqlite_migrate.WithInstance(
		s.db, &sqlite_migrate.Config{},
	)
	if err != nil {
		return fmt.Errorf("error creating sqlite migration "+
			"driver: %w", err)
	}

	source, err := httpfs.New(http.FS(sqlSchemas), "migrations")
	if err != nil {
		return err
	}

	mig, err := migrate.NewWithInstance(
		"migrations", source, "sqlite", driver,
	)
	if err != nil {
		return err
	}
	mig.Log = &migrationLogger{log: s.log}

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine current journal "+
			"version: %w", err)
	}

	// A dirty database means an earlier migration did not complete; that
	// needs manual intervention, not another attempt.
	if dirty {
		return fmt.Errorf("journal database is in a dirty state at "+
			"version %v, manual intervention required", version)
	}

	// Down migrations may drop data, so refuse to run against a database
	// newer than this binary knows about.
	if version > LatestMigrationVersion {
		return fmt.Errorf("%w: db_version=%v, "+
			"latest_migration_version=%v", ErrMigrationDowngrade,
			version, LatestMigrationVersion)
	}

	s.log.InfoContext(context.Background(),
		"Applying journal migrations",
		"current_version", version,
		"latest_version", LatestMigrationVersion,
	)

	if err := target(mig); err != nil && !errors.Is(
		err, migrate.ErrNoChange,
	) {
		return err
	}

	return nil
}
