// Package commands implements the troupe CLI command tree.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/roasbeef/troupe/internal/journal"
	"github.com/spf13/cobra"
)

var (
	// dbPath is the path to the lifecycle journal database.
	dbPath string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "troupe",
	Short: "Troupe actor runtime CLI",
	Long: `Troupe CLI inspects the actor lifecycle journal written by the
trouped daemon: which actors were spawned, when they stopped, and why.`,

	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to the journal database (default: ~/.troupe/journal.db)",
	)

	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore opens the journal store from the --db flag or its default
// location, skipping migrations so the read-only CLI never mutates a
// database written by a newer daemon.
func openStore() (*journal.Store, error) {
	path := dbPath
	if path == "" {
		var err error
		path, err = journal.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	store, err := journal.NewStore(&journal.Config{
		DatabaseFileName: path,
		SkipMigrations:   true,
	}, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("unable to open journal at %s: %w",
			path, err)
	}

	return store, nil
}
