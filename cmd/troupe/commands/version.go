package commands

import (
	"fmt"

	"github.com/roasbeef/troupe/internal/build"
	"github.com/spf13/cobra"
)

// versionCmd prints version and build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), build.VersionString())

		return nil
	},
}
