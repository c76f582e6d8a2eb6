// troupe is the companion CLI for the trouped daemon: it inspects the actor
// lifecycle journal and reports version information.
package main

import (
	"fmt"
	"os"

	"github.com/roasbeef/troupe/cmd/troupe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
