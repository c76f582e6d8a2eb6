package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/roasbeef/troupe/internal/journal"
	"github.com/spf13/cobra"
)

var (
	// listLimit caps how many events the list subcommand prints.
	listLimit int
)

// journalCmd groups the lifecycle journal subcommands.
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the actor lifecycle journal",
}

// journalListCmd prints the most recent lifecycle events.
var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent lifecycle events, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.ListEvents(cmd.Context(), listLimit)
		if err != nil {
			return err
		}

		return printEvents(cmd, events)
	},
}

// journalActorCmd prints the full history of a single actor.
var journalActorCmd = &cobra.Command{
	Use:   "actor <actor-id>",
	Short: "Show the lifecycle history of one actor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actorID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid actor id %q: %w",
				args[0], err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.EventsForActor(cmd.Context(), actorID)
		if err != nil {
			return err
		}

		return printEvents(cmd, events)
	},
}

// printEvents renders events as an aligned table.
func printEvents(cmd *cobra.Command, events []journal.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no events")

		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tID\tKIND\tREASON")

	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			ev.OccurredAt.Format(time.RFC3339),
			ev.ActorName, ev.ActorID, ev.Kind, ev.Reason,
		)
	}

	return w.Flush()
}

func init() {
	journalListCmd.Flags().IntVar(
		&listLimit, "limit", 50,
		"Maximum number of events to print",
	)

	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalActorCmd)
}
