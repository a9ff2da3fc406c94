package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/whatif/internal/errx"
	"github.com/jingkaihe/whatif/pkg/api"
	"github.com/jingkaihe/whatif/pkg/journal"
)

var replayCmd = &cobra.Command{
	Use:   "replay <journal-file | run-id>",
	Short: "Print the operations of a recorded run",
	Long: `Print the operations of a recorded run, either from a journal file
written with 'run --record' or from the history database by run id.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	source := args[0]

	if _, err := os.Stat(source); err == nil {
		header, records, err := journal.Read(source)
		if err != nil {
			return err
		}
		events := make([]api.Event, len(records))
		for i, rec := range records {
			events[i] = rec.Event()
		}
		fmt.Printf("Run:     %s\n", header.RunID)
		fmt.Printf("Command: %s\n\n", api.JoinCommand(header.Command))
		printEvents(events)
		return nil
	}

	store, err := openHistory()
	if err != nil {
		return errx.With(ErrReplaySource, ": %s is neither a journal file nor a run id: %w", source, err)
	}
	defer store.Close()

	run, events, err := store.Get(source)
	if err != nil {
		return errx.With(ErrReplaySource, ": %s: %w", source, err)
	}
	fmt.Printf("Run:     %s\n", run.ID)
	fmt.Printf("Command: %s\n\n", api.JoinCommand(run.Command))
	printEvents(events)
	return nil
}
