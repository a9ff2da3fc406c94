package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/whatif/internal/errx"
	"github.com/jingkaihe/whatif/pkg/api"
	"github.com/jingkaihe/whatif/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the operations of one run (id prefixes accepted)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <run-id>",
	Short: "Remove one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryRm,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove runs older than a cutoff",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")
	historyPruneCmd.Flags().Duration("older", 30*24*time.Hour, "Remove runs older than this")

	viper.BindPFlag("history.limit", historyListCmd.Flags().Lookup("limit"))

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyRmCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	store, err := history.Open(history.DefaultPath())
	if err != nil {
		return nil, errx.Wrap(ErrOpenHistory, err)
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(limit)
	if err != nil {
		return errx.Wrap(ErrLoadHistory, err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tEXIT\tCOMMAND")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			run.ID[:8],
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.ExitCode,
			api.JoinCommand(run.Command))
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	run, events, err := store.Get(args[0])
	if err != nil {
		return errx.Wrap(ErrLoadHistory, err)
	}

	fmt.Printf("Run:     %s\n", run.ID)
	fmt.Printf("Command: %s\n", api.JoinCommand(run.Command))
	fmt.Printf("Started: %s\n", run.StartedAt.Local().Format(time.RFC1123))
	fmt.Printf("Exit:    %d\n\n", run.ExitCode)
	printEvents(events)
	return nil
}

func runHistoryRm(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	run, _, err := store.Get(args[0])
	if err != nil {
		return errx.Wrap(ErrLoadHistory, err)
	}
	if err := store.Remove(run.ID); err != nil {
		return errx.Wrap(ErrLoadHistory, err)
	}
	fmt.Printf("Removed %s\n", run.ID)
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	older, _ := cmd.Flags().GetDuration("older")
	if older <= 0 {
		return errx.With(ErrBadDuration, ": --older must be positive")
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(time.Now().Add(-older))
	if err != nil {
		return errx.Wrap(ErrLoadHistory, err)
	}
	fmt.Printf("Pruned %d runs\n", n)
	return nil
}

func printEvents(events []api.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tPID\tDECISION\tOPERATION")
	for _, ev := range events {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", ev.Seq, ev.PID, ev.Decision, ev.Operation.String())
	}
	w.Flush()
}
