package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/jingkaihe/whatif/internal/errx"
	"github.com/jingkaihe/whatif/pkg/api"
	"github.com/jingkaihe/whatif/pkg/history"
	"github.com/jingkaihe/whatif/pkg/journal"
	"github.com/jingkaihe/whatif/pkg/policy"
	"github.com/jingkaihe/whatif/pkg/tracer"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command with its filesystem changes blocked and listed",
	Long: `Run a command under syscall tracing. Every filesystem mutation is
blocked and fed a forged success result, so the command believes its
changes happened. Afterwards the blocked operations are listed and you
choose whether to rerun the command for real.

Policy rules (--policy, --allow, --deny) decide operations without
prompting. A rule matches on effect labels and a path glob; the first
match wins. Operations no rule decides are blocked and listed.`,
	Example: `  whatif run -- rm -rf build
  whatif run --allow '/tmp/*' -- make install
  whatif run --policy ci.yaml --deny-all --record run.journal -- ./setup.sh`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("policy", "", "Policy file with decision rules (YAML)")
	runCmd.Flags().StringSlice("allow", nil, "Allow operations on paths matching glob (can be repeated)")
	runCmd.Flags().StringSlice("deny", nil, "Deny operations on paths matching glob (can be repeated)")
	runCmd.Flags().String("record", "", "Write a journal of decided operations to this path")
	runCmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	runCmd.Flags().Bool("deny-all", false, "Deny undecided operations without prompting for a rerun")

	viper.BindPFlag("run.policy", runCmd.Flags().Lookup("policy"))
	viper.BindPFlag("run.record", runCmd.Flags().Lookup("record"))
	viper.BindPFlag("run.no-history", runCmd.Flags().Lookup("no-history"))
	viper.BindPFlag("run.deny-all", runCmd.Flags().Lookup("deny-all"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	policyPath, _ := cmd.Flags().GetString("policy")
	allowGlobs, _ := cmd.Flags().GetStringSlice("allow")
	denyGlobs, _ := cmd.Flags().GetStringSlice("deny")
	recordPath, _ := cmd.Flags().GetString("record")
	noHistory, _ := cmd.Flags().GetBool("no-history")
	denyAll, _ := cmd.Flags().GetBool("deny-all")

	cfg := api.DefaultRunConfig().Merge(&api.RunConfig{
		Command:    args,
		RecordPath: recordPath,
		NoHistory:  noHistory,
		DenyAll:    denyAll,
	})

	// Command-line globs take precedence over file rules.
	for _, glob := range allowGlobs {
		cfg.Policy.Rules = append(cfg.Policy.Rules, api.DecisionRule{Path: glob, Action: "allow"})
	}
	for _, glob := range denyGlobs {
		cfg.Policy.Rules = append(cfg.Policy.Rules, api.DecisionRule{Path: glob, Action: "deny"})
	}
	if policyPath != "" {
		filePolicy, err := loadPolicyFile(policyPath)
		if err != nil {
			return err
		}
		cfg.Policy.Rules = append(cfg.Policy.Rules, filePolicy.Rules...)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	engine, err := policy.NewEngine(cfg.Policy)
	if err != nil {
		return errx.Wrap(ErrBuildPolicy, err)
	}

	// Without a terminal there is nobody to approve a rerun.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		cfg.DenyAll = true
	}

	runID := uuid.New().String()
	startedAt := time.Now()
	display := api.JoinCommand(cfg.Command)

	mediator := newTraceMediator(engine, "")
	tr := tracer.New(mediator, tracer.Options{
		OnError: func(pid int, name string, err error) {
			fmt.Fprintf(os.Stderr, "whatif: blocked uninterpretable %s from pid %d: %v\n", name, pid, err)
		},
	})

	exitCode, err := tr.Run(cfg.Command)
	if err != nil {
		return errx.Wrap(ErrTraceFailed, err)
	}

	if cfg.RecordPath != "" {
		if err := writeJournal(cfg.RecordPath, runID, cfg.Command, mediator.events); err != nil {
			return err
		}
	}
	if !cfg.NoHistory {
		saveHistory(history.Run{
			ID:         runID,
			Command:    cfg.Command,
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
			ExitCode:   exitCode,
		}, mediator.events)
	}

	for _, op := range mediator.ruleDenied {
		fmt.Printf("denied by policy: %s\n", op.String())
	}

	if len(mediator.prompted) == 0 {
		if len(mediator.ruleDenied) == 0 {
			fmt.Printf("%s has not tried to change the file system.\n", display)
		}
		return commandExit(exitCode)
	}

	fmt.Printf("whatif has prevented %s from performing %d file system operations:\n\n",
		display, len(mediator.prompted))
	for _, op := range mediator.prompted {
		fmt.Printf("  %s\n", op.String())
	}

	if cfg.DenyAll {
		return commandExit(exitCode)
	}

	fmt.Printf("\nDo you want to rerun %s and permit these operations? [y/N] ", display)
	if !promptYes(os.Stdin) {
		return nil
	}
	return rerun(cfg.Command)
}

// loadPolicyFile parses a YAML rules file.
func loadPolicyFile(path string) (*api.PolicyConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errx.Wrap(api.ErrReadPolicyFile, err)
	}
	var cfg api.PolicyConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errx.Wrap(api.ErrParsePolicyFile, err)
	}
	return &cfg, nil
}

func writeJournal(path, runID string, command []string, events []api.Event) error {
	w, err := journal.Create(path, runID, command)
	if err != nil {
		return errx.Wrap(ErrCreateJournal, err)
	}
	defer w.Close()
	for _, ev := range events {
		if err := w.Append(ev); err != nil {
			return errx.Wrap(ErrWriteJournal, err)
		}
	}
	return nil
}

// saveHistory records the run, warning instead of failing: a broken history
// database must not change the traced command's outcome.
func saveHistory(run history.Run, events []api.Event) {
	store, err := history.Open(history.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", errx.Wrap(ErrOpenHistory, err))
		return
	}
	defer store.Close()
	if err := store.SaveRun(run, events); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", errx.Wrap(ErrSaveHistory, err))
	}
}

func promptYes(in *os.File) bool {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// rerun executes the command for real, untraced, wired to the terminal.
func rerun(command []string) error {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return commandExit(exitErr.ExitCode())
		}
		return errx.Wrap(ErrRerunFailed, err)
	}
	return nil
}
