package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/orchestrator"
	"github.com/Iron-Ham/symphony/internal/state"
)

var initCmd = &cobra.Command{
	Use:   "init <plan>",
	Short: "Create a state document from a plan",
	Long: `Validate the symphony-phases block of a Markdown plan and write a new
state document with every phase pending. The retry policy comes from the
retry section of the configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

var readyCmd = &cobra.Command{
	Use:   "ready <state>",
	Short: "List phases that can start now",
	Args:  cobra.ExactArgs(1),
	RunE:  runReady,
}

var startCmd = &cobra.Command{
	Use:   "start <state> <phase>",
	Short: "Record that a phase started running",
	Args:  cobra.ExactArgs(2),
	RunE:  runStart,
}

var completeCmd = &cobra.Command{
	Use:   "complete <state> <phase> [artifacts-json]",
	Short: "Mark a phase complete",
	Long: `Mark a phase complete, replacing its artifacts. Artifacts are a JSON
array of {"type", "path", "content", "metadata"} objects; pass "-" to read
them from stdin.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runComplete,
}

var failCmd = &cobra.Command{
	Use:     "fail <state> <phase> <message...>",
	Aliases: []string{"retry"},
	Short:   "Report a phase failure",
	Long: `Classify a failure and route the phase: retryable errors within the retry
budget are scheduled with backoff, anything else waits for a decision
(see "symphony resolve" and "symphony decide").

  --force      retry regardless of category and budget
  --no-retry   ask for a decision straight away
  --fail-fast  fail the phase and block its dependents without asking`,
	Args: cobra.MinimumNArgs(3),
	RunE: runFail,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <state> <phase> <decision>",
	Short: "Resolve a pending decision",
	Long: `Apply a decision to a phase awaiting one. Decisions:

  retry_once_more  set the phase ready for one more attempt
  skip_phase       mark it complete so dependents can run
  abort_branch     abort it and block everything downstream
  abort_all        abort every unfinished phase`,
	Args: cobra.ExactArgs(3),
	RunE: runResolve,
}

var abortCmd = &cobra.Command{
	Use:   "abort <state> <phase>",
	Short: "Abort a phase and block its dependents",
	Args:  cobra.ExactArgs(2),
	RunE:  runAbort,
}

var (
	initOutput        string
	initForce         bool
	includeDueRetries bool
	failForce         bool
	failNoRetry       bool
	failFast          bool
)

func registerStateCmds(parent *cobra.Command) {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "", "state document path (default from state.default_path)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing state document")
	readyCmd.Flags().BoolVar(&includeDueRetries, "include-due-retries", false, "also list retrying phases whose backoff has elapsed")
	failCmd.Flags().BoolVar(&failForce, "force", false, "retry regardless of category and budget")
	failCmd.Flags().BoolVar(&failNoRetry, "no-retry", false, "skip the retry and ask for a decision")
	failCmd.Flags().BoolVar(&failFast, "fail-fast", false, "fail the phase without asking")

	parent.AddCommand(initCmd, readyCmd, startCmd, completeCmd, failCmd, resolveCmd, abortCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	out := initOutput
	if out == "" {
		out = rt.cfg.State.DefaultPath
	}
	policy := retryPolicy(rt.cfg.Retry)
	res, err := rt.orch.Init(cmd.Context(), orchestrator.InitRequest{
		PlanPath:   args[0],
		OutputPath: out,
		Policy:     &policy,
		Force:      initForce,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runReady(cmd *cobra.Command, args []string) error {
	phases, err := rt.orch.GetReady(cmd.Context(), args[0], orchestrator.ReadyOptions{
		IncludeDueRetries: includeDueRetries,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, phases)
}

func runStart(cmd *cobra.Command, args []string) error {
	res, err := rt.orch.Start(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runComplete(cmd *cobra.Command, args []string) error {
	var artifacts []state.Artifact
	if len(args) == 3 {
		var err error
		artifacts, err = parseArtifacts(args[2], cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	res, err := rt.orch.MarkComplete(cmd.Context(), args[0], args[1], artifacts)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

// parseArtifacts decodes a JSON artifact array given inline or, for "-",
// on stdin.
func parseArtifacts(arg string, stdin io.Reader) ([]state.Artifact, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("read artifacts from stdin: %w", err)
		}
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var artifacts []state.Artifact
	if err := json.Unmarshal(data, &artifacts); err != nil {
		return nil, errors.NewValidationError("artifacts must be a JSON array: " + err.Error()).WithField("artifacts")
	}
	return artifacts, nil
}

func runFail(cmd *cobra.Command, args []string) error {
	res, err := rt.orch.MarkFailed(cmd.Context(), orchestrator.FailRequest{
		StatePath: args[0],
		PhaseID:   args[1],
		Error:     strings.Join(args[2:], " "),
		Force:     failForce,
		NoRetry:   failNoRetry,
		Bypass:    failFast,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runResolve(cmd *cobra.Command, args []string) error {
	res, err := rt.orch.ResolveDecision(cmd.Context(), args[0], args[1], state.Decision(args[2]))
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runAbort(cmd *cobra.Command, args []string) error {
	res, err := rt.orch.Abort(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
