package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/symphony/internal/state"
	"github.com/Iron-Ham/symphony/internal/tui/decide"
)

var decideCmd = &cobra.Command{
	Use:   "decide <state>",
	Short: "Pick decisions for phases awaiting one, interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecide,
}

func runDecide(cmd *cobra.Command, args []string) error {
	doc, err := state.Load(args[0])
	if err != nil {
		return err
	}
	if len(doc.PendingDecisions) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No pending decisions.")
		return nil
	}

	choice, ok, err := decide.Run(cmd.Context(), doc.PendingDecisions, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	res, err := rt.orch.ResolveDecision(cmd.Context(), args[0], choice.PhaseID, choice.Decision)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
