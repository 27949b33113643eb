package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/symphony/internal/classify"
	"github.com/Iron-Ham/symphony/internal/filelock"
	"github.com/Iron-Ham/symphony/internal/state"
	"github.com/Iron-Ham/symphony/internal/tui/styles"
	"github.com/Iron-Ham/symphony/internal/util"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var showCmd = &cobra.Command{
	Use:   "show <state>",
	Short: "Summarize a state document",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var showFormat string

func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func runShow(cmd *cobra.Command, args []string) error {
	doc, err := state.Load(args[0])
	if err != nil {
		return err
	}
	switch showFormat {
	case formatJSON:
		data, err := state.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	case formatYAML:
		return printYAML(cmd, doc)
	case formatTable:
		// The holder is advisory; an unreadable lock file is not worth failing for.
		holder, _ := filelock.Holder(args[0])
		renderDocument(cmd.OutOrStdout(), doc, holder)
		return nil
	}
	return fmt.Errorf("unknown format %q (valid: %s, %s, %s)", showFormat, formatTable, formatJSON, formatYAML)
}

// renderDocument prints doc as a summary and phase table. lockHolder is the
// pid holding the document's lock, or 0.
func renderDocument(w io.Writer, doc *state.Document, lockHolder int) {
	fmt.Fprintf(w, "Run:     %s\n", doc.RunID)
	fmt.Fprintf(w, "Plan:    %s\n", doc.PlanPath)
	fmt.Fprintf(w, "Status:  %s (%d/%d complete, %d failed)\n",
		doc.Status, doc.CompletedCount, len(doc.Plan.Phases), doc.FailedCount)
	if doc.UpdatedAt != nil {
		fmt.Fprintf(w, "Updated: %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if lockHolder > 0 {
		fmt.Fprintf(w, "Lock:    held by pid %d\n", lockHolder)
	}
	fmt.Fprintln(w)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Retries", "Artifacts", "Error"})
	for _, id := range doc.PhaseIDs() {
		def, _ := doc.Definition(id)
		ps := doc.Phases[id]
		tw.AppendRow(table.Row{
			id,
			util.TruncateString(def.Title, 32),
			styles.StatusIcon(ps.Status) + " " + string(ps.Status),
			ps.RetryCount,
			len(ps.Artifacts),
			util.TruncateString(firstLine(ps.Error), 40),
		})
	}
	tw.Render()

	if len(doc.PendingDecisions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Pending decisions:")
		for _, pd := range doc.PendingDecisions {
			fmt.Fprintf(w, "  %s (%s, %d retries): %s\n",
				pd.PhaseID, pd.ErrorCategory, pd.RetryCount, util.TruncateString(firstLine(pd.Error), 60))
		}
	}
}

func renderLevels(w io.Writer, out levelsOutput) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Wave", "Phases"})
	for i, level := range out.Levels {
		tw.AppendRow(table.Row{i + 1, strings.Join(level, ", ")})
	}
	if len(out.Cyclic) > 0 {
		tw.AppendFooter(table.Row{"cycle", strings.Join(out.Cyclic, ", ")})
	}
	tw.Render()
}

func renderRules(w io.Writer, rules []classify.Rule) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Category", "Pattern", "Case-sensitive"})
	for i, r := range rules {
		tw.AppendRow(table.Row{i + 1, r.Category, r.Pattern, r.CaseSensitive})
	}
	tw.Render()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
