package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/symphony/internal/classify"
	"github.com/Iron-Ham/symphony/internal/plan"
	"github.com/Iron-Ham/symphony/internal/scheduler"
	"github.com/Iron-Ham/symphony/internal/state"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan>",
	Short: "Validate a plan and print its phases",
	Long: `Extract the symphony-phases block from a Markdown plan and validate it:
field types, phase id format, complexity values, unknown or self
references and dependency cycles. Every problem is reported with its
field path.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var findPlanCmd = &cobra.Command{
	Use:   "find-plan [dir]",
	Short: "Print the newest plan containing a symphony-phases block",
	Long: `Search dir (default plans.dir, usually ~/.claude/plans) recursively for
Markdown files with a symphony-phases block and print the most recently
modified one. Hidden directories and node_modules are skipped; plans.include
and plans.exclude globs narrow the candidates.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFindPlan,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <message...>",
	Short: "Classify an error message",
	Long: `Print the failure category of an error message as JSON. With --rules,
print the classification table instead, in the order rules are tried.`,
	RunE: runClassify,
}

var classifyRules bool

var levelsCmd = &cobra.Command{
	Use:   "levels <state|plan>",
	Short: "Show execution waves",
	Long: `Group phases into waves: every phase of a wave depends only on phases of
earlier waves, so a wave may run in parallel. Accepts a state document or
a Markdown plan.`,
	Args: cobra.ExactArgs(1),
	RunE: runLevels,
}

var levelsFormat string

func registerPlanCmds(parent *cobra.Command) {
	levelsCmd.Flags().StringVarP(&levelsFormat, "format", "f", formatTable, "output format (table, json, yaml)")
	classifyCmd.Flags().BoolVar(&classifyRules, "rules", false, "list the classification rules")
	parent.AddCommand(validateCmd, findPlanCmd, classifyCmd, levelsCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	if classifyRules {
		renderRules(cmd.OutOrStdout(), classify.Rules())
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("requires an error message (or --rules)")
	}
	return printJSON(cmd, classify.Classify(strings.Join(args, " ")))
}

type validateOutput struct {
	Valid      bool         `json:"valid"`
	Path       string       `json:"path"`
	PhaseCount int          `json:"phaseCount"`
	Phases     []plan.Phase `json:"phases"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	phases, err := plan.ParseFile(args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, validateOutput{
		Valid:      true,
		Path:       args[0],
		PhaseCount: len(phases),
		Phases:     phases,
	})
}

func runFindPlan(cmd *cobra.Command, args []string) error {
	root := rt.cfg.Plans.PlanDir()
	if len(args) > 0 {
		root = args[0]
	}
	finder, err := plan.NewFinder(rt.cfg.Plans.Include, rt.cfg.Plans.Exclude)
	if err != nil {
		return err
	}
	path, err := finder.Latest(root)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"path": path})
}

type levelsOutput struct {
	Levels [][]string `json:"levels" yaml:"levels"`
	// Cyclic lists phases that belong to no wave because of a cycle.
	Cyclic []string `json:"cyclic,omitempty" yaml:"cyclic,omitempty"`
}

func runLevels(cmd *cobra.Command, args []string) error {
	levels, cyclic, err := loadLevels(args[0])
	if err != nil {
		return err
	}
	out := levelsOutput{Levels: levels, Cyclic: cyclic}

	switch levelsFormat {
	case formatJSON:
		return printJSON(cmd, out)
	case formatYAML:
		return printYAML(cmd, out)
	case formatTable:
		renderLevels(cmd.OutOrStdout(), out)
		return nil
	}
	return fmt.Errorf("unknown format %q (valid: %s, %s, %s)", levelsFormat, formatTable, formatJSON, formatYAML)
}

// loadLevels computes waves from a plan when the file has a phases block,
// otherwise from a state document.
func loadLevels(path string) ([][]string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if plan.HasBlock(data) {
		phases, err := plan.Parse(data)
		if err != nil {
			return nil, nil, err
		}
		levels, cyclic := plan.Graph(phases).Levels()
		return levels, cyclic, nil
	}
	doc, err := state.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	levels, cyclic := scheduler.New(doc).Levels()
	return levels, cyclic, nil
}
