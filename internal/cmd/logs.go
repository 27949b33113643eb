package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/logging"
	"github.com/Iron-Ham/symphony/internal/tui/styles"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the symphony log",
	Long: `View and filter the JSON log written by mutating commands.

Examples:
  # Last 50 entries
  symphony logs

  # Everything that happened to one phase
  symphony logs --phase auth-middleware -n 0

  # Warnings and errors of the last hour
  symphony logs --level warn --since 1h`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsLevel     string
	logsPhase     string
	logsRun       string
	logsOperation string
	logsGrep      string
	logsSince     string
	logsLimit     int
)

func runLogs(cmd *cobra.Command, _ []string) error {
	filter := logging.Filter{
		Level:     logsLevel,
		RunID:     logsRun,
		Phase:     logsPhase,
		Operation: logsOperation,
		Contains:  logsGrep,
	}
	if logsLevel != "" && !logging.IsValidLevel(logsLevel) {
		return fmt.Errorf("invalid --level %q (valid: %v)", logsLevel, logging.ValidLevels())
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since duration %q: %w", logsSince, err)
		}
		filter.Since = time.Now().Add(-d)
	}

	entries, err := logging.ReadEntries(rt.cfg.Logging.LogDir())
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(cmd.ErrOrStderr(), "No log entries yet.")
		return nil
	}
	if err != nil {
		return err
	}
	entries = filter.Apply(entries)
	if logsLimit > 0 && len(entries) > logsLimit {
		entries = entries[len(entries)-logsLimit:]
	}

	w := cmd.OutOrStdout()
	for _, e := range entries {
		writeEntry(w, e)
	}
	return nil
}

func writeEntry(w io.Writer, e logging.Entry) {
	var sb strings.Builder
	sb.WriteString(styles.Muted.Render("[" + e.Time.Local().Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	level := strings.ToUpper(e.Level)
	sb.WriteString(styles.LevelStyle(level).Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(e.Message)

	var ctx []string
	if e.Operation != "" {
		ctx = append(ctx, "op="+e.Operation)
	}
	if e.Phase != "" {
		ctx = append(ctx, "phase="+e.Phase)
	}
	if attrs := e.AttrString(); attrs != "" {
		ctx = append(ctx, attrs)
	}
	if len(ctx) > 0 {
		sb.WriteString(" ")
		sb.WriteString(styles.Primary.Render(strings.Join(ctx, " ")))
	}
	fmt.Fprintln(w, sb.String())
}
