package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/symphony/internal/statusline"
)

var statuslineCmd = &cobra.Command{
	Use:   "statusline [state]",
	Short: "Print a one-line progress summary",
	Long: `Print a one-line progress summary of a state document, for shell prompts
and editor status bars:

  [████░░░░░░] 4/10 (1!) | setup-db, auth-middleware

Prints nothing when the document is missing or unreadable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if line := newStatusRenderer(cmd).RenderFile(statePath(args, 0)); line != "" {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [state]",
	Short: "Reprint the status line whenever the document changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(statePath(args, 0))
		if err != nil {
			return err
		}
		return watchStatus(cmd.Context(), path, newStatusRenderer(cmd), cmd.OutOrStdout())
	},
}

func registerViewCmds(parent *cobra.Command) {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", formatTable, "output format (table, json, yaml)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "minimum level (debug, info, warn, error)")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "only entries for this phase")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "only entries for this run id")
	logsCmd.Flags().StringVar(&logsOperation, "operation", "", "only entries for this operation (init, start, complete, fail, resolve, abort)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "only entries whose message contains this text")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "only entries newer than this duration (e.g. 1h, 30m)")
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 50, "number of most recent entries to show (0 for all)")

	parent.AddCommand(showCmd, statuslineCmd, watchCmd, decideCmd, logsCmd)
}

func newStatusRenderer(cmd *cobra.Command) *statusline.Renderer {
	return statusline.New(statusline.Options{
		BarWidth:   rt.cfg.UI.StatusBarWidth,
		MaxRunning: rt.cfg.UI.RunningListWidth,
		Color:      colorEnabled(rt.cfg.UI.Color, cmd.OutOrStdout()),
	})
}

// watchStatus prints the status line for path, then again each time it
// changes, until ctx is done. The parent directory is watched because
// saves replace the document by rename.
func watchStatus(ctx context.Context, path string, r *statusline.Renderer, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	last := ""
	render := func() {
		line := r.RenderFile(path)
		if line != "" && line != last {
			fmt.Fprintln(w, line)
		}
		last = line
	}
	render()

	// Editors and atomic saves emit bursts of events; coalesce them.
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			debounce.Reset(50 * time.Millisecond)

		case <-debounce.C:
			render()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			rt.logger.Warn("watch error", "path", path, "error", err)
		}
	}
}
