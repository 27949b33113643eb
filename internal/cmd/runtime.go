package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/symphony/internal/backoff"
	"github.com/Iron-Ham/symphony/internal/classify"
	"github.com/Iron-Ham/symphony/internal/config"
	"github.com/Iron-Ham/symphony/internal/filelock"
	"github.com/Iron-Ham/symphony/internal/logging"
	"github.com/Iron-Ham/symphony/internal/metrics"
	"github.com/Iron-Ham/symphony/internal/orchestrator"
	"github.com/Iron-Ham/symphony/internal/state"
)

// runtime is what a command needs once configuration has been loaded.
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	orch    *orchestrator.Orchestrator
}

var rt *runtime

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	consoleLevel := cfg.Logging.ConsoleLevel
	if logLevelFlag != "" {
		if !logging.IsValidLevel(logLevelFlag) {
			return fmt.Errorf("invalid --log-level %q (valid: %v)", logLevelFlag, logging.ValidLevels())
		}
		consoleLevel = logLevelFlag
	}

	stderr := cmd.ErrOrStderr()
	opts := logging.Options{
		Level:        cfg.Logging.Level,
		Console:      stderr,
		ConsoleLevel: consoleLevel,
		Color:        colorEnabled(cfg.UI.Color, stderr),
	}
	if cfg.Logging.Enabled {
		opts.Dir = cfg.Logging.LogDir()
		opts.Rotation = logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		}
	}
	logger, err := logging.New(opts)
	if err != nil {
		// The command still works without its log file.
		logger = logging.NewConsoleLogger(stderr, consoleLevel, opts.Color)
		logger.Warn("file logging disabled", "error", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	locker := filelock.New(lockOptions(cfg.Lock), filelock.WithLogger(logger))
	rt = &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		orch: orchestrator.New(
			orchestrator.WithLocker(locker),
			orchestrator.WithLogger(logger),
			orchestrator.WithMetrics(m),
		),
	}
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if rt == nil {
		return nil
	}
	if rt.metrics != nil && rt.cfg.Metrics.TextfilePath != "" {
		if err := rt.metrics.WriteTextfile(rt.cfg.Metrics.TextfilePath); err != nil {
			rt.logger.Warn("failed to write metrics textfile", "path", rt.cfg.Metrics.TextfilePath, "error", err)
		}
	}
	err := rt.logger.Close()
	rt = nil
	return err
}

func lockOptions(c config.LockConfig) filelock.Options {
	return filelock.Options{
		MaxWait:      c.MaxWait(),
		StaleAfter:   c.StaleAfter(),
		InitialDelay: c.InitialDelay(),
		MaxDelay:     c.MaxDelay(),
	}
}

func retryPolicy(c config.RetryConfig) state.RetryPolicy {
	categories := make([]classify.Category, 0, len(c.RetryableCategories))
	for _, name := range c.RetryableCategories {
		categories = append(categories, classify.Category(name))
	}
	return state.RetryPolicy{
		MaxRetries:          c.MaxRetries,
		BackoffStrategy:     backoff.Strategy(c.BackoffStrategy),
		InitialDelayMs:      int64(c.InitialDelayMs),
		MaxDelayMs:          int64(c.MaxDelayMs),
		RetryableCategories: categories,
	}
}

// colorEnabled resolves the ui.color mode for w.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statePath returns args[i], or the configured default document path.
func statePath(args []string, i int) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	return rt.cfg.State.DefaultPath
}
