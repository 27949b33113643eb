// Package cmd implements the symphony command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/symphony/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "symphony",
	Short: "Phase orchestration engine",
	Long: `Symphony drives a dependency-ordered plan of phases to completion.

It keeps a JSON state document next to your work, tells executors which
phases are ready, classifies failures, schedules retries with backoff and
asks for a decision when a phase cannot be retried. Every mutating command
is a single locked read-modify-write of that document, so any number of
concurrent processes may share it.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

var logLevelFlag string

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	reportError(rootCmd.ErrOrStderr(), err)
	// PersistentPostRunE is skipped when a command fails.
	if terr := teardown(nil, nil); err == nil {
		err = terr
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/symphony/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "console log level (debug, info, warn, error)")

	registerStateCmds(rootCmd)
	registerPlanCmds(rootCmd)
	registerViewCmds(rootCmd)
}

func initConfig() {
	// A .env in the working directory may carry SYMPHONY_* overrides.
	_ = godotenv.Load()

	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g. SYMPHONY_LOCK_MAX_WAIT_MS for lock.max_wait_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}
