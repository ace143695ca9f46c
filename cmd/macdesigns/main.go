// Command macdesigns serves the MAC DESIGNS portfolio behind its access gate and
// carries the operator commands that go with it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"macdesigns/internal/config"
)

var (
	// Global flags
	verbose bool

	// Loaded in PersistentPreRunE
	env    config.Env
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "macdesigns",
	Short: "MAC DESIGNS portfolio server",
	Long: `Serves the portfolio behind a password gate with a three-strike lockout,
and provides commands to inspect and clear lockouts, try the gate from a
terminal, and report engagement.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		env = config.LoadEnv()

		var err error
		logger, err = newLogger(env.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(
		serveCmd,
		initCmd,
		checkCmd,
		lockoutsCmd,
		unlockCmd,
		statsCmd,
	)
}

// newLogger builds the production JSON logger. LOG_LEVEL picks the level and
// --verbose forces debug.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
