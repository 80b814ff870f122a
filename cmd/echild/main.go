package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/echild-lab/echild/internal/config"
	"github.com/echild-lab/echild/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "echild",
		Short: "echild - language acquisition parameter sweeps",
		Long: `echild simulates populations of child language learners (echildren).

For every target language and noise level it runs many independent
echildren, each consuming a stream of sentences from the CoLAG domain,
and records the grammar every learner converges to.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Sweep config file (default ~/.echild/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newRunCmd(),
		newClassifyCmd(),
		newSummaryCmd(),
		newMCPServerCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// loadConfig resolves the sweep configuration for cmd: the config file and
// environment first, then the global --log-level flag.
func loadConfig(cmd *cobra.Command) (*config.SweepConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// newLogger writes operational logs to the command's stderr, as JSON lines
// when --json is set.
func newLogger(cmd *cobra.Command, level string) *slog.Logger {
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return logging.NewJSONLogger(level, cmd.ErrOrStderr())
	}
	return logging.NewLogger(level, cmd.ErrOrStderr())
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
