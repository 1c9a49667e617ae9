package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"madspark/internal/config"
	"madspark/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	mockMode   bool

	// Logger
	logger *zap.Logger

	// Resolved configuration, available to every subcommand after PreRun.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "madspark",
	Short: "madspark - multi-agent idea generation and refinement",
	Long: `madspark runs a topic through a multi-agent pipeline: an Idea Generator
proposes candidates, a Critic scores them, an Advocate and a Skeptic argue
both sides, and an Improver rewrites the best ideas before a final
re-evaluation ranks them.

Providers are routed automatically: a local Ollama-compatible model is
preferred when healthy, with cloud fallback. Set MADSPARK_MODE=mock to run
fully offline with deterministic output.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if mockMode {
			cfg.Mode = config.ModeMock
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&mockMode, "mock", false, "Run fully offline with the deterministic mock provider")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(cacheCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling...")
		cancel()
	}()
	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
