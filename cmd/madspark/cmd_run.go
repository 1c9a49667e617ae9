package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"madspark/internal/batch"
	"madspark/internal/config"
	"madspark/internal/logging"
	"madspark/internal/router"
	"madspark/internal/types"
	"madspark/internal/workflow"
)

var (
	runContext  string
	runTop      int
	runIdeas    int
	runPreset   string
	runAsync    bool
	runTimeout  int
	runFiles    []string
	runURLs     []string
	runProvider string
	runMultiDim bool
	runLogic    bool
)

var runCmd = &cobra.Command{
	Use:   "run [topic]",
	Short: "Run the idea pipeline for a single topic",
	Long: `Runs the full pipeline for one topic and prints the ranked candidates.

Example:
  madspark run "urban farming" --context "apartment-scale, low-cost" --top 2 --preset creative --async`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringVarP(&runContext, "context", "c", "", "Additional context and constraints")
	runCmd.Flags().IntVar(&runTop, "top", 0, "Number of top candidates to keep (default from config)")
	runCmd.Flags().IntVar(&runIdeas, "ideas", 10, "Number of ideas to generate (1-20)")
	runCmd.Flags().StringVar(&runPreset, "preset", config.PresetBalanced,
		fmt.Sprintf("Temperature preset (%s)", strings.Join(config.PresetNames(), ", ")))
	runCmd.Flags().BoolVar(&runAsync, "async", false, "Run independent analysis stages concurrently")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "Workflow timeout in seconds (60-3600)")
	runCmd.Flags().StringSliceVar(&runFiles, "file", nil, "Local file to attach (repeatable, max 20)")
	runCmd.Flags().StringSliceVar(&runURLs, "url", nil, "URL to attach (repeatable, max 10)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Force a provider (local or cloud)")
	runCmd.Flags().BoolVar(&runMultiDim, "enhanced-reasoning", false, "Score candidates across seven weighted dimensions")
	runCmd.Flags().BoolVar(&runLogic, "logical-inference", false, "Run logical inference analysis on candidates")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	topic := strings.Join(args, " ")
	logger.Info("starting workflow",
		zap.String("topic", topic),
		zap.Bool("async", runAsync),
		zap.String("preset", runPreset))

	coordinator, pool, cleanup, err := buildCoordinator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer pool.Shutdown()

	req := workflow.Request{
		Inputs: types.RequestInputs{
			Topic:           topic,
			Context:         runContext,
			MultimodalFiles: runFiles,
			MultimodalURLs:  runURLs,
		},
		NumIdeas:          runIdeas,
		NumTopCandidates:  runTop,
		Timeout:           time.Duration(runTimeout) * time.Second,
		EnhancedReasoning: runMultiDim,
		LogicalInference:  runLogic,
	}

	var result *workflow.Result
	if runAsync {
		result, err = coordinator.RunAsync(ctx, req)
	} else {
		result, err = coordinator.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

// buildCoordinator assembles the router, worker pool, audit logger, and
// coordinator from the resolved configuration. The returned cleanup closes
// the audit log and router cache.
func buildCoordinator(ctx context.Context) (*workflow.Coordinator, *batch.Pool, func(), error) {
	r, err := router.FromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	router.SetDefault(r)

	audit, err := logging.NewAuditLogger(".")
	if err != nil {
		logger.Warn("audit logging disabled", zap.Error(err))
		audit = nil
	}

	temps, err := config.NewTemperatureManager(runPreset)
	if err != nil {
		return nil, nil, nil, err
	}

	pool := batch.NewPool(cfg.MaxAsyncWorkers)

	coordinator, err := workflow.New(workflow.Options{
		Router: r,
		Config: cfg,
		Temps:  temps,
		Pool:   pool,
		Audit:  audit,
		Progress: func(message string, fraction float64) {
			fmt.Printf("[%3.0f%%] %s\n", fraction*100, message)
		},
	})
	if err != nil {
		pool.Shutdown()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if audit != nil {
			_ = audit.Close()
		}
	}
	return coordinator, pool, cleanup, nil
}

func printResult(result *workflow.Result) {
	fmt.Printf("\nWorkflow %s finished in %v (%d tokens, $%.4f)\n\n",
		result.WorkflowID, result.Elapsed.Round(time.Millisecond), result.TokensUsed, result.TotalCost)

	if len(result.Candidates) == 0 {
		fmt.Println("No candidates produced.")
		return
	}

	for i, c := range result.Candidates {
		fmt.Printf("=== #%d: %s ===\n", i+1, c.OriginalIdea.Title)
		fmt.Printf("Initial score:  %.1f\n", c.InitialScore)
		fmt.Printf("Improved score: %.1f (delta %+.1f)\n", c.ImprovedScore, c.ScoreDelta)
		if c.IsMeaningfulImprovement {
			fmt.Println("Meaningful improvement: yes")
		}
		fmt.Printf("\nImproved idea:\n%s\n\n", c.ImprovedIdea)
		if c.MultiDimEvaluation != nil {
			fmt.Printf("Weighted multi-dim score: %.1f (confidence %.2f)\n\n",
				c.MultiDimEvaluation.WeightedScore, c.MultiDimEvaluation.ConfidenceInterval)
		}
	}
}
