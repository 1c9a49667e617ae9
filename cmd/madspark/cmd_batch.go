package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"madspark/internal/workflow"
)

var (
	batchAsync       bool
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch [file.yaml]",
	Short: "Process a YAML file of topics through the pipeline",
	Long: `Reads a YAML list of work items and runs each through the pipeline with
bounded concurrency.

File format:
  - topic: "urban farming"
    context: "apartment-scale, low-cost"
    preset: creative
    num_candidates: 2
    tags: [food, sustainability]`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&batchAsync, "async", true, "Run items with the async coordinator")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "Max concurrent items (default 3 async, 1 sync)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}
	var items []workflow.JobItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to parse batch file %s: %w", args[0], err)
	}
	if len(items) == 0 {
		return fmt.Errorf("batch file %s contains no items", args[0])
	}

	logger.Info("starting batch run",
		zap.Int("items", len(items)),
		zap.Bool("async", batchAsync))

	coordinator, pool, cleanup, err := buildCoordinator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer pool.Shutdown()

	runner := workflow.NewRunner(coordinator, batchAsync, batchConcurrency)
	summary, err := runner.Run(ctx, items)
	if summary != nil {
		printSummary(summary)
	}
	return err
}

func printSummary(summary *workflow.JobSummary) {
	fmt.Printf("\nBatch finished in %v: %d/%d completed, %d failed\n\n",
		summary.Elapsed.Round(time.Millisecond), summary.Completed, summary.Total, summary.Failed)

	for _, item := range summary.Items {
		fmt.Printf("- %q: %s (%v)", item.Item.Topic, item.Status, item.ProcessingTime.Round(time.Millisecond))
		if item.Error != "" {
			fmt.Printf(" error: %s", item.Error)
		}
		if item.Result != nil && len(item.Result.Candidates) > 0 {
			top := item.Result.Candidates[0]
			fmt.Printf(" top: %s (%.1f)", top.OriginalIdea.Title, top.ImprovedScore)
		}
		fmt.Println()
	}
}
