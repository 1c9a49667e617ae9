package workflow

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"madspark/internal/config"
	"madspark/internal/logging"
	"madspark/internal/types"
)

// Item statuses for the batch job runner.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Default per-mode concurrency bounds.
const (
	DefaultAsyncConcurrency = 3
	DefaultSyncConcurrency  = 1
)

// JobItem is one batch work item.
type JobItem struct {
	Topic             string   `yaml:"topic" json:"topic"`
	Context           string   `yaml:"context" json:"context"`
	Preset            string   `yaml:"preset,omitempty" json:"preset,omitempty"`
	NumCandidates     int      `yaml:"num_candidates,omitempty" json:"num_candidates,omitempty"`
	Tags              []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	EnhancedReasoning bool     `yaml:"enhanced_reasoning,omitempty" json:"enhanced_reasoning,omitempty"`
	LogicalInference  bool     `yaml:"logical_inference,omitempty" json:"logical_inference,omitempty"`
}

// JobResult captures per-item status and timing.
type JobResult struct {
	Item           JobItem       `json:"item"`
	Status         string        `json:"status"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	ProcessingTime time.Duration `json:"processing_time"`
	Result         *Result       `json:"result,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// JobSummary aggregates a whole batch run. Persistence and report formats
// are the caller's concern.
type JobSummary struct {
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
	Items     []JobResult   `json:"items"`
}

// Runner processes batch job items against a coordinator with bounded
// concurrency.
type Runner struct {
	coordinator   *Coordinator
	async         bool
	maxConcurrent int
}

// NewRunner builds a runner. maxConcurrent <= 0 picks the per-mode default
// (3 async, 1 sync).
func NewRunner(c *Coordinator, async bool, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		if async {
			maxConcurrent = DefaultAsyncConcurrency
		} else {
			maxConcurrent = DefaultSyncConcurrency
		}
	}
	return &Runner{coordinator: c, async: async, maxConcurrent: maxConcurrent}
}

// Run processes every item, bounded by the runner's concurrency. Item
// failures are captured per item, never aborting the batch; only context
// cancellation stops the run early.
func (r *Runner) Run(ctx context.Context, items []JobItem) (*JobSummary, error) {
	start := time.Now()
	results := make([]JobResult, len(items))
	for i := range items {
		results[i] = JobResult{Item: items[i], Status: StatusPending}
	}

	sem := semaphore.NewWeighted(int64(r.maxConcurrent))
	var wg sync.WaitGroup

	logging.Workflow("batch run started: %d items, concurrency %d, async=%v",
		len(items), r.maxConcurrent, r.async)

	for i := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(items); j++ {
				results[j].Status = StatusFailed
				results[j].Error = err.Error()
			}
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			r.runItem(ctx, &results[i])
		}(i)
	}
	wg.Wait()

	summary := &JobSummary{
		Total:   len(items),
		Elapsed: time.Since(start),
		Items:   results,
	}
	for _, res := range results {
		switch res.Status {
		case StatusCompleted:
			summary.Completed++
		default:
			summary.Failed++
		}
	}
	logging.Workflow("batch run finished in %v: %d completed, %d failed",
		summary.Elapsed, summary.Completed, summary.Failed)
	return summary, ctx.Err()
}

func (r *Runner) runItem(ctx context.Context, res *JobResult) {
	res.Status = StatusProcessing
	res.StartTime = time.Now()
	defer func() {
		res.EndTime = time.Now()
		res.ProcessingTime = res.EndTime.Sub(res.StartTime)
	}()

	req := Request{
		Inputs: types.RequestInputs{
			Topic:   res.Item.Topic,
			Context: res.Item.Context,
		},
		NumTopCandidates:  res.Item.NumCandidates,
		EnhancedReasoning: res.Item.EnhancedReasoning,
		LogicalInference:  res.Item.LogicalInference,
	}

	coordinator := r.coordinator
	if res.Item.Preset != "" {
		// A per-item preset gets its own coordinator so concurrent items
		// never share a temperature manager.
		temps, err := config.NewTemperatureManager(res.Item.Preset)
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			return
		}
		coordinator = r.coordinator.withTemps(temps)
	}

	var (
		result *Result
		err    error
	)
	if r.async {
		result, err = coordinator.RunAsync(ctx, req)
	} else {
		result, err = coordinator.Run(ctx, req)
	}
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		logging.WorkflowWarn("batch item %q failed: %v", res.Item.Topic, err)
		return
	}
	res.Status = StatusCompleted
	res.Result = result
}
