package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"madspark/internal/logging"
	"madspark/internal/types"
)

// RunAsync executes the pipeline with the independent middle stages
// (advocacy, skepticism, multi-dim evaluation, logical inference) running
// concurrently. Concurrent agent calls are capped by MaxConcurrentAgents.
// Cancellation of ctx aborts in-flight stages.
func (c *Coordinator) RunAsync(ctx context.Context, req Request) (*Result, error) {
	c.asyncActive.Add(1)
	defer c.asyncActive.Add(-1)
	return c.run(ctx, req, true)
}

// analyzeParallel runs the requested analysis stages concurrently.
// Each stage degrades to placeholders on its own failure, so the group only
// propagates context cancellation.
func (c *Coordinator) analyzeParallel(ctx context.Context, id string, candidates []types.Candidate, req Request, u *usage) error {
	sem := semaphore.NewWeighted(int64(c.cfg.MaxConcurrentAgents))
	g, gctx := errgroup.WithContext(ctx)

	type stage struct {
		name string
		run  func(ctx context.Context)
	}
	stages := []stage{
		{"advocacy", func(ctx context.Context) { c.runAdvocacy(ctx, id, candidates, req, u) }},
		{"skepticism", func(ctx context.Context) { c.runSkepticism(ctx, id, candidates, req, u) }},
	}
	if req.EnhancedReasoning {
		stages = append(stages, stage{"multi_dim", func(ctx context.Context) { c.runMultiDim(ctx, id, candidates, req, u) }})
	}
	if req.LogicalInference {
		stages = append(stages, stage{"inference", func(ctx context.Context) { c.runInference(ctx, id, candidates, req, u) }})
	}

	for _, stage := range stages {
		stage := stage
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			logging.WorkflowDebug("workflow %s: %s running concurrently", id, stage.name)
			stage.run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stageCheck(ctx, "analysis", req.Timeout)
	}
	return nil
}
