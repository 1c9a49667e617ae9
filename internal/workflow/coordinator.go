package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"madspark/internal/agents"
	"madspark/internal/batch"
	"madspark/internal/config"
	"madspark/internal/logging"
	"madspark/internal/reasoning"
	"madspark/internal/router"
	"madspark/internal/types"
)

// NoveltyChecker filters generated ideas before critique. Implementations
// live outside this package; a nil checker keeps every idea.
type NoveltyChecker interface {
	IsNovel(idea string, threshold float64) bool
}

// ProgressFunc receives human-readable progress updates with a completion
// fraction in [0,1].
type ProgressFunc func(message string, fraction float64)

// Options wires a coordinator. Router and Config are required; everything
// else is optional.
type Options struct {
	Router        *router.Router
	Config        *config.Config
	Temps         *config.TemperatureManager
	Pool          *batch.Pool
	Audit         *logging.AuditLogger
	Novelty       NoveltyChecker
	Progress      ProgressFunc
	InferenceType types.InferenceType
}

// Request describes one workflow run.
type Request struct {
	Inputs            types.RequestInputs
	NumIdeas          int           // ideas to generate, default 10, max 20
	NumTopCandidates  int           // K, default from config
	Timeout           time.Duration // 0 = config default; clamped to [min, max]
	EnhancedReasoning bool          // run the multi-dimensional evaluator
	LogicalInference  bool          // run the logical inference engine
}

// Result is the ranked outcome of one workflow.
type Result struct {
	WorkflowID string            `json:"workflow_id"`
	Candidates []types.Candidate `json:"candidates"`
	TokensUsed int               `json:"tokens_used"`
	TotalCost  float64           `json:"total_cost"`
	Elapsed    time.Duration     `json:"elapsed"`
}

// Coordinator runs the pipeline. One coordinator may serve many runs; the
// sync entry point refuses to run while an async run is in flight on the
// same instance.
type Coordinator struct {
	agents        *agents.Client
	evaluator     *reasoning.MultiDimEvaluator
	inference     *reasoning.LogicalInferenceEngine
	cfg           *config.Config
	pool          *batch.Pool
	audit         *logging.AuditLogger
	novelty       NoveltyChecker
	progress      ProgressFunc
	inferenceType types.InferenceType

	asyncActive atomic.Int32
}

// New builds a coordinator from options.
func New(opts Options) (*Coordinator, error) {
	if opts.Router == nil {
		return nil, &types.ConfigurationError{Reason: "coordinator needs a router"}
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	temps := opts.Temps
	if temps == nil {
		var err error
		temps, err = config.NewTemperatureManager(config.PresetBalanced)
		if err != nil {
			return nil, err
		}
	}

	infType := opts.InferenceType
	if infType == "" {
		infType = types.InferenceFull
	}

	return &Coordinator{
		agents:        agents.NewClient(opts.Router, temps),
		evaluator:     reasoning.NewMultiDimEvaluator(opts.Router, temps.ForStage(config.StageEvaluation)),
		inference:     reasoning.NewLogicalInferenceEngine(opts.Router, temps.ForStage(config.StageEvaluation)),
		cfg:           cfg,
		pool:          opts.Pool,
		audit:         opts.Audit,
		novelty:       opts.Novelty,
		progress:      opts.Progress,
		inferenceType: infType,
	}, nil
}

// withTemps derives a coordinator that shares every collaborator but runs
// the agents at different temperatures.
func (c *Coordinator) withTemps(temps *config.TemperatureManager) *Coordinator {
	return &Coordinator{
		agents:        agents.NewClient(c.agents.Router, temps),
		evaluator:     c.evaluator,
		inference:     c.inference,
		cfg:           c.cfg,
		pool:          c.pool,
		audit:         c.audit,
		novelty:       c.novelty,
		progress:      c.progress,
		inferenceType: c.inferenceType,
	}
}

// usage accumulates per-call metadata across stages.
type usage struct {
	mu     sync.Mutex
	tokens int
	cost   float64
}

func (u *usage) add(meta types.LLMResponseMeta) {
	// Cached responses carry the original call's counts for inspection but
	// consumed nothing on this run.
	if meta.Cached {
		return
	}
	u.mu.Lock()
	u.tokens += meta.TokensUsed
	u.cost += meta.Cost
	u.mu.Unlock()
}

// Run executes the pipeline synchronously: strict stage order with timeout
// checks at every stage boundary. Calling it while RunAsync is in flight on
// this coordinator fails with a ConfigurationError.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Result, error) {
	if c.asyncActive.Load() > 0 {
		return nil, &types.ConfigurationError{Reason: "Run called while RunAsync is in flight; use RunAsync from concurrent contexts"}
	}
	return c.run(ctx, req, false)
}

func (c *Coordinator) run(ctx context.Context, req Request, parallel bool) (*Result, error) {
	if err := req.Inputs.Validate(); err != nil {
		return nil, err
	}
	c.normalizeRequest(&req)

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	id := uuid.NewString()
	start := time.Now()
	u := &usage{}
	logging.Workflow("workflow %s started: topic=%q topK=%d timeout=%v parallel=%v",
		id, req.Inputs.Topic, req.NumTopCandidates, req.Timeout, parallel)
	c.report("Generating ideas", 0.05)

	// Stage 1-2: idea generation.
	c.auditStage(id, "idea_generation", logging.AuditStageStart)
	ideas, meta, err := c.agents.GenerateIdeas(ctx, req.Inputs, req.NumIdeas)
	u.add(meta)
	if err != nil {
		c.auditStage(id, "idea_generation", logging.AuditStageFailed)
		return c.fatalStage(ctx, id, "idea generation", err)
	}
	ideas = c.filterNovel(ideas)
	if len(ideas) == 0 {
		logging.WorkflowWarn("workflow %s: generator returned zero ideas", id)
		return c.emptyResult(id, u, start), nil
	}
	c.auditStage(id, "idea_generation", logging.AuditStageComplete)
	if err := stageCheck(ctx, "idea generation", req.Timeout); err != nil {
		return nil, err
	}

	// Stage 3: initial critique.
	c.report("Evaluating ideas", 0.2)
	evals, meta, err := c.agents.EvaluateIdeas(ctx, ideas, req.Inputs.Topic, req.Inputs.Context)
	u.add(meta)
	if err != nil {
		return c.fatalStage(ctx, id, "initial critique", err)
	}

	all := make([]types.Candidate, len(ideas))
	for i, idea := range ideas {
		all[i] = types.Candidate{OriginalIdea: idea}
	}
	batch.UpdateEvaluations(all, evals)
	if err := stageCheck(ctx, "initial critique", req.Timeout); err != nil {
		return nil, err
	}

	// Stage 4: top-K selection.
	candidates := selectTop(all, req.NumTopCandidates)
	logging.Workflow("workflow %s: %d ideas scored, %d selected", id, len(all), len(candidates))
	c.report("Analyzing top candidates", 0.35)

	// Stages 5-8: advocacy, skepticism, multi-dim, inference.
	if parallel {
		err = c.analyzeParallel(ctx, id, candidates, req, u)
	} else {
		err = c.analyzeSequential(ctx, id, candidates, req, u)
	}
	if err != nil {
		return nil, err
	}
	if err := stageCheck(ctx, "analysis", req.Timeout); err != nil {
		return nil, err
	}

	// Stage 9: improvement.
	c.report("Improving ideas", 0.7)
	c.auditStage(id, "improvement", logging.AuditStageStart)
	var improvements []*agents.Improvement
	err = c.stageCall(ctx, "improvement", func(ctx context.Context) error {
		var callErr error
		improvements, meta, callErr = c.agents.ImproveBatch(ctx, batch.PrepareImprovementInput(candidates), req.Inputs.Topic, req.Inputs.Context)
		return callErr
	})
	u.add(meta)
	if err != nil {
		// Only the workflow deadline is fatal here; a per-batch timeout
		// degrades to the original idea text like any other failure.
		if timeoutErr := stageCheck(ctx, "improvement", req.Timeout); timeoutErr != nil {
			return nil, timeoutErr
		}
		logging.WorkflowWarn("workflow %s: improvement stage failed, keeping originals: %v", id, err)
		c.auditStage(id, "improvement", logging.AuditStageFailed)
		improvements = nil
	} else {
		c.auditStage(id, "improvement", logging.AuditStageComplete)
	}
	batch.UpdateImprovements(candidates, improvements)
	if err := stageCheck(ctx, "improvement", req.Timeout); err != nil {
		return nil, err
	}

	// Stage 10: re-evaluation of improved ideas.
	c.report("Re-evaluating improved ideas", 0.85)
	c.reevaluate(ctx, id, candidates, req, u)

	// Stage 11: final ranking.
	for i := range candidates {
		finalizeCandidate(&candidates[i])
	}
	sortFinal(candidates)
	c.report("Done", 1)

	result := &Result{
		WorkflowID: id,
		Candidates: candidates,
		TokensUsed: u.tokens,
		TotalCost:  u.cost,
		Elapsed:    time.Since(start),
	}
	logging.Workflow("workflow %s finished in %v: %d candidates, %d tokens",
		id, result.Elapsed, len(candidates), u.tokens)
	return result, nil
}

// analyzeSequential runs advocacy, skepticism, and the requested reasoning
// stages one after another. Each stage degrades to placeholders on failure.
func (c *Coordinator) analyzeSequential(ctx context.Context, id string, candidates []types.Candidate, req Request, u *usage) error {
	c.runAdvocacy(ctx, id, candidates, req, u)
	if err := stageCheck(ctx, "advocacy", req.Timeout); err != nil {
		return err
	}
	c.runSkepticism(ctx, id, candidates, req, u)
	if err := stageCheck(ctx, "skepticism", req.Timeout); err != nil {
		return err
	}
	if req.EnhancedReasoning {
		c.runMultiDim(ctx, id, candidates, req, u)
		if err := stageCheck(ctx, "multi_dim", req.Timeout); err != nil {
			return err
		}
	}
	if req.LogicalInference {
		c.runInference(ctx, id, candidates, req, u)
		if err := stageCheck(ctx, "inference", req.Timeout); err != nil {
			return err
		}
	}
	return nil
}

// stageCall executes one batch agent call, bounded by the per-call batch
// timeout when a worker pool is wired. Without a pool fn runs inline under
// the workflow deadline only.
func (c *Coordinator) stageCall(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if c.pool == nil {
		return fn(ctx)
	}
	return c.pool.RunWithTimeout(ctx, name, c.cfg.BatchTimeout.Seconds(), fn)
}

func (c *Coordinator) runAdvocacy(ctx context.Context, id string, candidates []types.Candidate, req Request, u *usage) {
	c.auditStage(id, "advocacy", logging.AuditStageStart)
	var results []*types.Advocacy
	var meta types.LLMResponseMeta
	err := c.stageCall(ctx, "advocacy", func(ctx context.Context) error {
		var callErr error
		results, meta, callErr = c.agents.AdvocateBatch(ctx, batch.PrepareAdvocacyInput(candidates), req.Inputs.Topic, req.Inputs.Context)
		return callErr
	})
	u.add(meta)
	if err != nil {
		logging.WorkflowWarn("workflow %s: advocacy failed, using placeholders: %v", id, err)
		c.auditStage(id, "advocacy", logging.AuditStageFailed)
		for i := range candidates {
			candidates[i].AdvocacyText = batch.StageFailed
		}
		return
	}
	c.auditStage(id, "advocacy", logging.AuditStageComplete)
	batch.UpdateAdvocacies(candidates, results)
}

func (c *Coordinator) runSkepticism(ctx context.Context, id string, candidates []types.Candidate, req Request, u *usage) {
	c.auditStage(id, "skepticism", logging.AuditStageStart)
	var results []*types.Skepticism
	var meta types.LLMResponseMeta
	err := c.stageCall(ctx, "skepticism", func(ctx context.Context) error {
		var callErr error
		results, meta, callErr = c.agents.SkepticBatch(ctx, batch.PrepareSkepticismInput(candidates), req.Inputs.Topic, req.Inputs.Context)
		return callErr
	})
	u.add(meta)
	if err != nil {
		logging.WorkflowWarn("workflow %s: skepticism failed, using placeholders: %v", id, err)
		c.auditStage(id, "skepticism", logging.AuditStageFailed)
		for i := range candidates {
			candidates[i].SkepticismText = batch.StageFailed
		}
		return
	}
	c.auditStage(id, "skepticism", logging.AuditStageComplete)
	batch.UpdateSkepticisms(candidates, results)
}

func (c *Coordinator) runMultiDim(ctx context.Context, id string, candidates []types.Candidate, req Request, u *usage) {
	c.auditStage(id, "multi_dim", logging.AuditStageStart)
	texts := candidateTexts(candidates)
	var evals []types.MultiDimEvaluation
	var meta types.LLMResponseMeta
	err := c.stageCall(ctx, "multi_dim", func(ctx context.Context) error {
		var callErr error
		evals, meta, callErr = c.evaluator.EvaluateBatch(ctx, texts, req.Inputs.Topic, req.Inputs.Context)
		return callErr
	})
	u.add(meta)
	if err != nil {
		logging.WorkflowWarn("workflow %s: multi-dim evaluation failed: %v", id, err)
		c.auditStage(id, "multi_dim", logging.AuditStageFailed)
		return
	}
	c.auditStage(id, "multi_dim", logging.AuditStageComplete)
	for i := range candidates {
		if i < len(evals) {
			eval := evals[i]
			eval.Summary = c.evaluator.Summarize(ctx, texts[i], eval)
			candidates[i].MultiDimEvaluation = &eval
		}
	}
}

func (c *Coordinator) runInference(ctx context.Context, id string, candidates []types.Candidate, req Request, u *usage) {
	c.auditStage(id, "inference", logging.AuditStageStart)
	texts := candidateTexts(candidates)
	var results []*types.LogicalInference
	var meta types.LLMResponseMeta
	err := c.stageCall(ctx, "inference", func(ctx context.Context) error {
		var callErr error
		results, meta, callErr = c.inference.AnalyzeBatch(ctx, texts, req.Inputs.Topic, req.Inputs.Context, c.inferenceType)
		return callErr
	})
	u.add(meta)
	if err != nil {
		logging.WorkflowWarn("workflow %s: logical inference failed: %v", id, err)
		c.auditStage(id, "inference", logging.AuditStageFailed)
		return
	}
	c.auditStage(id, "inference", logging.AuditStageComplete)
	for i := range candidates {
		if i < len(results) {
			candidates[i].LogicalInference = results[i]
		}
	}
}

// reevaluate scores the improved ideas with the critic and, when available,
// the multi-dim evaluator. Failures leave the improved score at the initial
// score so the candidate still ranks.
func (c *Coordinator) reevaluate(ctx context.Context, id string, candidates []types.Candidate, req Request, u *usage) {
	improved := make([]types.Idea, len(candidates))
	for i, cand := range candidates {
		improved[i] = types.Idea{Index: i, Title: cand.ImprovedIdea, Description: ""}
	}

	var evals []*types.Evaluation
	var meta types.LLMResponseMeta
	err := c.stageCall(ctx, "re_evaluation", func(ctx context.Context) error {
		var callErr error
		evals, meta, callErr = c.agents.EvaluateIdeas(ctx, improved, req.Inputs.Topic, req.Inputs.Context)
		return callErr
	})
	u.add(meta)
	if err != nil {
		logging.WorkflowWarn("workflow %s: re-evaluation failed, carrying initial scores: %v", id, err)
		for i := range candidates {
			candidates[i].ImprovedScore = candidates[i].InitialScore
			candidates[i].ImprovedCritique = batch.StageFailed
		}
		return
	}
	for i := range candidates {
		if i < len(evals) && evals[i] != nil {
			candidates[i].ImprovedScore = evals[i].Score
			candidates[i].ImprovedCritique = evals[i].Comment
		} else {
			candidates[i].ImprovedScore = candidates[i].InitialScore
			candidates[i].ImprovedCritique = batch.NoEvaluation
		}
	}

	if !req.EnhancedReasoning {
		return
	}
	if texts := candidateImprovedTexts(candidates); len(texts) > 0 {
		mdEvals, mdMeta, mdErr := c.evaluator.EvaluateBatch(ctx, texts, req.Inputs.Topic, req.Inputs.Context)
		u.add(mdMeta)
		if mdErr == nil {
			for i := range candidates {
				if i < len(mdEvals) {
					eval := mdEvals[i]
					candidates[i].ImprovedMultiDim = &eval
				}
			}
		} else {
			logging.WorkflowDebug("workflow %s: improved multi-dim skipped: %v", id, mdErr)
		}
	}
}

// fatalStage handles Idea Generator / Critic failures: timeouts surface as
// Timeout errors, anything else returns the empty ranked list with a logged
// error.
func (c *Coordinator) fatalStage(ctx context.Context, id, stage string, err error) (*Result, error) {
	if timeoutErr := asTimeout(ctx, err, stage, 0); timeoutErr != nil {
		return nil, timeoutErr
	}
	if types.IsNonRetryable(err) {
		return nil, err
	}
	logging.Get(logging.CategoryWorkflow).Error("workflow %s: %s failed with zero outputs: %v", id, stage, err)
	return &Result{WorkflowID: id, Candidates: []types.Candidate{}}, nil
}

func (c *Coordinator) emptyResult(id string, u *usage, start time.Time) *Result {
	return &Result{
		WorkflowID: id,
		Candidates: []types.Candidate{},
		TokensUsed: u.tokens,
		TotalCost:  u.cost,
		Elapsed:    time.Since(start),
	}
}

func (c *Coordinator) normalizeRequest(req *Request) {
	if req.NumIdeas <= 0 {
		req.NumIdeas = 10
	}
	if req.NumIdeas > 20 {
		req.NumIdeas = 20
	}
	if req.NumTopCandidates <= 0 {
		req.NumTopCandidates = c.cfg.TopCandidates
	}
	if req.Timeout <= 0 {
		req.Timeout = c.cfg.WorkflowTimeout
	}
	if req.Timeout < c.cfg.MinTimeout {
		req.Timeout = c.cfg.MinTimeout
	}
	if req.Timeout > c.cfg.MaxTimeout {
		req.Timeout = c.cfg.MaxTimeout
	}
}

func (c *Coordinator) filterNovel(ideas []types.Idea) []types.Idea {
	if c.novelty == nil {
		return ideas
	}
	kept := ideas[:0]
	for _, idea := range ideas {
		if c.novelty.IsNovel(ideaText(idea), c.cfg.NoveltyThreshold) {
			kept = append(kept, idea)
		} else {
			logging.Workflow("idea %d filtered as non-novel: %s", idea.Index, idea.Title)
		}
	}
	for i := range kept {
		kept[i].Index = i
	}
	return kept
}

func (c *Coordinator) report(message string, fraction float64) {
	if c.progress != nil {
		c.progress(message, fraction)
	}
}

func (c *Coordinator) auditStage(id, stage string, typ logging.AuditEventType) {
	c.audit.Record(logging.AuditEvent{Type: typ, WorkflowID: id, Stage: stage})
}

// stageCheck converts a crossed deadline into a Timeout error at a stage
// boundary.
func stageCheck(ctx context.Context, stage string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &types.TimeoutError{Op: stage, Seconds: timeout.Seconds()}
		}
		return err
	}
	return nil
}

// asTimeout maps a stage error caused by the workflow deadline onto a
// Timeout error; returns nil for other errors.
func asTimeout(ctx context.Context, err error, stage string, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &types.TimeoutError{Op: stage, Seconds: timeout.Seconds()}
	}
	var te *types.TimeoutError
	if errors.As(err, &te) {
		return te
	}
	return nil
}

func candidateTexts(candidates []types.Candidate) []string {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = ideaText(c.OriginalIdea)
	}
	return texts
}

func candidateImprovedTexts(candidates []types.Candidate) []string {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.ImprovedIdea
	}
	return texts
}
