// Package agents implements the five pipeline agents: Idea Generator,
// Critic, Advocate, Skeptic, and Improver. Each agent is a pure function
// from typed inputs to a validated record plus metadata, routed through the
// provider router and wrapped in retry.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"madspark/internal/config"
	"madspark/internal/logging"
	"madspark/internal/provider"
	"madspark/internal/retry"
	"madspark/internal/router"
	"madspark/internal/schema"
	"madspark/internal/types"
)

// Client binds the agents to a router, temperature manager, and retry
// schedule. Zero-value retry falls back to the default schedule.
type Client struct {
	Router        *router.Router
	Temps         *config.TemperatureManager
	Retry         retry.Config
	ForceProvider string
}

// NewClient wires an agent client with the default retry schedule.
func NewClient(r *router.Router, temps *config.TemperatureManager) *Client {
	return &Client{Router: r, Temps: temps, Retry: retry.DefaultConfig()}
}

// generate runs one routed, retried structured call.
func (c *Client) generate(ctx context.Context, op string, req provider.Request) (*provider.Response, error) {
	var resp *provider.Response
	err := retry.Do(ctx, c.Retry, op, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.Router.Generate(ctx, req, router.GenerateOptions{ForceProvider: c.ForceProvider})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// decode round-trips a record through JSON into a typed struct.
func decode(record interface{}, out interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cannot re-serialize record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("record does not match expected shape: %w", err)
	}
	return nil
}

func (c *Client) temp(stage string) float64 {
	if c.Temps == nil {
		return 0.7
	}
	return c.Temps.ForStage(stage)
}

// =============================================================================
// IDEA GENERATOR
// =============================================================================

// GenerateIdeas produces up to n ideas for the topic. Files and URLs from the
// inputs ride along as multimodal attachments.
func (c *Client) GenerateIdeas(ctx context.Context, in types.RequestInputs, n int) ([]types.Idea, types.LLMResponseMeta, error) {
	if err := in.Validate(); err != nil {
		return nil, types.LLMResponseMeta{}, err
	}
	if n < 1 || n > 20 {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "numIdeas", Reason: "must be in [1, 20]"}
	}

	resp, err := c.generate(ctx, "idea_generator", provider.Request{
		Prompt:            ideaGenerationPrompt(in.Topic, in.Context, n),
		SystemInstruction: ideaGeneratorSystem,
		Schema:            schema.GeneratedIdeas,
		Temperature:       c.temp(config.StageIdea),
		Files:             in.MultimodalFiles,
		URLs:              in.MultimodalURLs,
	})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}

	var parsed struct {
		Ideas []types.Idea `json:"ideas"`
	}
	if err := decode(resp.Record, &parsed); err != nil {
		return nil, resp.Meta, err
	}
	for i := range parsed.Ideas {
		parsed.Ideas[i].Index = i
	}
	logging.Agents("generated %d ideas for topic %q", len(parsed.Ideas), in.Topic)
	return parsed.Ideas, resp.Meta, nil
}

// =============================================================================
// CRITIC
// =============================================================================

// EvaluateIdeas scores every idea in one batched call. Outputs are realigned
// by idea_index; missing indices come back as nil entries.
func (c *Client) EvaluateIdeas(ctx context.Context, ideas []types.Idea, topic, context_ string) ([]*types.Evaluation, types.LLMResponseMeta, error) {
	if len(ideas) == 0 {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "ideas", Reason: "must not be empty"}
	}
	if topic == "" {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "topic", Reason: "must not be empty"}
	}

	var sb strings.Builder
	for _, idea := range ideas {
		fmt.Fprintf(&sb, "%d. %s: %s\n", idea.Index, idea.Title, idea.Description)
	}

	resp, err := c.generate(ctx, "critic", provider.Request{
		Prompt:            criticPrompt(sb.String(), topic, context_, len(ideas)),
		SystemInstruction: criticSystem,
		Schema:            schema.CriticEvaluations,
		Temperature:       c.temp(config.StageEvaluation),
	})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}

	var parsed struct {
		Evaluations []types.Evaluation `json:"evaluations"`
	}
	if err := decode(resp.Record, &parsed); err != nil {
		return nil, resp.Meta, err
	}

	aligned := make([]*types.Evaluation, len(ideas))
	for i := range parsed.Evaluations {
		ev := parsed.Evaluations[i]
		if ev.IdeaIndex < 0 || ev.IdeaIndex >= len(ideas) {
			logging.AgentsWarn("critic returned out-of-range idea_index %d, dropping", ev.IdeaIndex)
			continue
		}
		aligned[ev.IdeaIndex] = &ev
	}
	if got := len(parsed.Evaluations); got != len(ideas) {
		logging.AgentsWarn("critic returned %d evaluations for %d ideas", got, len(ideas))
	}
	return aligned, resp.Meta, nil
}

// =============================================================================
// ADVOCATE
// =============================================================================

// AdvocacyInput is one batch item for the advocate.
type AdvocacyInput struct {
	IdeaIndex  int
	Idea       string
	Evaluation string
}

// Advocate builds the case for a single idea.
func (c *Client) Advocate(ctx context.Context, idea, evaluation, topic, context_ string) (*types.Advocacy, types.LLMResponseMeta, error) {
	if idea == "" {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "idea", Reason: "must not be empty"}
	}
	resp, err := c.generate(ctx, "advocate", provider.Request{
		Prompt:            advocacyPrompt(idea, evaluation, topic, context_),
		SystemInstruction: advocateSystem,
		Schema:            schema.AdvocacyResponse,
		Temperature:       c.temp(config.StageAdvocacy),
	})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}
	var out types.Advocacy
	if err := decode(resp.Record, &out); err != nil {
		return nil, resp.Meta, err
	}
	return &out, resp.Meta, nil
}

// AdvocateBatch builds the case for every input idea in one call. Outputs are
// realigned by idea_index against the input positions.
func (c *Client) AdvocateBatch(ctx context.Context, items []AdvocacyInput, topic, context_ string) ([]*types.Advocacy, types.LLMResponseMeta, error) {
	if len(items) == 0 {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "items", Reason: "must not be empty"}
	}
	resp, err := c.generate(ctx, "advocate_batch", provider.Request{
		Prompt:            advocacyBatchPrompt(items, topic, context_),
		SystemInstruction: advocateSystem,
		Schema:            schema.AdvocacyBatch,
		Temperature:       c.temp(config.StageAdvocacy),
	})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}

	var parsed struct {
		Advocacies []types.Advocacy `json:"advocacies"`
	}
	if err := decode(resp.Record, &parsed); err != nil {
		return nil, resp.Meta, err
	}

	aligned := make([]*types.Advocacy, len(items))
	for i := range parsed.Advocacies {
		adv := parsed.Advocacies[i]
		if adv.IdeaIndex < 0 || adv.IdeaIndex >= len(items) {
			logging.AgentsWarn("advocate returned out-of-range idea_index %d, dropping", adv.IdeaIndex)
			continue
		}
		aligned[adv.IdeaIndex] = &adv
	}
	return aligned, resp.Meta, nil
}

// =============================================================================
// SKEPTIC
// =============================================================================

// SkepticismInput is one batch item for the skeptic.
type SkepticismInput struct {
	IdeaIndex int
	Idea      string
	Advocacy  string
}

// Skeptic runs the devil's-advocate analysis for a single idea.
func (c *Client) Skeptic(ctx context.Context, idea, advocacy, topic, context_ string) (*types.Skepticism, types.LLMResponseMeta, error) {
	if idea == "" {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "idea", Reason: "must not be empty"}
	}
	resp, err := c.generate(ctx, "skeptic", provider.Request{
		Prompt:            skepticismPrompt(idea, advocacy, topic, context_),
		SystemInstruction: skepticSystem,
		Schema:            schema.SkepticismResponse,
		Temperature:       c.temp(config.StageSkepticism),
	})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}
	var out types.Skepticism
	if err := decode(resp.Record, &out); err != nil {
		return nil, resp.Meta, err
	}
	return &out, resp.Meta, nil
}

// SkepticBatch analyzes every input idea in one call, realigned by idea_index.
func (c *Client) SkepticBatch(ctx context.Context, items []SkepticismInput, topic, context_ string) ([]*types.Skepticism, types.LLMResponseMeta, error) {
	if len(items) == 0 {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "items", Reason: "must not be empty"}
	}
	resp, err := c.generate(ctx, "skeptic_batch", provider.Request{
		Prompt:            skepticismBatchPrompt(items, topic, context_),
		SystemInstruction: skepticSystem,
		Schema:            schema.SkepticismBatch,
		Temperature:       c.temp(config.StageSkepticism),
	})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}

	var parsed struct {
		Skepticisms []types.Skepticism `json:"skepticisms"`
	}
	if err := decode(resp.Record, &parsed); err != nil {
		return nil, resp.Meta, err
	}

	aligned := make([]*types.Skepticism, len(items))
	for i := range parsed.Skepticisms {
		sk := parsed.Skepticisms[i]
		if sk.IdeaIndex < 0 || sk.IdeaIndex >= len(items) {
			logging.AgentsWarn("skeptic returned out-of-range idea_index %d, dropping", sk.IdeaIndex)
			continue
		}
		aligned[sk.IdeaIndex] = &sk
	}
	return aligned, resp.Meta, nil
}

// =============================================================================
// IMPROVER
// =============================================================================

// ImprovementInput is one batch item for the improver. Absent analysis
// fields should carry "N/A" rather than empty strings.
type ImprovementInput struct {
	IdeaIndex        int
	Idea             string
	Critique         string
	Advocacy         string
	Skepticism       string
	LogicalInference string
}

// Improvement is the improver's typed output for one idea.
type Improvement struct {
	IdeaIndex           int      `json:"idea_index"`
	ImprovedIdea        string   `json:"improved_idea"`
	KeyImprovements     []string `json:"key_improvements,omitempty"`
	ImplementationSteps []string `json:"implementation_steps,omitempty"`
	Differentiators     []string `json:"differentiators,omitempty"`
}

// Improve rewrites a single idea against its critique.
func (c *Client) Improve(ctx context.Context, in ImprovementInput, topic, context_ string) (*Improvement, types.LLMResponseMeta, error) {
	if in.Idea == "" {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "idea", Reason: "must not be empty"}
	}
	resp, err := c.generate(ctx, "improver", provider.Request{
		Prompt:            improvementPrompt(in, topic, context_),
		SystemInstruction: improverSystem,
		Schema:            schema.ImprovementResponse,
		Temperature:       c.temp(config.StageIdea),
	})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}
	var out Improvement
	if err := decode(resp.Record, &out); err != nil {
		return nil, resp.Meta, err
	}
	out.ImprovedIdea = SanitizeImprovedIdea(out.ImprovedIdea)
	return &out, resp.Meta, nil
}

// ImproveBatch rewrites every input idea in one call, realigned by idea_index.
func (c *Client) ImproveBatch(ctx context.Context, items []ImprovementInput, topic, context_ string) ([]*Improvement, types.LLMResponseMeta, error) {
	if len(items) == 0 {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "items", Reason: "must not be empty"}
	}
	resp, err := c.generate(ctx, "improver_batch", provider.Request{
		Prompt:            improvementBatchPrompt(items, topic, context_),
		SystemInstruction: improverSystem,
		Schema:            schema.ImprovementBatch,
		Temperature:       c.temp(config.StageIdea),
	})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}

	var parsed struct {
		Improvements []Improvement `json:"improvements"`
	}
	if err := decode(resp.Record, &parsed); err != nil {
		return nil, resp.Meta, err
	}

	aligned := make([]*Improvement, len(items))
	for i := range parsed.Improvements {
		imp := parsed.Improvements[i]
		if imp.IdeaIndex < 0 || imp.IdeaIndex >= len(items) {
			logging.AgentsWarn("improver returned out-of-range idea_index %d, dropping", imp.IdeaIndex)
			continue
		}
		imp.ImprovedIdea = SanitizeImprovedIdea(imp.ImprovedIdea)
		aligned[imp.IdeaIndex] = &imp
	}
	return aligned, resp.Meta, nil
}
