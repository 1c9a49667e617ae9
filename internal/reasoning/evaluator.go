// Package reasoning provides the multi-dimensional evaluator and the logical
// inference engine. Both require a live router; the inference engine degrades
// to a rule-based fallback when none is available.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	"madspark/internal/logging"
	"madspark/internal/provider"
	"madspark/internal/router"
	"madspark/internal/schema"
	"madspark/internal/types"
)

// MultiDimEvaluator scores ideas across seven weighted dimensions in one
// batched LLM call. It has no keyword fallback: without a router it fails.
type MultiDimEvaluator struct {
	Router      *router.Router
	Temperature float64
	Weights     map[string]float64
}

// NewMultiDimEvaluator wires the evaluator with the default weights.
func NewMultiDimEvaluator(r *router.Router, temperature float64) *MultiDimEvaluator {
	return &MultiDimEvaluator{
		Router:      r,
		Temperature: temperature,
		Weights:     types.DefaultDimensionWeights,
	}
}

// EvaluateBatch scores every idea. Results align with the input order;
// a missing dimension anywhere fails the whole batch.
func (e *MultiDimEvaluator) EvaluateBatch(ctx context.Context, ideas []string, topic, context_ string) ([]types.MultiDimEvaluation, types.LLMResponseMeta, error) {
	if e.Router == nil {
		return nil, types.LLMResponseMeta{}, &types.ConfigurationError{Reason: "multi-dimensional evaluation needs a live LLM client"}
	}
	if len(ideas) == 0 {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "ideas", Reason: "must not be empty"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Score each of the following %d ideas on seven dimensions (0-10 each): "+
		"feasibility, innovation, impact, cost_effectiveness, scalability, risk_assessment "+
		"(higher is safer), timeline (higher is faster). ", len(ideas))
	fmt.Fprintf(&b, "Return exactly %d evaluations, one per idea, in input order, "+
		"each carrying the idea_index it refers to.\n\nTopic: %s\n", len(ideas), topic)
	if context_ != "" {
		fmt.Fprintf(&b, "Context: %s\n", context_)
	}
	b.WriteString("\nIdeas:\n")
	for i, idea := range ideas {
		fmt.Fprintf(&b, "%d. %s\n", i, idea)
	}

	resp, err := e.Router.Generate(ctx, provider.Request{
		Prompt:      b.String(),
		Schema:      schema.MultiDimBatch,
		Temperature: e.Temperature,
	}, router.GenerateOptions{})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}

	raw, ok := resp.Record["evaluations"].([]interface{})
	if !ok {
		return nil, resp.Meta, fmt.Errorf("multi-dim response missing evaluations list")
	}

	out := make([]types.MultiDimEvaluation, len(ideas))
	seen := make([]bool, len(ideas))
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		idx := intField(obj, "idea_index")
		if idx < 0 || idx >= len(ideas) {
			logging.ReasoningDebug("dropping out-of-range idea_index %d", idx)
			continue
		}

		scores := make(map[string]float64, len(types.DimensionNames))
		for _, dim := range types.DimensionNames {
			v, ok := obj[dim]
			if !ok {
				return nil, resp.Meta, fmt.Errorf("idea %d is missing dimension %q", idx, dim)
			}
			f, ok := v.(float64)
			if !ok {
				return nil, resp.Meta, fmt.Errorf("idea %d dimension %q is not numeric", idx, dim)
			}
			scores[dim] = clamp(f, 0, 10)
		}

		out[idx] = e.aggregate(idx, scores)
		seen[idx] = true
	}

	for i, ok := range seen {
		if !ok {
			return nil, resp.Meta, fmt.Errorf("multi-dim batch returned no evaluation for idea %d", i)
		}
	}
	return out, resp.Meta, nil
}

// aggregate derives overall, weighted, and confidence values from the raw
// dimension scores.
func (e *MultiDimEvaluator) aggregate(idx int, scores map[string]float64) types.MultiDimEvaluation {
	var sum, weighted float64
	for _, dim := range types.DimensionNames {
		sum += scores[dim]
		weighted += scores[dim] * e.Weights[dim]
	}
	mean := sum / float64(len(types.DimensionNames))

	var variance float64
	for _, dim := range types.DimensionNames {
		d := scores[dim] - mean
		variance += d * d
	}
	variance /= float64(len(types.DimensionNames))

	confidence := 1 - variance/25
	if confidence < 0 {
		confidence = 0
	}

	return types.MultiDimEvaluation{
		IdeaIndex:          idx,
		Scores:             scores,
		OverallScore:       mean,
		WeightedScore:      weighted,
		ConfidenceInterval: confidence,
	}
}

// summarySchema is the shape of the optional natural-language summary call.
var summarySchema = func() *schema.Schema {
	s := schema.Obj("evaluation summary", map[string]*schema.Schema{
		"summary": schema.StrMin("2-3 sentence summary of the dimensional profile", 1),
	}, "summary")
	s.Name = "EvaluationSummary"
	return s
}()

// Summarize produces a short natural-language summary of an evaluation,
// falling back to a programmatic rendering when the call fails.
func (e *MultiDimEvaluator) Summarize(ctx context.Context, idea string, eval types.MultiDimEvaluation) string {
	if e.Router != nil {
		prompt := fmt.Sprintf("Summarize this idea's evaluation in 2-3 sentences.\n\nIdea: %s\n\nScores: %s\nWeighted score: %.1f",
			idea, renderScores(eval.Scores), eval.WeightedScore)
		resp, err := e.Router.Generate(ctx, provider.Request{
			Prompt:      prompt,
			Schema:      summarySchema,
			Temperature: e.Temperature,
		}, router.GenerateOptions{})
		if err == nil {
			if s, ok := resp.Record["summary"].(string); ok && s != "" {
				return s
			}
		} else {
			logging.ReasoningDebug("summary call failed, using programmatic fallback: %v", err)
		}
	}
	return fmt.Sprintf("Weighted score %.1f/10 (overall %.1f, confidence %.2f). Strongest: %s. Weakest: %s.",
		eval.WeightedScore, eval.OverallScore, eval.ConfidenceInterval,
		extremeDim(eval.Scores, true), extremeDim(eval.Scores, false))
}

func renderScores(scores map[string]float64) string {
	parts := make([]string, 0, len(types.DimensionNames))
	for _, dim := range types.DimensionNames {
		parts = append(parts, fmt.Sprintf("%s=%.1f", dim, scores[dim]))
	}
	return strings.Join(parts, ", ")
}

// extremeDim returns the highest (or lowest) scoring dimension name.
func extremeDim(scores map[string]float64, highest bool) string {
	best := ""
	for _, dim := range types.DimensionNames {
		if best == "" {
			best = dim
			continue
		}
		if highest && scores[dim] > scores[best] {
			best = dim
		}
		if !highest && scores[dim] < scores[best] {
			best = dim
		}
	}
	return best
}

func intField(obj map[string]interface{}, name string) int {
	if v, ok := obj[name].(float64); ok {
		return int(v)
	}
	return -1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
