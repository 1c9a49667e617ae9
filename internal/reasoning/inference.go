package reasoning

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"madspark/internal/logging"
	"madspark/internal/provider"
	"madspark/internal/router"
	"madspark/internal/schema"
	"madspark/internal/types"
)

// fallbackConfidence is the confidence of rule-based results.
const fallbackConfidence = 0.5

// LogicalInferenceEngine performs one of five logical analysis types per
// idea. Without a router it builds a minimal rule-based result instead of
// failing.
type LogicalInferenceEngine struct {
	Router      *router.Router
	Temperature float64
}

// NewLogicalInferenceEngine wires the engine. r may be nil for the
// rule-based fallback mode.
func NewLogicalInferenceEngine(r *router.Router, temperature float64) *LogicalInferenceEngine {
	return &LogicalInferenceEngine{Router: r, Temperature: temperature}
}

func analysisInstruction(t types.InferenceType) string {
	switch t {
	case types.InferenceCausal:
		return "Trace the cause-effect chain from the idea's premises to its outcomes."
	case types.InferenceConstraint:
		return "Check whether the idea satisfies the constraints stated in the context."
	case types.InferenceContradiction:
		return "Find internal contradictions between the idea's claims."
	case types.InferenceImplications:
		return "Derive the downstream implications if the idea is implemented."
	default:
		return "Perform a full logical analysis of the idea's reasoning."
	}
}

// Analyze runs one analysis for a single idea.
func (e *LogicalInferenceEngine) Analyze(ctx context.Context, idea, topic, context_ string, t types.InferenceType) (*types.LogicalInference, types.LLMResponseMeta, error) {
	if idea == "" {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "idea", Reason: "must not be empty"}
	}
	if e.Router == nil {
		return e.fallback(idea, t), types.LLMResponseMeta{}, nil
	}

	results, meta, err := e.AnalyzeBatch(ctx, []string{idea}, topic, context_, t)
	if err != nil {
		return nil, meta, err
	}
	return results[0], meta, nil
}

// AnalyzeBatch analyzes every idea in one call, aligned by index. Missing
// outputs are filled with the rule-based fallback.
func (e *LogicalInferenceEngine) AnalyzeBatch(ctx context.Context, ideas []string, topic, context_ string, t types.InferenceType) ([]*types.LogicalInference, types.LLMResponseMeta, error) {
	if len(ideas) == 0 {
		return nil, types.LLMResponseMeta{}, &types.ValidationError{Field: "ideas", Reason: "must not be empty"}
	}

	out := make([]*types.LogicalInference, len(ideas))
	if e.Router == nil {
		logging.Reasoning("no LLM client, using rule-based inference for %d ideas", len(ideas))
		for i, idea := range ideas {
			out[i] = e.fallback(idea, t)
		}
		return out, types.LLMResponseMeta{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", analysisInstruction(t))
	fmt.Fprintf(&b, "Analyze each of the following %d ideas. Return exactly %d results, "+
		"one per idea, in input order, each carrying the idea_index it refers to.\n\n",
		len(ideas), len(ideas))
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	if context_ != "" {
		fmt.Fprintf(&b, "Context: %s\n", context_)
	}
	b.WriteString("\nIdeas:\n")
	for i, idea := range ideas {
		fmt.Fprintf(&b, "%d. %s\n", i, idea)
	}

	resp, err := e.Router.Generate(ctx, provider.Request{
		Prompt:      b.String(),
		Schema:      schema.InferenceBatch(string(t)),
		Temperature: e.Temperature,
	}, router.GenerateOptions{})
	if err != nil {
		return nil, types.LLMResponseMeta{}, err
	}

	raw, ok := resp.Record["results"].([]interface{})
	if !ok {
		return nil, resp.Meta, fmt.Errorf("inference response missing results list")
	}

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
		out[idx] = parseInference(obj)
	}

	for i := range out {
		if out[i] == nil {
			logging.Reasoning("no inference for idea %d, using rule-based fallback", i)
			out[i] = e.fallback(ideas[i], t)
		}
	}
	return out, resp.Meta, nil
}

// fallback builds a minimal valid result: one-step chain, confidence 0.5,
// and an improvement hint pointing at AI-assisted analysis.
func (e *LogicalInferenceEngine) fallback(idea string, t types.InferenceType) *types.LogicalInference {
	short := idea
	if len(short) > 80 {
		cut := 80
		for cut > 0 && !utf8.RuneStart(short[cut]) {
			cut--
		}
		short = short[:cut] + "..."
	}
	inf := &types.LogicalInference{
		InferenceChain: []string{fmt.Sprintf("The idea %q is internally consistent at face value.", short)},
		Conclusion:     "No deeper logical analysis was performed.",
		Confidence:     fallbackConfidence,
		Improvements:   "Enable an LLM provider for a full logical analysis.",
	}
	switch t {
	case types.InferenceCausal:
		inf.CausalChain = []string{"premises -> outcome (unverified)"}
	case types.InferenceConstraint:
		inf.ConstraintSatisfaction = "Constraints were not checked."
	case types.InferenceContradiction:
		inf.Contradictions = []string{}
	case types.InferenceImplications:
		inf.Implications = []string{"Implications were not derived."}
	}
	return inf
}

func parseInference(obj map[string]interface{}) *types.LogicalInference {
	inf := &types.LogicalInference{
		Conclusion:   stringField(obj, "conclusion"),
		Improvements: stringField(obj, "improvements"),
	}
	if v, ok := obj["confidence"].(float64); ok {
		inf.Confidence = clamp(v, 0, 1)
	}
	inf.InferenceChain = stringList(obj, "inference_chain")
	inf.CausalChain = stringList(obj, "causal_chain")
	inf.ConstraintSatisfaction = stringField(obj, "constraint_satisfaction")
	inf.Contradictions = stringList(obj, "contradictions")
	inf.Implications = stringList(obj, "implications")
	return inf
}

func stringField(obj map[string]interface{}, name string) string {
	s, _ := obj[name].(string)
	return s
}

func stringList(obj map[string]interface{}, name string) []string {
	raw, ok := obj[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
