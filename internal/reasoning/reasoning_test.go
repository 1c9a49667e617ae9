package reasoning

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"madspark/internal/config"
	"madspark/internal/provider"
	"madspark/internal/router"
	"madspark/internal/types"
)

func mockRouter(t *testing.T) *router.Router {
	t.Helper()
	cfg := config.Default()
	cfg.CacheEnabled = false
	mock := provider.NewMockProvider()
	r, err := router.New(router.Options{Local: mock, Cloud: mock, Config: cfg})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return r
}

func TestAggregateUniformScores(t *testing.T) {
	e := NewMultiDimEvaluator(nil, 0.3)
	scores := map[string]float64{}
	for _, dim := range types.DimensionNames {
		scores[dim] = 8
	}
	eval := e.aggregate(0, scores)

	if eval.OverallScore != 8 {
		t.Errorf("uniform 8s should mean 8, got %.2f", eval.OverallScore)
	}
	if math.Abs(eval.WeightedScore-8) > 1e-9 {
		t.Errorf("weights sum to 1, weighted should be 8, got %.4f", eval.WeightedScore)
	}
	if eval.ConfidenceInterval != 1 {
		t.Errorf("zero variance means confidence 1, got %.2f", eval.ConfidenceInterval)
	}
}

func TestAggregateConfidenceDropsWithVariance(t *testing.T) {
	e := NewMultiDimEvaluator(nil, 0.3)
	scores := map[string]float64{}
	for i, dim := range types.DimensionNames {
		if i%2 == 0 {
			scores[dim] = 10
		} else {
			scores[dim] = 0
		}
	}
	eval := e.aggregate(0, scores)
	if eval.ConfidenceInterval >= 1 {
		t.Errorf("high variance should lower confidence, got %.2f", eval.ConfidenceInterval)
	}
	if eval.ConfidenceInterval < 0 {
		t.Errorf("confidence is clamped at 0, got %.2f", eval.ConfidenceInterval)
	}
}

func TestAggregateWeightedScore(t *testing.T) {
	e := NewMultiDimEvaluator(nil, 0.3)
	scores := map[string]float64{}
	for _, dim := range types.DimensionNames {
		scores[dim] = 5
	}
	scores[types.DimFeasibility] = 10

	eval := e.aggregate(0, scores)
	// 10*0.20 + 5*0.80 = 6.0
	if math.Abs(eval.WeightedScore-6) > 1e-9 {
		t.Errorf("expected weighted 6.0, got %.4f", eval.WeightedScore)
	}
}

func TestEvaluateBatchRequiresRouter(t *testing.T) {
	e := NewMultiDimEvaluator(nil, 0.3)
	_, _, err := e.EvaluateBatch(context.Background(), []string{"idea"}, "topic", "")
	var ce *types.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError without a router, got %v", err)
	}
}

func TestEvaluateBatchMock(t *testing.T) {
	e := NewMultiDimEvaluator(mockRouter(t), 0.3)
	evals, _, err := e.EvaluateBatch(context.Background(), []string{"idea A", "idea B"}, "topic", "ctx")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(evals) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(evals))
	}
	for i, eval := range evals {
		if eval.IdeaIndex != i {
			t.Errorf("evaluation %d aligned to %d", i, eval.IdeaIndex)
		}
		for _, dim := range types.DimensionNames {
			if _, ok := eval.Scores[dim]; !ok {
				t.Errorf("evaluation %d missing dimension %s", i, dim)
			}
		}
	}
}

func TestSummarizeProgrammaticFallback(t *testing.T) {
	e := NewMultiDimEvaluator(nil, 0.3)
	scores := map[string]float64{}
	for _, dim := range types.DimensionNames {
		scores[dim] = 7
	}
	eval := e.aggregate(0, scores)
	summary := e.Summarize(context.Background(), "idea", eval)
	if summary == "" {
		t.Error("fallback summary should be non-empty")
	}
}

func TestInferenceFallback(t *testing.T) {
	e := NewLogicalInferenceEngine(nil, 0.3)
	results, _, err := e.AnalyzeBatch(context.Background(), []string{"idea A", "idea B"}, "topic", "", types.InferenceFull)
	if err != nil {
		t.Fatalf("fallback analysis failed: %v", err)
	}
	for i, inf := range results {
		if inf == nil {
			t.Fatalf("missing result for idea %d", i)
		}
		if inf.Confidence != fallbackConfidence {
			t.Errorf("rule-based confidence should be %.1f, got %.2f", fallbackConfidence, inf.Confidence)
		}
		if len(inf.InferenceChain) != 1 {
			t.Errorf("rule-based chain should have one step, got %d", len(inf.InferenceChain))
		}
		if inf.Improvements == "" {
			t.Error("fallback should hint at enabling an LLM")
		}
	}
}

func TestInferenceFallbackTruncatesOnRuneBoundary(t *testing.T) {
	e := NewLogicalInferenceEngine(nil, 0.3)
	// 79 ASCII bytes followed by multibyte runes puts a rune boundary
	// straddling byte 80.
	idea := strings.Repeat("a", 79) + "日本語のアイデア"
	inf, _, err := e.Analyze(context.Background(), idea, "topic", "", types.InferenceFull)
	if err != nil {
		t.Fatalf("fallback analysis failed: %v", err)
	}
	chain := inf.InferenceChain[0]
	if !utf8.ValidString(chain) {
		t.Errorf("truncated chain step is not valid UTF-8: %q", chain)
	}
	// A split rune would surface as a \x escape once the quoted idea is
	// formatted into the chain step.
	if strings.Contains(chain, `\x`) {
		t.Errorf("truncation split a rune: %q", chain)
	}
}

func TestInferenceFallbackTypeFields(t *testing.T) {
	e := NewLogicalInferenceEngine(nil, 0.3)
	causal, _, err := e.Analyze(context.Background(), "idea", "topic", "", types.InferenceCausal)
	if err != nil {
		t.Fatalf("causal analysis failed: %v", err)
	}
	if len(causal.CausalChain) == 0 {
		t.Error("causal fallback should carry a causal chain")
	}

	constraint, _, _ := e.Analyze(context.Background(), "idea", "topic", "", types.InferenceConstraint)
	if constraint.ConstraintSatisfaction == "" {
		t.Error("constraint fallback should carry constraint_satisfaction")
	}
}

func TestInferenceBatchMock(t *testing.T) {
	e := NewLogicalInferenceEngine(mockRouter(t), 0.3)
	results, _, err := e.AnalyzeBatch(context.Background(), []string{"idea A", "idea B", "idea C"}, "topic", "", types.InferenceFull)
	if err != nil {
		t.Fatalf("batch analysis failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, inf := range results {
		if inf == nil || inf.Conclusion == "" {
			t.Errorf("result %d should carry a conclusion", i)
		}
	}
}
