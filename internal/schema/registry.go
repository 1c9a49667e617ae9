package schema

import (
	"fmt"
	"sync"
)

// =============================================================================
// AGENT RESPONSE SCHEMAS
// =============================================================================
// One schema per agent response shape. Batch schemas wrap the per-idea item
// in an array keyed by idea_index so outputs can be realigned regardless of
// arrival order.

// Schema names registered at init.
const (
	NameGeneratedIdeas      = "GeneratedIdeas"
	NameCriticEvaluations   = "CriticEvaluations"
	NameAdvocacyResponse    = "AdvocacyResponse"
	NameAdvocacyBatch       = "AdvocacyBatch"
	NameSkepticismResponse  = "SkepticismResponse"
	NameSkepticismBatch     = "SkepticismBatch"
	NameImprovementResponse = "ImprovementResponse"
	NameImprovementBatch    = "ImprovementBatch"
	NameMultiDimBatch       = "MultiDimBatch"
	NameInferenceResult     = "InferenceResult"
	NameInferenceBatch      = "InferenceBatch"
)

var (
	registry   = map[string]*Schema{}
	registryMu sync.RWMutex
)

func register(s *Schema) *Schema {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name] = s
	return s
}

// Get returns a registered schema by name.
func Get(name string) (*Schema, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// Names returns the registered schema names (order unspecified).
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// -----------------------------------------------------------------------------
// Idea generation
// -----------------------------------------------------------------------------

func ideaItem() *Schema {
	return Obj("a single generated idea", map[string]*Schema{
		"title":        StrMin("short idea title", 1),
		"description":  StrMin("what the idea is and how it works", 1),
		"key_features": Arr("3-5 short feature phrases", Str("one key feature")),
		"category":     Str("idea category"),
	}, "title", "description")
}

// GeneratedIdeas is the Idea Generator contract: 1..20 ideas.
var GeneratedIdeas = register(func() *Schema {
	s := Obj("list of generated ideas", map[string]*Schema{
		"ideas": ArrBounded("generated ideas", ideaItem(), 1, 20),
	}, "ideas")
	s.Name = NameGeneratedIdeas
	return s
}())

// -----------------------------------------------------------------------------
// Critic
// -----------------------------------------------------------------------------

func evaluationItem() *Schema {
	return Obj("evaluation of one idea", map[string]*Schema{
		"idea_index": Int("index of the evaluated idea", 0),
		"score":      Num("overall score", 0, 10),
		"comment":    StrMin("critical commentary", 10),
		"strengths":  Arr("notable strengths", Str("one strength")),
		"weaknesses": Arr("notable weaknesses", Str("one weakness")),
	}, "idea_index", "score", "comment")
}

// CriticEvaluations is the Critic contract: one evaluation per input idea,
// in input order.
var CriticEvaluations = register(func() *Schema {
	s := Obj("evaluations for every input idea, in input order", map[string]*Schema{
		"evaluations": ArrBounded("one per idea", evaluationItem(), 1, 0),
	}, "evaluations")
	s.Name = NameCriticEvaluations
	return s
}())

// -----------------------------------------------------------------------------
// Advocate
// -----------------------------------------------------------------------------

func titledItem(desc string) *Schema {
	return Obj(desc, map[string]*Schema{
		"title":       StrMin("short title", 1),
		"description": StrMin("explanation", 1),
	}, "title", "description")
}

func advocacyItem() *Schema {
	return Obj("advocacy for one idea", map[string]*Schema{
		"idea_index":    Int("index of the idea", 0),
		"strengths":     ArrBounded("key strengths", titledItem("one strength"), 1, 0),
		"opportunities": ArrBounded("growth opportunities", titledItem("one opportunity"), 1, 0),
		"addressing_concerns": ArrBounded("responses to raised concerns", Obj("one concern/response pair", map[string]*Schema{
			"concern":  StrMin("the concern", 1),
			"response": StrMin("how it is addressed", 1),
		}, "concern", "response"), 1, 0),
	}, "idea_index", "strengths", "opportunities", "addressing_concerns")
}

// AdvocacyResponse is the single-idea Advocate contract.
var AdvocacyResponse = register(func() *Schema {
	s := advocacyItem()
	s.Name = NameAdvocacyResponse
	return s
}())

// AdvocacyBatch wraps AdvocacyResponse for batch calls.
var AdvocacyBatch = register(func() *Schema {
	s := Obj("advocacy for every input idea, in input order", map[string]*Schema{
		"advocacies": ArrBounded("one per idea", advocacyItem(), 1, 0),
	}, "advocacies")
	s.Name = NameAdvocacyBatch
	return s
}())

// -----------------------------------------------------------------------------
// Skeptic
// -----------------------------------------------------------------------------

func skepticismItem() *Schema {
	return Obj("skeptical analysis for one idea", map[string]*Schema{
		"idea_index":       Int("index of the idea", 0),
		"critical_flaws":   ArrBounded("fundamental flaws", titledItem("one flaw"), 1, 0),
		"risks_challenges": ArrBounded("risks and challenges", titledItem("one risk"), 1, 0),
		"questionable_assumptions": ArrBounded("assumptions that may not hold", Obj("one assumption/concern pair", map[string]*Schema{
			"assumption": StrMin("the assumption", 1),
			"concern":    StrMin("why it is questionable", 1),
		}, "assumption", "concern"), 1, 0),
		"missing_considerations": ArrBounded("overlooked aspects", Obj("one overlooked aspect", map[string]*Schema{
			"aspect":     StrMin("the aspect", 1),
			"importance": StrMin("why it matters", 1),
		}, "aspect", "importance"), 1, 0),
	}, "idea_index", "critical_flaws", "risks_challenges", "questionable_assumptions", "missing_considerations")
}

// SkepticismResponse is the single-idea Skeptic contract.
var SkepticismResponse = register(func() *Schema {
	s := skepticismItem()
	s.Name = NameSkepticismResponse
	return s
}())

// SkepticismBatch wraps SkepticismResponse for batch calls.
var SkepticismBatch = register(func() *Schema {
	s := Obj("skepticism for every input idea, in input order", map[string]*Schema{
		"skepticisms": ArrBounded("one per idea", skepticismItem(), 1, 0),
	}, "skepticisms")
	s.Name = NameSkepticismBatch
	return s
}())

// -----------------------------------------------------------------------------
// Improver
// -----------------------------------------------------------------------------

func improvementItem() *Schema {
	return Obj("improved rewrite of one idea", map[string]*Schema{
		"idea_index":           Int("index of the idea", 0),
		"improved_idea":        StrMin("the full improved idea text, nothing else", 1),
		"key_improvements":     Arr("what changed and why", Str("one improvement")),
		"implementation_steps": Arr("concrete next steps", Str("one step")),
		"differentiators":      Arr("what sets it apart", Str("one differentiator")),
	}, "idea_index", "improved_idea")
}

// ImprovementResponse is the single-idea Improver contract.
var ImprovementResponse = register(func() *Schema {
	s := improvementItem()
	s.Name = NameImprovementResponse
	return s
}())

// ImprovementBatch wraps ImprovementResponse for batch calls.
var ImprovementBatch = register(func() *Schema {
	s := Obj("improved rewrites for every input idea, in input order", map[string]*Schema{
		"improvements": ArrBounded("one per idea", improvementItem(), 1, 0),
	}, "improvements")
	s.Name = NameImprovementBatch
	return s
}())

// -----------------------------------------------------------------------------
// Multi-dimensional evaluation
// -----------------------------------------------------------------------------

func multiDimItem() *Schema {
	return Obj("seven-dimension scores for one idea", map[string]*Schema{
		"idea_index":         Int("index of the idea", 0),
		"feasibility":        Num("technical and organizational feasibility", 0, 10),
		"innovation":         Num("novelty of the approach", 0, 10),
		"impact":             Num("potential positive impact", 0, 10),
		"cost_effectiveness": Num("value relative to cost", 0, 10),
		"scalability":        Num("ability to grow", 0, 10),
		"risk_assessment":    Num("inverse risk: higher is safer", 0, 10),
		"timeline":           Num("speed to realization", 0, 10),
	}, "idea_index", "feasibility", "innovation", "impact", "cost_effectiveness",
		"scalability", "risk_assessment", "timeline")
}

// MultiDimBatch is the multi-dimensional evaluator contract: one
// seven-dimension object per idea, in input order.
var MultiDimBatch = register(func() *Schema {
	s := Obj("dimension scores for every input idea, in input order", map[string]*Schema{
		"evaluations": ArrBounded("one per idea", multiDimItem(), 1, 0),
	}, "evaluations")
	s.Name = NameMultiDimBatch
	return s
}())

// -----------------------------------------------------------------------------
// Logical inference
// -----------------------------------------------------------------------------

func inferenceItem(analysisType string) *Schema {
	props := map[string]*Schema{
		"idea_index":      Int("index of the idea", 0),
		"inference_chain": ArrBounded("ordered reasoning steps", Str("one step"), 1, 0),
		"conclusion":      StrMin("final conclusion", 1),
		"confidence":      Num("confidence in the conclusion", 0, 1),
		"improvements":    Str("suggested improvements"),
	}
	required := []string{"idea_index", "inference_chain", "conclusion", "confidence"}

	switch analysisType {
	case "causal":
		props["causal_chain"] = ArrBounded("cause-effect chain", Str("one link"), 1, 0)
		required = append(required, "causal_chain")
	case "constraint":
		props["constraint_satisfaction"] = StrMin("how the stated constraints are satisfied", 1)
		required = append(required, "constraint_satisfaction")
	case "contradiction":
		props["contradictions"] = Arr("internal contradictions found", Str("one contradiction"))
		required = append(required, "contradictions")
	case "implications":
		props["implications"] = ArrBounded("downstream implications", Str("one implication"), 1, 0)
		required = append(required, "implications")
	}

	return Obj("logical analysis for one idea", props, required...)
}

// InferenceResult returns the single-idea inference contract for the given
// analysis type ("full", "causal", "constraint", "contradiction",
// "implications").
func InferenceResult(analysisType string) *Schema {
	s := inferenceItem(analysisType)
	s.Name = fmt.Sprintf("%s:%s", NameInferenceResult, analysisType)
	return s
}

// InferenceBatch wraps InferenceResult for batch calls.
func InferenceBatch(analysisType string) *Schema {
	s := Obj("logical analysis for every input idea, in input order", map[string]*Schema{
		"results": ArrBounded("one per idea", inferenceItem(analysisType), 1, 0),
	}, "results")
	s.Name = fmt.Sprintf("%s:%s", NameInferenceBatch, analysisType)
	return s
}

func init() {
	// Register the default (full) inference schemas so Get works by name.
	register(InferenceResult("full"))
	register(InferenceBatch("full"))
}
