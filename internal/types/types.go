// Package types defines the shared data model for the madspark pipeline:
// request inputs, ideas, evaluations, candidates, and LLM response metadata.
// All workflow state is transient; nothing here is persisted across runs.
package types

import (
	"time"
)

// =============================================================================
// REQUEST INPUTS
// =============================================================================

// Limits on multimodal attachments per request.
const (
	MaxMultimodalFiles = 20
	MaxMultimodalURLs  = 10
)

// RequestInputs carries the user topic and context plus optional multimodal
// attachments. Topic must be non-empty; context may be empty.
type RequestInputs struct {
	Topic           string   `json:"topic"`
	Context         string   `json:"context"`
	MultimodalFiles []string `json:"multimodal_files,omitempty"`
	MultimodalURLs  []string `json:"multimodal_urls,omitempty"`
}

// Validate checks the structural invariants of the inputs.
func (r RequestInputs) Validate() error {
	if r.Topic == "" {
		return &ValidationError{Field: "topic", Reason: "must not be empty"}
	}
	if len(r.MultimodalFiles) > MaxMultimodalFiles {
		return &ValidationError{Field: "multimodal_files", Reason: "at most 20 files per request"}
	}
	if len(r.MultimodalURLs) > MaxMultimodalURLs {
		return &ValidationError{Field: "multimodal_urls", Reason: "at most 10 URLs per request"}
	}
	return nil
}

// =============================================================================
// IDEAS AND EVALUATIONS
// =============================================================================

// Idea is a single generated idea. Index is unique within a workflow.
type Idea struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	KeyFeatures []string `json:"key_features,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// Evaluation is a critic's score and commentary for one idea.
type Evaluation struct {
	IdeaIndex  int      `json:"idea_index"`
	Score      float64  `json:"score"` // [0,10]
	Comment    string   `json:"comment"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
}

// TitledItem is a (title, description) pair used by advocacy and skepticism.
type TitledItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ConcernResponse pairs a raised concern with the advocate's response.
type ConcernResponse struct {
	Concern  string `json:"concern"`
	Response string `json:"response"`
}

// Advocacy is the advocate agent's case for one idea.
type Advocacy struct {
	IdeaIndex           int               `json:"idea_index"`
	Strengths           []TitledItem      `json:"strengths"`
	Opportunities       []TitledItem      `json:"opportunities"`
	AddressingConcerns  []ConcernResponse `json:"addressing_concerns"`
}

// AssumptionConcern pairs a questionable assumption with the concern it raises.
type AssumptionConcern struct {
	Assumption string `json:"assumption"`
	Concern    string `json:"concern"`
}

// MissingConsideration names an overlooked aspect and why it matters.
type MissingConsideration struct {
	Aspect     string `json:"aspect"`
	Importance string `json:"importance"`
}

// Skepticism is the skeptic agent's critical analysis for one idea.
type Skepticism struct {
	IdeaIndex               int                    `json:"idea_index"`
	CriticalFlaws           []TitledItem           `json:"critical_flaws"`
	RisksChallenges         []TitledItem           `json:"risks_challenges"`
	QuestionableAssumptions []AssumptionConcern    `json:"questionable_assumptions"`
	MissingConsiderations   []MissingConsideration `json:"missing_considerations"`
}

// =============================================================================
// MULTI-DIMENSIONAL EVALUATION
// =============================================================================

// Dimension names for the seven-dimension evaluation.
const (
	DimFeasibility       = "feasibility"
	DimInnovation        = "innovation"
	DimImpact            = "impact"
	DimCostEffectiveness = "cost_effectiveness"
	DimScalability       = "scalability"
	DimRiskAssessment    = "risk_assessment"
	DimTimeline          = "timeline"
)

// DimensionNames lists the seven dimensions in canonical order.
var DimensionNames = []string{
	DimFeasibility,
	DimInnovation,
	DimImpact,
	DimCostEffectiveness,
	DimScalability,
	DimRiskAssessment,
	DimTimeline,
}

// DefaultDimensionWeights sum to 1.0.
var DefaultDimensionWeights = map[string]float64{
	DimFeasibility:       0.20,
	DimInnovation:        0.15,
	DimImpact:            0.20,
	DimCostEffectiveness: 0.15,
	DimScalability:       0.10,
	DimRiskAssessment:    0.10,
	DimTimeline:          0.10,
}

// MultiDimEvaluation holds per-dimension scores and derived aggregates for
// one idea. Scores are clamped to [0,10]; ConfidenceInterval is in [0,1].
type MultiDimEvaluation struct {
	IdeaIndex          int                `json:"idea_index"`
	Scores             map[string]float64 `json:"scores"`
	OverallScore       float64            `json:"overall_score"`
	WeightedScore      float64            `json:"weighted_score"`
	ConfidenceInterval float64            `json:"confidence_interval"`
	Summary            string             `json:"summary,omitempty"`
}

// =============================================================================
// LOGICAL INFERENCE
// =============================================================================

// InferenceType selects the logical analysis performed per idea.
type InferenceType string

const (
	InferenceFull          InferenceType = "full"
	InferenceCausal        InferenceType = "causal"
	InferenceConstraint    InferenceType = "constraint"
	InferenceContradiction InferenceType = "contradiction"
	InferenceImplications  InferenceType = "implications"
)

// LogicalInference is the result of one logical analysis. The optional
// fields are populated depending on the analysis type.
type LogicalInference struct {
	InferenceChain []string `json:"inference_chain"`
	Conclusion     string   `json:"conclusion"`
	Confidence     float64  `json:"confidence"` // [0,1]
	Improvements   string   `json:"improvements,omitempty"`

	// Type-specific fields
	CausalChain            []string `json:"causal_chain,omitempty"`
	ConstraintSatisfaction string   `json:"constraint_satisfaction,omitempty"`
	Contradictions         []string `json:"contradictions,omitempty"`
	Implications           []string `json:"implications,omitempty"`
}

// =============================================================================
// CANDIDATES
// =============================================================================

// Candidate accumulates an idea's analysis across workflow stages.
// InitialScore is always set before advocacy or skepticism is attached;
// ScoreDelta = ImprovedScore - InitialScore.
type Candidate struct {
	OriginalIdea    Idea   `json:"original_idea"`
	InitialScore    float64 `json:"initial_score"`
	InitialCritique string  `json:"initial_critique"`

	Advocacy           *Advocacy           `json:"advocacy,omitempty"`
	AdvocacyText       string              `json:"advocacy_text,omitempty"`
	Skepticism         *Skepticism         `json:"skepticism,omitempty"`
	SkepticismText     string              `json:"skepticism_text,omitempty"`
	MultiDimEvaluation *MultiDimEvaluation `json:"multi_dim_evaluation,omitempty"`
	LogicalInference   *LogicalInference   `json:"logical_inference,omitempty"`

	ImprovedIdea     string  `json:"improved_idea"`
	ImprovedScore    float64 `json:"improved_score"`
	ImprovedCritique string  `json:"improved_critique"`

	ImprovedMultiDim *MultiDimEvaluation `json:"improved_multi_dim,omitempty"`

	ScoreDelta              float64 `json:"score_delta"`
	SimilarityScore         float64 `json:"similarity_score"` // [0,1]
	IsMeaningfulImprovement bool    `json:"is_meaningful_improvement"`
}

// =============================================================================
// LLM RESPONSE METADATA
// =============================================================================

// LLMResponseMeta captures provider-reported usage for one structured call.
type LLMResponseMeta struct {
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	TokensUsed    int       `json:"tokens_used"`
	LatencyMillis int64     `json:"latency_millis"`
	Cost          float64   `json:"cost"`
	Cached        bool      `json:"cached"`
	Timestamp     time.Time `json:"timestamp"`
}
