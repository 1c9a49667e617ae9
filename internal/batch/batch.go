// Package batch prepares inputs for the batched agent calls, merges their
// results back into candidates, and runs batch functions on a bounded worker
// pool with timeouts.
package batch

import (
	"fmt"
	"strings"

	"madspark/internal/agents"
	"madspark/internal/logging"
	"madspark/internal/types"
)

// Placeholders substituted when a stage produces nothing for a candidate.
const (
	NoEvaluation  = "No evaluation available"
	NoAdvocacy    = "No advocacy generated"
	NoSkepticism  = "No skepticism generated"
	NoImprovement = "No improvement generated"
	NotAvailable  = "N/A"
	StageFailed   = "N/A (stage failed)"
)

// =============================================================================
// INPUT PREPARATION
// =============================================================================

// PrepareAdvocacyInput builds the advocate batch items from scored candidates.
func PrepareAdvocacyInput(candidates []types.Candidate) []agents.AdvocacyInput {
	items := make([]agents.AdvocacyInput, len(candidates))
	for i, c := range candidates {
		evaluation := c.InitialCritique
		if evaluation == "" {
			evaluation = NotAvailable
		}
		items[i] = agents.AdvocacyInput{
			IdeaIndex:  i,
			Idea:       ideaText(c.OriginalIdea),
			Evaluation: fmt.Sprintf("Score %.1f/10. %s", c.InitialScore, evaluation),
		}
	}
	return items
}

// PrepareSkepticismInput builds the skeptic batch items. Candidates without
// advocacy get "N/A".
func PrepareSkepticismInput(candidates []types.Candidate) []agents.SkepticismInput {
	items := make([]agents.SkepticismInput, len(candidates))
	for i, c := range candidates {
		advocacy := c.AdvocacyText
		if advocacy == "" {
			advocacy = NotAvailable
		}
		items[i] = agents.SkepticismInput{
			IdeaIndex: i,
			Idea:      ideaText(c.OriginalIdea),
			Advocacy:  advocacy,
		}
	}
	return items
}

// PrepareImprovementInput builds the improver batch items. Absent analysis
// fields get "N/A".
func PrepareImprovementInput(candidates []types.Candidate) []agents.ImprovementInput {
	items := make([]agents.ImprovementInput, len(candidates))
	for i, c := range candidates {
		items[i] = agents.ImprovementInput{
			IdeaIndex:        i,
			Idea:             ideaText(c.OriginalIdea),
			Critique:         orNA(c.InitialCritique),
			Advocacy:         orNA(c.AdvocacyText),
			Skepticism:       orNA(c.SkepticismText),
			LogicalInference: inferenceText(c.LogicalInference),
		}
	}
	return items
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

func ideaText(idea types.Idea) string {
	if idea.Description == "" {
		return idea.Title
	}
	return idea.Title + ": " + idea.Description
}

func inferenceText(inf *types.LogicalInference) string {
	if inf == nil {
		return ""
	}
	return fmt.Sprintf("%s (confidence %.2f)", inf.Conclusion, inf.Confidence)
}

// =============================================================================
// RESULT MERGING
// =============================================================================

// UpdateAdvocacies merges advocate batch outputs into candidates by index.
// Missing results get the documented placeholder; other candidates are
// unaffected.
func UpdateAdvocacies(candidates []types.Candidate, results []*types.Advocacy) {
	for i := range candidates {
		if i < len(results) && results[i] != nil {
			candidates[i].Advocacy = results[i]
			candidates[i].AdvocacyText = FormatAdvocacy(results[i])
			continue
		}
		candidates[i].AdvocacyText = NoAdvocacy
		logging.BatchDebug("no advocacy for candidate %d, using placeholder", i)
	}
}

// UpdateSkepticisms merges skeptic batch outputs into candidates by index.
func UpdateSkepticisms(candidates []types.Candidate, results []*types.Skepticism) {
	for i := range candidates {
		if i < len(results) && results[i] != nil {
			candidates[i].Skepticism = results[i]
			candidates[i].SkepticismText = FormatSkepticism(results[i])
			continue
		}
		candidates[i].SkepticismText = NoSkepticism
		logging.BatchDebug("no skepticism for candidate %d, using placeholder", i)
	}
}

// UpdateImprovements merges improver batch outputs. A missing improvement
// falls back to the original idea text so the candidate still ranks.
func UpdateImprovements(candidates []types.Candidate, results []*agents.Improvement) {
	for i := range candidates {
		if i < len(results) && results[i] != nil && results[i].ImprovedIdea != "" {
			candidates[i].ImprovedIdea = results[i].ImprovedIdea
			continue
		}
		candidates[i].ImprovedIdea = ideaText(candidates[i].OriginalIdea)
		logging.BatchDebug("no improvement for candidate %d, keeping original idea", i)
	}
}

// UpdateEvaluations merges critic batch outputs. Missing evaluations get
// score 0 and the documented placeholder comment.
func UpdateEvaluations(candidates []types.Candidate, results []*types.Evaluation) {
	for i := range candidates {
		if i < len(results) && results[i] != nil {
			candidates[i].InitialScore = results[i].Score
			candidates[i].InitialCritique = results[i].Comment
			continue
		}
		candidates[i].InitialScore = 0
		candidates[i].InitialCritique = NoEvaluation
		logging.Get(logging.CategoryBatch).Warn("no evaluation for candidate %d, scoring 0", i)
	}
}

// =============================================================================
// TEXT RENDERING
// =============================================================================

// FormatAdvocacy flattens a structured advocacy into prompt-ready text.
func FormatAdvocacy(adv *types.Advocacy) string {
	if adv == nil {
		return NoAdvocacy
	}
	var b strings.Builder
	b.WriteString("STRENGTHS:\n")
	for _, s := range adv.Strengths {
		fmt.Fprintf(&b, "- %s: %s\n", s.Title, s.Description)
	}
	b.WriteString("OPPORTUNITIES:\n")
	for _, o := range adv.Opportunities {
		fmt.Fprintf(&b, "- %s: %s\n", o.Title, o.Description)
	}
	b.WriteString("ADDRESSING CONCERNS:\n")
	for _, c := range adv.AddressingConcerns {
		fmt.Fprintf(&b, "- %s -> %s\n", c.Concern, c.Response)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSkepticism flattens a structured skepticism into prompt-ready text.
func FormatSkepticism(sk *types.Skepticism) string {
	if sk == nil {
		return NoSkepticism
	}
	var b strings.Builder
	b.WriteString("CRITICAL FLAWS:\n")
	for _, f := range sk.CriticalFlaws {
		fmt.Fprintf(&b, "- %s: %s\n", f.Title, f.Description)
	}
	b.WriteString("RISKS AND CHALLENGES:\n")
	for _, r := range sk.RisksChallenges {
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Description)
	}
	b.WriteString("QUESTIONABLE ASSUMPTIONS:\n")
	for _, a := range sk.QuestionableAssumptions {
		fmt.Fprintf(&b, "- %s: %s\n", a.Assumption, a.Concern)
	}
	b.WriteString("MISSING CONSIDERATIONS:\n")
	for _, m := range sk.MissingConsiderations {
		fmt.Fprintf(&b, "- %s: %s\n", m.Aspect, m.Importance)
	}
	return strings.TrimRight(b.String(), "\n")
}
