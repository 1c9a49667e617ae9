// Package workflow runs the idea pipeline end to end: generation, critique,
// top-K selection, parallel analysis, improvement, re-evaluation, and final
// ranking. Sync and async coordinators share the stage implementations.
package workflow

import (
	"regexp"
	"sort"
	"strings"

	"madspark/internal/types"
)

// Improvement thresholds: an improved idea counts as a meaningful
// improvement only when it moved far enough from the original text and
// gained at least half a point.
const (
	SimilarityThreshold = 0.75
	MinScoreDelta       = 0.5
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// similarity computes Jaccard similarity over normalized token sets.
// Identical texts score 1; disjoint texts score 0.
func similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		set[tok] = struct{}{}
	}
	return set
}

// finalizeCandidate derives the improvement verdict fields.
func finalizeCandidate(c *types.Candidate) {
	c.ScoreDelta = c.ImprovedScore - c.InitialScore
	c.SimilarityScore = similarity(ideaText(c.OriginalIdea), c.ImprovedIdea)
	c.IsMeaningfulImprovement = c.SimilarityScore <= SimilarityThreshold && c.ScoreDelta >= MinScoreDelta
}

// sortFinal orders candidates by improved score desc, then initial score
// desc, then original idea index asc.
func sortFinal(candidates []types.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ImprovedScore != b.ImprovedScore {
			return a.ImprovedScore > b.ImprovedScore
		}
		if a.InitialScore != b.InitialScore {
			return a.InitialScore > b.InitialScore
		}
		return a.OriginalIdea.Index < b.OriginalIdea.Index
	})
}

// selectTop keeps the k highest-scoring candidates after initial critique,
// breaking score ties by idea index.
func selectTop(candidates []types.Candidate, k int) []types.Candidate {
	sorted := make([]types.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].InitialScore != sorted[j].InitialScore {
			return sorted[i].InitialScore > sorted[j].InitialScore
		}
		return sorted[i].OriginalIdea.Index < sorted[j].OriginalIdea.Index
	})
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k]
}

func ideaText(idea types.Idea) string {
	if idea.Description == "" {
		return idea.Title
	}
	return idea.Title + ": " + idea.Description
}
