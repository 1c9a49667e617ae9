package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"madspark/internal/agents"
	"madspark/internal/types"
)

func sampleCandidates() []types.Candidate {
	return []types.Candidate{
		{
			OriginalIdea:    types.Idea{Index: 0, Title: "A", Description: "first idea"},
			InitialScore:    8,
			InitialCritique: "solid",
			AdvocacyText:    "STRENGTHS:\n- good",
		},
		{
			OriginalIdea: types.Idea{Index: 1, Title: "B", Description: "second idea"},
			InitialScore: 6,
		},
	}
}

func TestPrepareAdvocacyInput(t *testing.T) {
	items := PrepareAdvocacyInput(sampleCandidates())
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].IdeaIndex != 0 || items[1].IdeaIndex != 1 {
		t.Error("items should carry their positions")
	}
	if items[1].Evaluation != "Score 6.0/10. N/A" {
		t.Errorf("absent critique should render N/A, got %q", items[1].Evaluation)
	}
}

func TestPrepareSkepticismInputDefaultsNA(t *testing.T) {
	items := PrepareSkepticismInput(sampleCandidates())
	if items[1].Advocacy != NotAvailable {
		t.Errorf("absent advocacy should be N/A, got %q", items[1].Advocacy)
	}
	if items[0].Advocacy == NotAvailable {
		t.Error("present advocacy should be carried through")
	}
}

func TestPrepareImprovementInputDefaultsNA(t *testing.T) {
	items := PrepareImprovementInput(sampleCandidates())
	if items[1].Critique != NotAvailable || items[1].Skepticism != NotAvailable {
		t.Error("absent fields should default to N/A")
	}
	if items[0].Critique != "solid" {
		t.Errorf("present critique carried through, got %q", items[0].Critique)
	}
}

func TestUpdateAdvocaciesPlaceholders(t *testing.T) {
	candidates := sampleCandidates()
	results := []*types.Advocacy{
		{IdeaIndex: 0, Strengths: []types.TitledItem{{Title: "S", Description: "d"}}},
		nil,
	}
	UpdateAdvocacies(candidates, results)

	if candidates[0].Advocacy == nil {
		t.Error("candidate 0 should carry its advocacy")
	}
	if candidates[1].AdvocacyText != NoAdvocacy {
		t.Errorf("candidate 1 should carry the placeholder, got %q", candidates[1].AdvocacyText)
	}
}

func TestUpdateEvaluationsMismatchedLengths(t *testing.T) {
	// 3 real evaluations for 10 candidates: the rest score 0 with the
	// documented placeholder.
	candidates := make([]types.Candidate, 10)
	for i := range candidates {
		candidates[i] = types.Candidate{OriginalIdea: types.Idea{Index: i}}
	}
	results := make([]*types.Evaluation, 10)
	for i := 0; i < 3; i++ {
		results[i] = &types.Evaluation{IdeaIndex: i, Score: 7, Comment: "real"}
	}

	UpdateEvaluations(candidates, results)

	scored := 0
	for i, c := range candidates {
		if i < 3 {
			if c.InitialScore != 7 {
				t.Errorf("candidate %d should carry its real score", i)
			}
			scored++
			continue
		}
		if c.InitialScore != 0 || c.InitialCritique != NoEvaluation {
			t.Errorf("candidate %d should have score 0 and placeholder, got %.1f %q",
				i, c.InitialScore, c.InitialCritique)
		}
	}
	if scored != 3 {
		t.Errorf("expected 3 scored candidates, got %d", scored)
	}
}

func TestUpdateImprovementsKeepsOriginal(t *testing.T) {
	candidates := sampleCandidates()
	UpdateImprovements(candidates, []*agents.Improvement{
		{IdeaIndex: 0, ImprovedIdea: "A but better"},
		nil,
	})
	if candidates[0].ImprovedIdea != "A but better" {
		t.Error("candidate 0 should carry its improvement")
	}
	if candidates[1].ImprovedIdea != "B: second idea" {
		t.Errorf("candidate 1 should fall back to the original idea text, got %q", candidates[1].ImprovedIdea)
	}
}

func TestFormatAdvocacyNil(t *testing.T) {
	if FormatAdvocacy(nil) != NoAdvocacy {
		t.Error("nil advocacy should render the placeholder")
	}
	if FormatSkepticism(nil) != NoSkepticism {
		t.Error("nil skepticism should render the placeholder")
	}
}

func TestPoolRunsTasks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	p := NewPool(4)
	defer p.Shutdown()

	results := make(chan int, 10)
	for i := 0; i < 10; i++ {
		i := i
		if err := p.Submit(context.Background(), func() { results <- i }); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	seen := map[int]bool{}
	for i := 0; i < 10; i++ {
		seen[<-results] = true
	}
	if len(seen) != 10 {
		t.Errorf("expected 10 distinct results, got %d", len(seen))
	}
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := NewPool(1)
	p.Shutdown()
	if err := p.Submit(context.Background(), func() {}); err == nil {
		t.Error("submit after shutdown should fail")
	}
	// A second shutdown is a no-op.
	p.Shutdown()
}

func TestRunWithTimeoutCompletes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	p := NewPool(1)
	defer p.Shutdown()

	err := p.RunWithTimeout(context.Background(), "fast", 5, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("fast task should complete: %v", err)
	}
}

func TestRunWithTimeoutExpires(t *testing.T) {
	p := NewPool(1)
	defer p.Shutdown()

	start := time.Now()
	err := p.RunWithTimeout(context.Background(), "slow", 0.05, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	var te *types.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout should fire promptly, took %v", elapsed)
	}
}
