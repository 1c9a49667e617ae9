package agents

import (
	"context"
	"strings"
	"testing"

	"madspark/internal/config"
	"madspark/internal/provider"
	"madspark/internal/retry"
	"madspark/internal/router"
	"madspark/internal/types"
)

func mockClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.CacheEnabled = false
	mock := provider.NewMockProvider()
	r, err := router.New(router.Options{Local: mock, Cloud: mock, Config: cfg})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	temps, err := config.NewTemperatureManager(config.PresetBalanced)
	if err != nil {
		t.Fatalf("temps: %v", err)
	}
	c := NewClient(r, temps)
	c.Retry = retry.Config{MaxRetries: 0, InitialDelay: 1}
	return c
}

func TestGenerateIdeasMock(t *testing.T) {
	c := mockClient(t)
	ideas, meta, err := c.GenerateIdeas(context.Background(), types.RequestInputs{Topic: "urban farming"}, 5)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(ideas) != 5 {
		t.Fatalf("asked for 5 ideas, got %d", len(ideas))
	}
	for i, idea := range ideas {
		if idea.Index != i {
			t.Errorf("idea %d carries index %d", i, idea.Index)
		}
		if idea.Title == "" || idea.Description == "" {
			t.Errorf("idea %d missing required fields", i)
		}
	}
	if meta.Provider != provider.MockName {
		t.Errorf("expected mock provider, got %s", meta.Provider)
	}
}

func TestGenerateIdeasValidatesInputs(t *testing.T) {
	c := mockClient(t)
	if _, _, err := c.GenerateIdeas(context.Background(), types.RequestInputs{}, 5); err == nil {
		t.Error("empty topic should fail validation")
	}
	if _, _, err := c.GenerateIdeas(context.Background(), types.RequestInputs{Topic: "x"}, 0); err == nil {
		t.Error("zero ideas should fail validation")
	}
	if _, _, err := c.GenerateIdeas(context.Background(), types.RequestInputs{Topic: "x"}, 21); err == nil {
		t.Error("21 ideas should fail validation")
	}
}

func TestEvaluateIdeasMockScore(t *testing.T) {
	c := mockClient(t)
	ideas := []types.Idea{
		{Index: 0, Title: "A", Description: "first"},
		{Index: 1, Title: "B", Description: "second"},
		{Index: 2, Title: "C", Description: "third"},
	}
	evals, _, err := c.EvaluateIdeas(context.Background(), ideas, "topic", "")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(evals) != len(ideas) {
		t.Fatalf("expected %d aligned slots, got %d", len(ideas), len(evals))
	}
	for i, ev := range evals {
		if ev == nil {
			t.Fatalf("missing evaluation for idea %d", i)
		}
		if ev.Score != provider.MockScore {
			t.Errorf("mock critic score should be %.1f, got %.1f", provider.MockScore, ev.Score)
		}
		if ev.IdeaIndex != i {
			t.Errorf("evaluation %d realigned to index %d", i, ev.IdeaIndex)
		}
	}
}

func TestAdvocateBatchAligned(t *testing.T) {
	c := mockClient(t)
	items := []AdvocacyInput{
		{IdeaIndex: 0, Idea: "A", Evaluation: "Score 8.0"},
		{IdeaIndex: 1, Idea: "B", Evaluation: "Score 7.0"},
	}
	results, _, err := c.AdvocateBatch(context.Background(), items, "topic", "")
	if err != nil {
		t.Fatalf("advocate batch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(results))
	}
	for i, adv := range results {
		if adv == nil {
			t.Fatalf("missing advocacy for idea %d", i)
		}
		if len(adv.Strengths) == 0 || len(adv.Opportunities) == 0 || len(adv.AddressingConcerns) == 0 {
			t.Errorf("advocacy %d has empty sections", i)
		}
	}
}

func TestSkepticBatchAligned(t *testing.T) {
	c := mockClient(t)
	items := []SkepticismInput{
		{IdeaIndex: 0, Idea: "A", Advocacy: "N/A"},
		{IdeaIndex: 1, Idea: "B", Advocacy: "N/A"},
	}
	results, _, err := c.SkepticBatch(context.Background(), items, "topic", "")
	if err != nil {
		t.Fatalf("skeptic batch failed: %v", err)
	}
	for i, sk := range results {
		if sk == nil {
			t.Fatalf("missing skepticism for idea %d", i)
		}
		if len(sk.CriticalFlaws) == 0 || len(sk.MissingConsiderations) == 0 {
			t.Errorf("skepticism %d has empty sections", i)
		}
	}
}

func TestImproveBatch(t *testing.T) {
	c := mockClient(t)
	items := []ImprovementInput{
		{IdeaIndex: 0, Idea: "A", Critique: "too vague", Advocacy: "N/A", Skepticism: "N/A"},
	}
	results, _, err := c.ImproveBatch(context.Background(), items, "topic", "")
	if err != nil {
		t.Fatalf("improve batch failed: %v", err)
	}
	if results[0] == nil || results[0].ImprovedIdea == "" {
		t.Fatal("improved_idea is required")
	}
}

func TestSanitizeImprovedIdea(t *testing.T) {
	cases := map[string]string{
		"Here's the improved idea: Build rooftop gardens.": "Build rooftop gardens.",
		"Here is an improved version: Use hydroponics.":    "Use hydroponics.",
		"Improved idea: Solar panels.":                     "Solar panels.",
		"Build vertical farms.":                            "Build vertical farms.",
		"  padded  ":                                       "padded",
	}
	for in, want := range cases {
		if got := SanitizeImprovedIdea(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBatchPromptsStateExactCount(t *testing.T) {
	items := []AdvocacyInput{{Idea: "A"}, {Idea: "B"}, {Idea: "C"}}
	prompt := advocacyBatchPrompt(items, "topic", "")
	if want := "exactly 3"; !strings.Contains(prompt, want) {
		t.Errorf("batch prompt should state %q", want)
	}
	if !strings.HasPrefix(prompt, LanguageConsistency) {
		t.Error("every prompt should lead with the language-consistency instruction")
	}
}
