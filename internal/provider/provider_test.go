package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"madspark/internal/schema"
	"madspark/internal/types"
)

func TestValidateRequestBounds(t *testing.T) {
	base := Request{Prompt: "p", Schema: schema.GeneratedIdeas, Temperature: 0.7}

	if err := ValidateRequest(base); err != nil {
		t.Errorf("valid request should pass: %v", err)
	}

	for _, temp := range []float64{0, 2} {
		r := base
		r.Temperature = temp
		if err := ValidateRequest(r); err != nil {
			t.Errorf("boundary temperature %.1f should pass: %v", temp, err)
		}
	}
	for _, temp := range []float64{-0.1, 2.1} {
		r := base
		r.Temperature = temp
		if err := ValidateRequest(r); err == nil {
			t.Errorf("temperature %.1f should fail", temp)
		}
	}

	r := base
	r.Prompt = "  "
	if err := ValidateRequest(r); err == nil {
		t.Error("blank prompt should fail")
	}

	r = base
	r.Schema = nil
	if err := ValidateRequest(r); err == nil {
		t.Error("nil schema should fail")
	}

	r = base
	r.Files = make([]string, types.MaxMultimodalFiles+1)
	if err := ValidateRequest(r); err == nil {
		t.Error("21 files should fail")
	}

	r = base
	r.URLs = make([]string, types.MaxMultimodalURLs+1)
	if err := ValidateRequest(r); err == nil {
		t.Error("11 URLs should fail")
	}
}

func TestMockDeterministic(t *testing.T) {
	m := NewMockProvider()
	req := Request{Prompt: "generate ideas", Schema: schema.GeneratedIdeas, Temperature: 0}

	a, err := m.GenerateStructured(context.Background(), req)
	if err != nil {
		t.Fatalf("mock failed: %v", err)
	}
	b, _ := m.GenerateStructured(context.Background(), req)
	if !reflect.DeepEqual(a.Record, b.Record) {
		t.Error("mock output should be deterministic")
	}
}

func TestMockValidatesOwnOutput(t *testing.T) {
	m := NewMockProvider()
	for _, name := range schema.Names() {
		s, err := schema.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := m.GenerateStructured(context.Background(), Request{
			Prompt: "Return exactly 2 entries for the test", Schema: s, Temperature: 0,
		})
		if err != nil {
			t.Errorf("mock output for %s should validate: %v", name, err)
			continue
		}
		if err := s.Validate(resp.Record); err != nil {
			t.Errorf("round-trip validation failed for %s: %v", name, err)
		}
	}
}

func TestMockBatchCountFromPrompt(t *testing.T) {
	m := NewMockProvider()
	resp, err := m.GenerateStructured(context.Background(), Request{
		Prompt: "Return exactly 5 evaluations, one per idea.",
		Schema: schema.CriticEvaluations,
	})
	if err != nil {
		t.Fatalf("mock failed: %v", err)
	}
	evals := resp.Record["evaluations"].([]interface{})
	if len(evals) != 5 {
		t.Errorf("prompt asked for exactly 5, got %d", len(evals))
	}
	first := evals[0].(map[string]interface{})
	if first["score"] != MockScore {
		t.Errorf("mock critic score should be %.1f, got %v", MockScore, first["score"])
	}
}

func TestMockIdeaCountFromPrompt(t *testing.T) {
	m := NewMockProvider()
	resp, err := m.GenerateStructured(context.Background(), Request{
		Prompt: "Generate exactly 7 diverse ideas about urban farming.",
		Schema: schema.GeneratedIdeas,
	})
	if err != nil {
		t.Fatalf("mock failed: %v", err)
	}
	ideas := resp.Record["ideas"].([]interface{})
	if len(ideas) != 7 {
		t.Fatalf("prompt asked for exactly 7 ideas, got %d", len(ideas))
	}
	first := ideas[0].(map[string]interface{})["title"]
	second := ideas[1].(map[string]interface{})["title"]
	if first == second {
		t.Errorf("idea titles should be distinct, both %q", first)
	}
}

func TestMockHonorsCancellation(t *testing.T) {
	m := NewMockProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.GenerateStructured(ctx, Request{Prompt: "p", Schema: schema.GeneratedIdeas})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context should abort, got %v", err)
	}
}

func TestCloudAPIKeyValidation(t *testing.T) {
	for _, key := range []string{"", "YOUR_API_KEY", "your-api-key-here", "xxx", "placeholder", "changeme"} {
		if err := ValidateAPIKey(key); err == nil {
			t.Errorf("placeholder key %q should be rejected", key)
		}
	}
	if err := ValidateAPIKey("AIzaSyReal-looking-key-0123456789"); err != nil {
		t.Errorf("plausible key should pass: %v", err)
	}
}

func TestLocalMultimodalByName(t *testing.T) {
	cases := map[string]bool{
		"llava:13b":        true,
		"llama3.2-vision":  true,
		"gemma3:27b":       true,
		"qwen2.5vl:7b":     true,
		"moondream:latest": true,
		"llama3.1:8b":      false,
		"qwen2.5:32b":      false,
		"mistral:7b":       false,
	}
	for model, want := range cases {
		l := NewLocalProvider("", model, 0)
		if got := l.SupportsMultimodal(); got != want {
			t.Errorf("SupportsMultimodal(%s) = %v, want %v", model, got, want)
		}
	}
}

func TestLocalHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("health check should hit /api/tags, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]string{{"name": "llama3.1:8b"}},
		})
	}))
	defer srv.Close()

	l := NewLocalProvider(srv.URL, "llama3.1:8b", time.Second)
	if err := l.HealthCheck(context.Background()); err != nil {
		t.Errorf("present model should pass: %v", err)
	}

	missing := NewLocalProvider(srv.URL, "qwen2.5:32b", time.Second)
	err := missing.HealthCheck(context.Background())
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Errorf("absent model should fail with UnavailableError, got %v", err)
	}
}

func TestLocalGenerateStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat, got %s", r.URL.Path)
		}
		var req localChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Stream {
			t.Error("structured calls must not stream")
		}
		if req.Format == nil {
			t.Error("request should carry the schema as format")
		}
		if _, ok := req.Options["num_predict"]; !ok {
			t.Error("request should carry a token budget")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{
				"role":    "assistant",
				"content": `{"ideas":[{"title":"Rooftop greenhouse","description":"Grow vegetables on apartment roofs."}]}`,
			},
			"done":              true,
			"prompt_eval_count": 50,
			"eval_count":        30,
		})
	}))
	defer srv.Close()

	l := NewLocalProvider(srv.URL, "llama3.1:8b", time.Second)
	resp, err := l.GenerateStructured(context.Background(), Request{
		Prompt: "generate ideas", Schema: schema.GeneratedIdeas, Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp.Meta.TokensUsed != 80 {
		t.Errorf("tokens should sum prompt and eval counts, got %d", resp.Meta.TokensUsed)
	}
	if resp.Meta.Cost != 0 {
		t.Error("local inference is free")
	}
	if resp.Meta.Provider != LocalName {
		t.Errorf("provider should be local, got %s", resp.Meta.Provider)
	}
}

func TestLocalStripsCodeFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{
				"role":    "assistant",
				"content": "```json\n{\"ideas\":[{\"title\":\"T\",\"description\":\"D\"}]}\n```",
			},
			"done": true,
		})
	}))
	defer srv.Close()

	l := NewLocalProvider(srv.URL, "llama3.1:8b", time.Second)
	resp, err := l.GenerateStructured(context.Background(), Request{
		Prompt: "p", Schema: schema.GeneratedIdeas, Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("fenced JSON should still parse: %v", err)
	}
	if len(resp.Record["ideas"].([]interface{})) != 1 {
		t.Error("record should carry the parsed ideas")
	}
}

func TestLocalRejectsURLs(t *testing.T) {
	l := NewLocalProvider("", "llama3.1:8b", 0)
	_, err := l.GenerateStructured(context.Background(), Request{
		Prompt: "p", Schema: schema.GeneratedIdeas, URLs: []string{"https://example.com"},
	})
	var ve *types.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("URLs should be rejected with ValidationError, got %v", err)
	}
}

func TestLocalSchemaValidationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": `{"wrong":"shape"}`},
			"done":    true,
		})
	}))
	defer srv.Close()

	l := NewLocalProvider(srv.URL, "llama3.1:8b", time.Second)
	_, err := l.GenerateStructured(context.Background(), Request{
		Prompt: "p", Schema: schema.GeneratedIdeas, Temperature: 0.7,
	})
	var sve *schema.ValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("non-conforming output should fail schema validation, got %v", err)
	}
}

func TestPricingLongestPrefixWins(t *testing.T) {
	pro := costPerToken("gemini-2.5-pro")
	flash := costPerToken("gemini-2.5-flash")
	if pro <= flash {
		t.Errorf("pro pricing should exceed flash: %.9f vs %.9f", pro, flash)
	}
	if costPerToken("totally-unknown-model") != costPerToken(defaultCloudModel) {
		t.Error("unknown models should get the default pricing")
	}
}
