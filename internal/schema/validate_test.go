package schema

import (
	"strings"
	"testing"
)

func TestValidateRequiredField(t *testing.T) {
	s := Obj("test", map[string]*Schema{
		"title": StrMin("title", 1),
		"score": Num("score", 0, 10),
	}, "title", "score")

	err := s.Validate(map[string]interface{}{"title": "hello"})
	if err == nil {
		t.Fatal("expected missing required field to fail")
	}
	if !strings.Contains(err.Error(), "score") {
		t.Errorf("error should name the missing field, got: %v", err)
	}
}

func TestValidateNumericBounds(t *testing.T) {
	s := Obj("test", map[string]*Schema{
		"score": Num("score", 0, 10),
	}, "score")

	if err := s.Validate(map[string]interface{}{"score": 10.0}); err != nil {
		t.Errorf("boundary value 10 should pass: %v", err)
	}
	if err := s.Validate(map[string]interface{}{"score": 10.5}); err == nil {
		t.Error("score 10.5 should fail the maximum")
	}
	if err := s.Validate(map[string]interface{}{"score": -0.1}); err == nil {
		t.Error("score -0.1 should fail the minimum")
	}
}

func TestValidateMinItems(t *testing.T) {
	s := Obj("test", map[string]*Schema{
		"items": ArrBounded("items", Str("one item"), 2, 0),
	}, "items")

	err := s.Validate(map[string]interface{}{"items": []interface{}{"a"}})
	if err == nil {
		t.Fatal("one item should fail minItems=2")
	}
	if err := s.Validate(map[string]interface{}{"items": []interface{}{"a", "b"}}); err != nil {
		t.Errorf("two items should pass: %v", err)
	}
}

func TestValidateErrorPath(t *testing.T) {
	s := Obj("test", map[string]*Schema{
		"ideas": Arr("ideas", Obj("idea", map[string]*Schema{
			"title": StrMin("title", 1),
		}, "title")),
	}, "ideas")

	err := s.Validate(map[string]interface{}{
		"ideas": []interface{}{
			map[string]interface{}{"title": "ok"},
			map[string]interface{}{},
		},
	})
	if err == nil {
		t.Fatal("second idea missing title should fail")
	}
	if !strings.Contains(err.Error(), "ideas[1]") {
		t.Errorf("error path should point at ideas[1], got: %v", err)
	}
}

func TestRegistryContainsAgentSchemas(t *testing.T) {
	for _, name := range []string{
		NameGeneratedIdeas,
		NameCriticEvaluations,
		NameAdvocacyResponse,
		NameAdvocacyBatch,
		NameSkepticismResponse,
		NameSkepticismBatch,
		NameImprovementResponse,
		NameImprovementBatch,
		NameMultiDimBatch,
	} {
		if _, err := Get(name); err != nil {
			t.Errorf("schema %s should be registered: %v", name, err)
		}
	}
}

func TestInferenceSchemasCarryTypeFields(t *testing.T) {
	causal := InferenceResult("causal")
	if _, ok := causal.Properties["causal_chain"]; !ok {
		t.Error("causal schema should require causal_chain")
	}
	constraint := InferenceResult("constraint")
	if _, ok := constraint.Properties["constraint_satisfaction"]; !ok {
		t.Error("constraint schema should require constraint_satisfaction")
	}
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	a := GeneratedIdeas.CanonicalJSON()
	b := GeneratedIdeas.CanonicalJSON()
	if a != b {
		t.Error("canonical JSON should be deterministic")
	}
	if a == "" {
		t.Error("canonical JSON should be non-empty")
	}
}

func TestSchemaIDPrefersName(t *testing.T) {
	if GeneratedIdeas.ID() != NameGeneratedIdeas {
		t.Errorf("named schema ID should be its name, got %q", GeneratedIdeas.ID())
	}
	anon := Obj("anon", map[string]*Schema{"x": Str("x")})
	if anon.ID() == "" {
		t.Error("anonymous schema ID should fall back to canonical JSON")
	}
}
