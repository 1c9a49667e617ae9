// Package provider implements the LLM backends that execute structured
// generations: a prompt plus a response schema in, a validated record plus
// usage metadata out. Three backends exist: the Gemini cloud API, an
// Ollama-compatible local server, and a deterministic mock for offline runs.
// Providers never retry; retry and fallback live one layer up.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"madspark/internal/schema"
	"madspark/internal/types"
)

// Request is one structured generation.
type Request struct {
	Prompt            string
	SystemInstruction string
	Schema            *schema.Schema
	Temperature       float64
	Files             []string // local file paths (images, documents)
	URLs              []string // remote references
}

// Response is a schema-validated record plus usage metadata.
type Response struct {
	Record map[string]interface{}
	Meta   types.LLMResponseMeta
}

// Provider is the two-method backend contract plus identity properties.
type Provider interface {
	// GenerateStructured executes the request and returns a record that
	// conforms to req.Schema, or an error.
	GenerateStructured(ctx context.Context, req Request) (*Response, error)
	// HealthCheck reports whether the backend can serve requests right now.
	HealthCheck(ctx context.Context) error

	Name() string
	Model() string
	SupportsMultimodal() bool
	CostPerToken() float64
}

// UnavailableError reports a backend that failed its health check or hit a
// transport error. The router treats it as a fallback trigger.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ValidateRequest checks request fields that must never reach a backend.
func ValidateRequest(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return &types.ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if req.Schema == nil {
		return &types.ValidationError{Field: "schema", Reason: "must not be nil"}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return &types.ValidationError{Field: "temperature", Reason: fmt.Sprintf("%.2f outside [0.0, 2.0]", req.Temperature)}
	}
	if len(req.Files) > types.MaxMultimodalFiles {
		return &types.ValidationError{Field: "files", Reason: "at most 20 files per request"}
	}
	if len(req.URLs) > types.MaxMultimodalURLs {
		return &types.ValidationError{Field: "urls", Reason: "at most 10 URLs per request"}
	}
	return nil
}

// parseStructured decodes raw model output into a record and validates it
// against the schema. Markdown code fences are stripped first; some local
// models wrap JSON despite being asked not to.
func parseStructured(raw string, s *schema.Schema) (map[string]interface{}, error) {
	cleaned := stripCodeFences(raw)

	var record map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &record); err != nil {
		return nil, &schema.ValidationError{
			Schema: s.ID(),
			Path:   "$",
			Reason: fmt.Sprintf("response is not valid JSON: %v", err),
		}
	}

	if err := s.Validate(record); err != nil {
		return nil, err
	}

	return record, nil
}

// stripCodeFences removes a leading ```json / ``` wrapper if present.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
