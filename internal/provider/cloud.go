package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"madspark/internal/logging"
	"madspark/internal/types"
)

// CloudName identifies the hosted Gemini backend.
const CloudName = "cloud"

// defaultCloudModel is used when no model override is configured.
const defaultCloudModel = "gemini-2.5-flash"

// placeholderKeys are rejected during API-key validation. Users copy these
// out of sample configs more often than you would hope.
var placeholderKeys = []string{
	"your_api_key",
	"your-api-key",
	"your_api_key_here",
	"your-api-key-here",
	"api_key_here",
	"placeholder",
	"changeme",
	"xxx",
}

// CloudProvider executes structured generations against the Gemini API.
// It is the only backend that supports images, documents, and URL
// references natively.
type CloudProvider struct {
	client *genai.Client
	model  string
}

// ValidateAPIKey rejects empty keys and well-known placeholder strings.
func ValidateAPIKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return &types.ConfigurationError{Reason: "CLOUD_API_KEY is not set"}
	}
	lower := strings.ToLower(trimmed)
	for _, placeholder := range placeholderKeys {
		if lower == placeholder {
			return &types.ConfigurationError{Reason: fmt.Sprintf("CLOUD_API_KEY looks like a placeholder (%q)", trimmed)}
		}
	}
	return nil
}

// NewCloudProvider creates the Gemini-backed provider.
func NewCloudProvider(ctx context.Context, apiKey, model string) (*CloudProvider, error) {
	if err := ValidateAPIKey(apiKey); err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultCloudModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, &UnavailableError{Provider: CloudName, Err: fmt.Errorf("failed to create genai client: %w", err)}
	}

	logging.Provider("Cloud provider configured with model %s", model)
	return &CloudProvider{client: client, model: model}, nil
}

// Name implements Provider.
func (c *CloudProvider) Name() string { return CloudName }

// Model implements Provider.
func (c *CloudProvider) Model() string { return c.model }

// SupportsMultimodal implements Provider. Gemini models accept images,
// documents, and URL grounding.
func (c *CloudProvider) SupportsMultimodal() bool { return true }

// CostPerToken implements Provider.
func (c *CloudProvider) CostPerToken() float64 { return costPerToken(c.model) }

// HealthCheck implements Provider. The client validates the key lazily, so
// a constructed client with a key counts as healthy; transport errors show
// up on the first call and trigger fallback there.
func (c *CloudProvider) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		return &UnavailableError{Provider: CloudName, Err: fmt.Errorf("client not initialized")}
	}
	return nil
}

// GenerateStructured implements Provider.
func (c *CloudProvider) GenerateStructured(ctx context.Context, req Request) (*Response, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}

	for _, path := range req.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &types.ValidationError{Field: "files", Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeTypeFor(path)))
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema.ToGenAI(),
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	// URL references ride on the prompt with the URL-context tool enabled,
	// so the model fetches them itself.
	if len(req.URLs) > 0 {
		config.Tools = append(config.Tools, &genai.Tool{URLContext: &genai.URLContext{}})
		var sb strings.Builder
		sb.WriteString("\n\nReference URLs:\n")
		for _, u := range req.URLs {
			sb.WriteString("- " + u + "\n")
		}
		parts = append(parts, genai.NewPartFromText(sb.String()))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	logging.APIDebug("[cloud] GenerateContent model=%s schema=%s temp=%.2f files=%d urls=%d",
		c.model, req.Schema.ID(), req.Temperature, len(req.Files), len(req.URLs))

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	latency := time.Since(start)
	if err != nil {
		logging.Get(logging.CategoryProvider).Warn("[cloud] request failed after %v: %v", latency, err)
		return nil, &UnavailableError{Provider: CloudName, Err: err}
	}

	record, err := parseStructured(result.Text(), req.Schema)
	if err != nil {
		return nil, err
	}

	tokens := 0
	if result.UsageMetadata != nil {
		tokens = int(result.UsageMetadata.TotalTokenCount)
	}

	return &Response{
		Record: record,
		Meta: types.LLMResponseMeta{
			Provider:      CloudName,
			Model:         c.model,
			TokensUsed:    tokens,
			LatencyMillis: latency.Milliseconds(),
			Cost:          float64(tokens) * c.CostPerToken(),
			Cached:        false,
			Timestamp:     time.Now(),
		},
	}, nil
}

// mimeTypeFor guesses a MIME type from the file extension.
func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
