package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"madspark/internal/logging"
	"madspark/internal/types"
)

// LocalName identifies the local inference backend.
const LocalName = "local"

// Defaults for the local inference server.
const (
	defaultLocalHost    = "http://localhost:11434"
	defaultLocalTimeout = 600 * time.Second
	defaultLocalModel   = "llama3.1:8b"

	// Token budget: baseline plus headroom per schema field.
	localTokenBaseline = 1000
	localTokensPerField = 400
)

// multimodalPrefixes are local model families that accept images.
var multimodalPrefixes = []string{
	"llava",
	"bakllava",
	"llama3.2-vision",
	"gemma3",
	"qwen2.5vl",
	"moondream",
	"minicpm-v",
}

// LocalProvider talks to an Ollama-compatible inference server over REST.
// Cost is always zero; token counts come from the server's eval counters.
type LocalProvider struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewLocalProvider creates a local provider against the given host
// (LOCAL_LLM_HOST, default http://localhost:11434).
func NewLocalProvider(host, model string, timeout time.Duration) *LocalProvider {
	if host == "" {
		host = defaultLocalHost
	}
	if model == "" {
		model = defaultLocalModel
	}
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}

	return &LocalProvider{
		host:  strings.TrimSuffix(host, "/"),
		model: model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name implements Provider.
func (l *LocalProvider) Name() string { return LocalName }

// Model implements Provider.
func (l *LocalProvider) Model() string { return l.model }

// SupportsMultimodal implements Provider: a name-prefix test against known
// vision-capable model families.
func (l *LocalProvider) SupportsMultimodal() bool {
	name := strings.ToLower(l.model)
	for _, prefix := range multimodalPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// CostPerToken implements Provider. Local inference is free.
func (l *LocalProvider) CostPerToken() float64 { return 0 }

// -----------------------------------------------------------------------------
// Ollama API types
// -----------------------------------------------------------------------------

type localChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64-encoded
}

type localChatRequest struct {
	Model    string                 `json:"model"`
	Messages []localChatMessage     `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   map[string]interface{} `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type localChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool  `json:"done"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

type localTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// -----------------------------------------------------------------------------
// Provider implementation
// -----------------------------------------------------------------------------

// HealthCheck implements Provider: lists models and verifies the configured
// model is present.
func (l *LocalProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", l.host+"/api/tags", nil)
	if err != nil {
		return &UnavailableError{Provider: LocalName, Err: err}
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return &UnavailableError{Provider: LocalName, Err: fmt.Errorf("cannot reach %s: %w", l.host, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UnavailableError{Provider: LocalName, Err: fmt.Errorf("model list returned status %d", resp.StatusCode)}
	}

	var tags localTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return &UnavailableError{Provider: LocalName, Err: fmt.Errorf("failed to parse model list: %w", err)}
	}

	for _, m := range tags.Models {
		if m.Name == l.model || strings.TrimSuffix(m.Name, ":latest") == l.model {
			return nil
		}
	}
	return &UnavailableError{Provider: LocalName, Err: fmt.Errorf("model %q not present on %s", l.model, l.host)}
}

// GenerateStructured implements Provider.
func (l *LocalProvider) GenerateStructured(ctx context.Context, req Request) (*Response, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if len(req.URLs) > 0 {
		return nil, &types.ValidationError{Field: "urls", Reason: "local provider does not support URL references"}
	}
	if len(req.Files) > 0 && !l.SupportsMultimodal() {
		return nil, &types.ValidationError{Field: "files", Reason: fmt.Sprintf("model %q is not multimodal", l.model)}
	}

	messages := make([]localChatMessage, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, localChatMessage{Role: "system", Content: req.SystemInstruction})
	}

	userMsg := localChatMessage{Role: "user", Content: req.Prompt}
	for _, path := range req.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &types.ValidationError{Field: "files", Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
		}
		userMsg.Images = append(userMsg.Images, base64.StdEncoding.EncodeToString(data))
	}
	messages = append(messages, userMsg)

	budget := localTokenBaseline + localTokensPerField*req.Schema.FieldCount()
	reqBody := localChatRequest{
		Model:    l.model,
		Messages: messages,
		Stream:   false,
		Format:   req.Schema.ToRawJSONSchema(),
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": budget,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.host+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &UnavailableError{Provider: LocalName, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	logging.APIDebug("[local] chat model=%s schema=%s temp=%.2f budget=%d",
		l.model, req.Schema.ID(), req.Temperature, budget)

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UnavailableError{Provider: LocalName, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnavailableError{Provider: LocalName, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UnavailableError{Provider: LocalName, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var chatResp localChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &UnavailableError{Provider: LocalName, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if chatResp.Error != "" {
		return nil, &UnavailableError{Provider: LocalName, Err: fmt.Errorf("server error: %s", chatResp.Error)}
	}

	latency := time.Since(start)
	record, err := parseStructured(chatResp.Message.Content, req.Schema)
	if err != nil {
		return nil, err
	}

	return &Response{
		Record: record,
		Meta: types.LLMResponseMeta{
			Provider:      LocalName,
			Model:         l.model,
			TokensUsed:    chatResp.PromptEvalCount + chatResp.EvalCount,
			LatencyMillis: latency.Milliseconds(),
			Cost:          0,
			Cached:        false,
			Timestamp:     time.Now(),
		},
	}, nil
}
