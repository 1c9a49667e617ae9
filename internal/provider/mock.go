package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"madspark/internal/schema"
	"madspark/internal/types"
)

// MockName identifies the offline deterministic backend.
const MockName = "mock"

// MockScore is the fixed score the mock critic hands out. Tests rely on it.
const MockScore = 8.0

// batchCountRe extracts the requested output count from batch prompts
// ("Return exactly 5 evaluations...").
var batchCountRe = regexp.MustCompile(`exactly (\d+)`)

// MockProvider fabricates schema-conformant records without any network
// access. MADSPARK_MODE=mock routes everything here; the records are
// deterministic so workflows are reproducible in tests and demos.
type MockProvider struct {
	model string
}

// NewMockProvider creates the offline backend.
func NewMockProvider() *MockProvider {
	return &MockProvider{model: "mock-model"}
}

// Name implements Provider.
func (m *MockProvider) Name() string { return MockName }

// Model implements Provider.
func (m *MockProvider) Model() string { return m.model }

// SupportsMultimodal implements Provider. The mock accepts anything.
func (m *MockProvider) SupportsMultimodal() bool { return true }

// CostPerToken implements Provider.
func (m *MockProvider) CostPerToken() float64 { return 0 }

// HealthCheck implements Provider.
func (m *MockProvider) HealthCheck(ctx context.Context) error { return nil }

// GenerateStructured implements Provider: walks the schema and fills every
// field deterministically.
func (m *MockProvider) GenerateStructured(ctx context.Context, req Request) (*Response, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// Honor cancellation so timeout tests behave like a real backend.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	n := 1
	if match := batchCountRe.FindStringSubmatch(req.Prompt); match != nil {
		if parsed, err := strconv.Atoi(match[1]); err == nil && parsed > 0 {
			n = parsed
		}
	} else if req.Schema.Name == schema.NameGeneratedIdeas {
		n = 4 // a workable default crop of ideas
	}

	value := m.fill(req.Schema, n, 0)
	record, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("mock: top-level schema %s is not an object", req.Schema.ID())
	}

	if err := req.Schema.Validate(record); err != nil {
		return nil, err
	}

	return &Response{
		Record: record,
		Meta: types.LLMResponseMeta{
			Provider:      MockName,
			Model:         m.model,
			TokensUsed:    len(req.Prompt) / 4,
			LatencyMillis: 0,
			Cost:          0,
			Cached:        false,
			Timestamp:     time.Now(),
		},
	}, nil
}

// fill produces a deterministic value for the schema node. idx is the
// current batch item index, used for idea_index fields.
func (m *MockProvider) fill(s *schema.Schema, n, idx int) interface{} {
	switch s.Type {
	case schema.TypeString:
		if len(s.Enum) > 0 {
			return s.Enum[0]
		}
		text := "Mock " + s.Description
		if s.MinLength != nil {
			for len(text) < *s.MinLength {
				text += " (mock)"
			}
		}
		return text

	case schema.TypeInteger:
		// idea_index fields carry the batch position.
		return float64(idx)

	case schema.TypeNumber:
		if s.Maximum != nil && *s.Maximum <= 1 {
			return 0.9
		}
		return MockScore

	case schema.TypeBoolean:
		return true

	case schema.TypeArray:
		count := 1
		if s.MinItems != nil && *s.MinItems > count {
			count = *s.MinItems
		}
		// Batch arrays (items carrying idea_index) get one entry per input.
		if s.Items != nil && s.Items.Type == schema.TypeObject {
			if _, hasIndex := s.Items.Properties["idea_index"]; hasIndex {
				count = n
			}
		}
		if s.MaxItems != nil && count > *s.MaxItems {
			count = *s.MaxItems
		}
		arr := make([]interface{}, count)
		for i := 0; i < count; i++ {
			itemIdx := idx
			if count == n {
				itemIdx = i
			}
			arr[i] = m.fill(s.Items, n, itemIdx)
		}
		return arr

	case schema.TypeObject:
		obj := make(map[string]interface{}, len(s.Properties))
		for name, prop := range s.Properties {
			if name == "idea_index" {
				obj[name] = float64(idx)
				continue
			}
			if name == "title" {
				obj[name] = fmt.Sprintf("Mock idea %d", idx+1)
				continue
			}
			// The generator's ideas list is sized by the requested count,
			// like the idea_index batch arrays.
			if name == "ideas" && prop.Type == schema.TypeArray && prop.Items != nil {
				count := n
				if prop.MinItems != nil && count < *prop.MinItems {
					count = *prop.MinItems
				}
				if prop.MaxItems != nil && count > *prop.MaxItems {
					count = *prop.MaxItems
				}
				arr := make([]interface{}, count)
				for i := range arr {
					arr[i] = m.fill(prop.Items, n, i)
				}
				obj[name] = arr
				continue
			}
			obj[name] = m.fill(prop, n, idx)
		}
		return obj

	default:
		return nil
	}
}

// Compile-time interface checks.
var (
	_ Provider = (*MockProvider)(nil)
	_ Provider = (*LocalProvider)(nil)
	_ Provider = (*CloudProvider)(nil)
)
