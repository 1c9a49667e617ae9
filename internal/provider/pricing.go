package provider

import "strings"

// modelPricing is USD per million tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// cloudPricing maps model-name prefixes to current Gemini API pricing.
// Longest matching prefix wins.
var cloudPricing = map[string]modelPricing{
	"gemini-2.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gemini-2.5-flash": {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
	"gemini-1.5-flash": {InputPerMillion: 0.075, OutputPerMillion: 0.30},
}

// defaultCloudPricing applies to unknown models (flash-tier assumption).
var defaultCloudPricing = modelPricing{InputPerMillion: 0.30, OutputPerMillion: 2.50}

// costPerToken returns a blended per-token cost for the model: a 70/30
// input/output weighted average, matching typical prompt-heavy usage.
func costPerToken(model string) float64 {
	pricing := defaultCloudPricing
	bestLen := 0
	for prefix, p := range cloudPricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			pricing = p
			bestLen = len(prefix)
		}
	}
	return (0.7*pricing.InputPerMillion + 0.3*pricing.OutputPerMillion) / 1_000_000
}
