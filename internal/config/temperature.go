package config

import (
	"fmt"

	"madspark/internal/types"
)

// =============================================================================
// TEMPERATURE MANAGEMENT
// =============================================================================
// Each pipeline stage runs at its own temperature. Presets give one knob for
// the overall character of a run; per-stage overrides win over the preset.

// Stage names with their own temperature.
const (
	StageIdea       = "idea"
	StageEvaluation = "evaluation"
	StageAdvocacy   = "advocacy"
	StageSkepticism = "skepticism"
)

// Temperatures carries per-stage sampling temperatures.
type Temperatures struct {
	Idea       float64 `yaml:"idea"`
	Evaluation float64 `yaml:"evaluation"`
	Advocacy   float64 `yaml:"advocacy"`
	Skepticism float64 `yaml:"skepticism"`
}

// Preset names.
const (
	PresetConservative = "conservative"
	PresetBalanced     = "balanced"
	PresetCreative     = "creative"
	PresetWild         = "wild"
)

// presets maps a preset name to its base temperature. Evaluation always runs
// cooler than generation; advocacy and skepticism sit in between.
var presets = map[string]float64{
	PresetConservative: 0.5,
	PresetBalanced:     0.7,
	PresetCreative:     0.9,
	PresetWild:         1.2,
}

// TemperatureManager resolves per-stage temperatures from a preset plus
// optional overrides.
type TemperatureManager struct {
	temps Temperatures
}

// NewTemperatureManager builds a manager from a preset name.
func NewTemperatureManager(preset string) (*TemperatureManager, error) {
	base, ok := presets[preset]
	if !ok {
		return nil, &types.ValidationError{
			Field:  "preset",
			Reason: fmt.Sprintf("%q is not one of conservative, balanced, creative, wild", preset),
		}
	}

	return &TemperatureManager{
		temps: Temperatures{
			Idea:       base,
			Evaluation: scaleClamp(base, 0.4),
			Advocacy:   scaleClamp(base, 0.7),
			Skepticism: scaleClamp(base, 0.7),
		},
	}, nil
}

// NewTemperatureManagerWithOverrides applies non-zero overrides on top of
// the preset.
func NewTemperatureManagerWithOverrides(preset string, overrides Temperatures) (*TemperatureManager, error) {
	tm, err := NewTemperatureManager(preset)
	if err != nil {
		return nil, err
	}
	if overrides.Idea > 0 {
		tm.temps.Idea = overrides.Idea
	}
	if overrides.Evaluation > 0 {
		tm.temps.Evaluation = overrides.Evaluation
	}
	if overrides.Advocacy > 0 {
		tm.temps.Advocacy = overrides.Advocacy
	}
	if overrides.Skepticism > 0 {
		tm.temps.Skepticism = overrides.Skepticism
	}
	if err := tm.validate(); err != nil {
		return nil, err
	}
	return tm, nil
}

// scaleClamp scales a base temperature, keeping the result inside [0.1, 2.0].
func scaleClamp(base, factor float64) float64 {
	v := base * factor
	if v < 0.1 {
		v = 0.1
	}
	if v > 2.0 {
		v = 2.0
	}
	return v
}

func (tm *TemperatureManager) validate() error {
	for stage, v := range map[string]float64{
		StageIdea:       tm.temps.Idea,
		StageEvaluation: tm.temps.Evaluation,
		StageAdvocacy:   tm.temps.Advocacy,
		StageSkepticism: tm.temps.Skepticism,
	} {
		if v < 0 || v > 2 {
			return &types.ValidationError{
				Field:  "temperature." + stage,
				Reason: fmt.Sprintf("%.2f outside [0.0, 2.0]", v),
			}
		}
	}
	return nil
}

// ForStage returns the temperature for a named stage. Unknown stages get
// the idea temperature.
func (tm *TemperatureManager) ForStage(stage string) float64 {
	switch stage {
	case StageIdea:
		return tm.temps.Idea
	case StageEvaluation:
		return tm.temps.Evaluation
	case StageAdvocacy:
		return tm.temps.Advocacy
	case StageSkepticism:
		return tm.temps.Skepticism
	default:
		return tm.temps.Idea
	}
}

// All returns a copy of the resolved temperatures.
func (tm *TemperatureManager) All() Temperatures {
	return tm.temps
}

// PresetNames lists valid preset names.
func PresetNames() []string {
	return []string{PresetConservative, PresetBalanced, PresetCreative, PresetWild}
}
