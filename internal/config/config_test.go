package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Mode != ModeAPI {
		t.Errorf("default mode should be api, got %s", cfg.Mode)
	}
	if cfg.WorkflowTimeout != DefaultWorkflowTimeout {
		t.Errorf("default timeout should be %v, got %v", DefaultWorkflowTimeout, cfg.WorkflowTimeout)
	}
	if !cfg.FallbackEnabled || !cfg.CacheEnabled {
		t.Error("fallback and cache default to enabled")
	}
	if cfg.TopCandidates != DefaultTopCandidates {
		t.Errorf("default top candidates should be %d, got %d", DefaultTopCandidates, cfg.TopCandidates)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MADSPARK_MODE", "mock")
	t.Setenv("MADSPARK_LLM_PROVIDER", "cloud")
	t.Setenv("MADSPARK_MODEL_TIER", "fast")
	t.Setenv("MADSPARK_FALLBACK_ENABLED", "false")
	t.Setenv("MADSPARK_CACHE_TTL", "3600")
	t.Setenv("MAX_CONCURRENT_AGENTS", "4")

	cfg := FromEnv()
	if !cfg.MockMode() {
		t.Error("MADSPARK_MODE=mock should enable mock mode")
	}
	if cfg.ProviderHint != ProviderCloud {
		t.Errorf("provider hint should be cloud, got %s", cfg.ProviderHint)
	}
	if cfg.LocalModel != tierModels[TierFast] {
		t.Errorf("fast tier should pick %s, got %s", tierModels[TierFast], cfg.LocalModel)
	}
	if cfg.FallbackEnabled {
		t.Error("fallback should be disabled")
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("cache TTL should be 1h, got %v", cfg.CacheTTL)
	}
	if cfg.MaxConcurrentAgents != 4 {
		t.Errorf("max concurrent agents should be 4, got %d", cfg.MaxConcurrentAgents)
	}
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("MADSPARK_LLM_PROVIDER", "quantum")
	t.Setenv("MADSPARK_MODEL_TIER", "enormous")
	t.Setenv("MADSPARK_CACHE_TTL", "not-a-number")

	cfg := FromEnv()
	if cfg.ProviderHint != ProviderAuto {
		t.Errorf("unknown provider should keep the default, got %s", cfg.ProviderHint)
	}
	if cfg.ModelTier != TierBalanced {
		t.Errorf("unknown tier should keep the default, got %s", cfg.ModelTier)
	}
	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("invalid TTL should keep the default, got %v", cfg.CacheTTL)
	}
}

func TestTimeoutClamping(t *testing.T) {
	t.Setenv("MADSPARK_DEFAULT_TIMEOUT", "10")
	cfg := FromEnv()
	if cfg.WorkflowTimeout != cfg.MinTimeout {
		t.Errorf("timeout below minimum should clamp to %v, got %v", cfg.MinTimeout, cfg.WorkflowTimeout)
	}

	t.Setenv("MADSPARK_DEFAULT_TIMEOUT", "99999")
	cfg = FromEnv()
	if cfg.WorkflowTimeout != cfg.MaxTimeout {
		t.Errorf("timeout above maximum should clamp to %v, got %v", cfg.MaxTimeout, cfg.WorkflowTimeout)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "mode: mock\ntop_candidates: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MADSPARK_TOP_CANDIDATES", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Mode != ModeMock {
		t.Errorf("YAML mode should apply, got %s", cfg.Mode)
	}
	if cfg.TopCandidates != 7 {
		t.Errorf("environment should win over YAML, got %d", cfg.TopCandidates)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Mode != ModeAPI {
		t.Error("missing file should leave defaults intact")
	}
}

func TestTemperaturePresets(t *testing.T) {
	cases := map[string]float64{
		PresetConservative: 0.5,
		PresetBalanced:     0.7,
		PresetCreative:     0.9,
		PresetWild:         1.2,
	}
	for preset, base := range cases {
		tm, err := NewTemperatureManager(preset)
		if err != nil {
			t.Fatalf("preset %s: %v", preset, err)
		}
		temps := tm.All()
		if temps.Idea != base {
			t.Errorf("%s idea temperature should be %.1f, got %.1f", preset, base, temps.Idea)
		}
		if temps.Evaluation >= temps.Idea {
			t.Errorf("%s evaluation should run cooler than idea generation", preset)
		}
	}
}

func TestTemperatureScalingClamped(t *testing.T) {
	tm, err := NewTemperatureManager(PresetConservative)
	if err != nil {
		t.Fatal(err)
	}
	// 0.5 * 0.4 = 0.2, above the 0.1 floor.
	if got := tm.ForStage(StageEvaluation); got != 0.2 {
		t.Errorf("evaluation scale 0.4 of 0.5 should be 0.2, got %.2f", got)
	}
	if got := tm.ForStage(StageAdvocacy); got != 0.35 {
		t.Errorf("advocacy scale 0.7 of 0.5 should be 0.35, got %.2f", got)
	}
}

func TestTemperatureUnknownPreset(t *testing.T) {
	if _, err := NewTemperatureManager("volcanic"); err == nil {
		t.Error("unknown preset should fail")
	}
}

func TestTemperatureOverrides(t *testing.T) {
	tm, err := NewTemperatureManagerWithOverrides(PresetBalanced, Temperatures{Idea: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if tm.ForStage(StageIdea) != 1.5 {
		t.Errorf("override should win, got %.2f", tm.ForStage(StageIdea))
	}
	if tm.ForStage(StageSkepticism) == 1.5 {
		t.Error("non-overridden stages keep the preset scaling")
	}
}
