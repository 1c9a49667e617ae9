// Package config resolves madspark configuration from environment variables
// and an optional YAML file. Environment always wins; invalid values fall
// back to documented defaults rather than failing startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"madspark/internal/logging"
)

// Execution modes.
const (
	ModeMock = "mock" // no real provider calls
	ModeAPI  = "api"  // live providers
)

// Provider selection hints.
const (
	ProviderAuto  = "auto"
	ProviderLocal = "local"
	ProviderCloud = "cloud"
)

// Model-size tiers for the local provider.
const (
	TierFast     = "fast"
	TierBalanced = "balanced"
	TierQuality  = "quality"
)

// Defaults.
const (
	DefaultWorkflowTimeout = 1200 * time.Second
	MinWorkflowTimeout     = 60 * time.Second
	MaxWorkflowTimeout     = 3600 * time.Second

	DefaultBatchTimeout = 60 * time.Second

	DefaultMaxConcurrentAgents = 10
	DefaultMaxAsyncWorkers     = 10

	DefaultCacheTTL      = 24 * time.Hour
	DefaultCacheCapacity = 10000

	DefaultLocalTimeout = 600 * time.Second

	DefaultNoveltyThreshold = 0.75
	DefaultTopCandidates    = 2
)

// tierModels maps MADSPARK_MODEL_TIER to local model names.
var tierModels = map[string]string{
	TierFast:     "llama3.2:3b",
	TierBalanced: "llama3.1:8b",
	TierQuality:  "qwen2.5:32b",
}

// Config is the resolved runtime configuration.
type Config struct {
	Mode             string `yaml:"mode"`              // mock | api
	ProviderHint     string `yaml:"provider"`          // auto | local | cloud
	ModelTier        string `yaml:"model_tier"`        // fast | balanced | quality
	RouterDisabled   bool   `yaml:"router_disabled"`   // MADSPARK_NO_ROUTER
	FallbackEnabled  bool   `yaml:"fallback_enabled"`  // cross-provider fallback
	CacheEnabled     bool   `yaml:"cache_enabled"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	CacheCapacity    int    `yaml:"cache_capacity"`
	CachePath        string `yaml:"cache_path"` // non-empty enables the SQLite backend

	LocalHost    string        `yaml:"local_host"`
	LocalModel   string        `yaml:"local_model"`
	LocalTimeout time.Duration `yaml:"local_timeout"`

	CloudAPIKey string `yaml:"cloud_api_key"`
	CloudModel  string `yaml:"cloud_model"`

	MaxConcurrentAgents int `yaml:"max_concurrent_agents"`
	MaxAsyncWorkers     int `yaml:"max_async_workers"`

	WorkflowTimeout time.Duration `yaml:"workflow_timeout"`
	MinTimeout      time.Duration `yaml:"min_timeout"`
	MaxTimeout      time.Duration `yaml:"max_timeout"`
	BatchTimeout    time.Duration `yaml:"batch_timeout"`

	NoveltyThreshold float64 `yaml:"novelty_threshold"`
	TopCandidates    int     `yaml:"top_candidates"`
}

// Default returns the baseline configuration before any overrides.
func Default() *Config {
	return &Config{
		Mode:                ModeAPI,
		ProviderHint:        ProviderAuto,
		ModelTier:           TierBalanced,
		FallbackEnabled:     true,
		CacheEnabled:        true,
		CacheTTL:            DefaultCacheTTL,
		CacheCapacity:       DefaultCacheCapacity,
		LocalHost:           "http://localhost:11434",
		LocalModel:          tierModels[TierBalanced],
		LocalTimeout:        DefaultLocalTimeout,
		MaxConcurrentAgents: DefaultMaxConcurrentAgents,
		MaxAsyncWorkers:     DefaultMaxAsyncWorkers,
		WorkflowTimeout:     DefaultWorkflowTimeout,
		MinTimeout:          MinWorkflowTimeout,
		MaxTimeout:          MaxWorkflowTimeout,
		BatchTimeout:        DefaultBatchTimeout,
		NoveltyThreshold:    DefaultNoveltyThreshold,
		TopCandidates:       DefaultTopCandidates,
	}
}

// Load resolves configuration: defaults, then the YAML file at path (if
// non-empty and present), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// FromEnv resolves configuration from defaults and environment only.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	cfg.normalize()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MADSPARK_MODE"); v != "" {
		if strings.EqualFold(v, ModeMock) {
			c.Mode = ModeMock
		} else {
			c.Mode = ModeAPI
		}
	}
	if v := os.Getenv("MADSPARK_LLM_PROVIDER"); v != "" {
		switch strings.ToLower(v) {
		case ProviderAuto, ProviderLocal, ProviderCloud:
			c.ProviderHint = strings.ToLower(v)
		default:
			logging.Get(logging.CategoryConfig).Warn("MADSPARK_LLM_PROVIDER=%q not recognized, using %q", v, c.ProviderHint)
		}
	}
	if v := os.Getenv("MADSPARK_MODEL_TIER"); v != "" {
		tier := strings.ToLower(v)
		if model, ok := tierModels[tier]; ok {
			c.ModelTier = tier
			c.LocalModel = model
		} else {
			logging.Get(logging.CategoryConfig).Warn("MADSPARK_MODEL_TIER=%q not recognized, using %q", v, c.ModelTier)
		}
	}
	if v := os.Getenv("MADSPARK_NO_ROUTER"); v == "true" {
		c.RouterDisabled = true
	}
	if v := os.Getenv("MADSPARK_FALLBACK_ENABLED"); v == "false" {
		c.FallbackEnabled = false
	}
	if v := os.Getenv("MADSPARK_CACHE_ENABLED"); v == "false" {
		c.CacheEnabled = false
	}
	if v := os.Getenv("MADSPARK_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.CacheTTL = time.Duration(secs) * time.Second
		} else {
			logging.Get(logging.CategoryConfig).Warn("MADSPARK_CACHE_TTL=%q invalid, using %v", v, c.CacheTTL)
		}
	}
	if v := os.Getenv("LOCAL_LLM_HOST"); v != "" {
		c.LocalHost = v
	}
	if v := os.Getenv("LOCAL_REQUEST_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.LocalTimeout = time.Duration(secs) * time.Second
		} else {
			logging.Get(logging.CategoryConfig).Warn("LOCAL_REQUEST_TIMEOUT=%q invalid, using %v", v, c.LocalTimeout)
		}
	}
	if v := os.Getenv("CLOUD_API_KEY"); v != "" {
		c.CloudAPIKey = v
	}
	if v := os.Getenv("CLOUD_MODEL"); v != "" {
		c.CloudModel = v
	}
	if v := os.Getenv("MAX_CONCURRENT_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxConcurrentAgents = n
		}
	}
	if v := os.Getenv("MADSPARK_DEFAULT_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.WorkflowTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MIN_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.MinTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MAX_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.MaxTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MADSPARK_NOVELTY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.NoveltyThreshold = f
		}
	}
	if v := os.Getenv("MADSPARK_TOP_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TopCandidates = n
		}
	}
}

// normalize clamps derived values into their documented bounds.
func (c *Config) normalize() {
	if c.WorkflowTimeout < c.MinTimeout {
		c.WorkflowTimeout = c.MinTimeout
	}
	if c.WorkflowTimeout > c.MaxTimeout {
		c.WorkflowTimeout = c.MaxTimeout
	}
	if c.MaxConcurrentAgents <= 0 {
		c.MaxConcurrentAgents = DefaultMaxConcurrentAgents
	}
	if c.MaxAsyncWorkers <= 0 {
		c.MaxAsyncWorkers = DefaultMaxAsyncWorkers
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.TopCandidates <= 0 {
		c.TopCandidates = DefaultTopCandidates
	}
	if c.LocalModel == "" {
		c.LocalModel = tierModels[TierBalanced]
	}
}

// MockMode reports whether all real provider calls are disabled.
func (c *Config) MockMode() bool {
	return c.Mode == ModeMock
}
