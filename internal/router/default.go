package router

import (
	"context"
	"sync"

	"madspark/internal/cache"
	"madspark/internal/config"
	"madspark/internal/logging"
	"madspark/internal/provider"
)

// Process-wide router singleton. Built on first use; tests and the CLI can
// inject their own via SetDefault or skip it entirely with New.
var (
	defaultMu     sync.Mutex
	defaultRouter *Router
	defaultErr    error
)

// Default returns the lazily-built process router. Construction reads the
// environment once; later calls reuse the same instance. Double-checked so
// concurrent first callers build it exactly once.
func Default(ctx context.Context) (*Router, error) {
	if r := loadDefault(); r != nil {
		return r, nil
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRouter != nil || defaultErr != nil {
		return defaultRouter, defaultErr
	}

	cfg := config.FromEnv()
	defaultRouter, defaultErr = FromConfig(ctx, cfg)
	return defaultRouter, defaultErr
}

func loadDefault() *Router {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRouter
}

// SetDefault replaces the process singleton. Passing nil resets it so the
// next Default call rebuilds from the environment.
func SetDefault(r *Router) {
	defaultMu.Lock()
	defaultRouter = r
	defaultErr = nil
	defaultMu.Unlock()
}

// FromConfig assembles providers and cache from resolved configuration.
// Mock mode wires the deterministic provider on both slots so selection and
// fallback paths stay exercised without network access.
func FromConfig(ctx context.Context, cfg *config.Config) (*Router, error) {
	if cfg.RouterDisabled {
		// MADSPARK_NO_ROUTER: direct provider calls with no cache and no
		// cross-provider fallback.
		direct := *cfg
		direct.CacheEnabled = false
		direct.FallbackEnabled = false
		cfg = &direct
		logging.Router("router integration disabled: direct provider calls, no cache, no fallback")
	}

	opts := Options{Config: cfg}

	if cfg.CacheEnabled {
		if cfg.CachePath != "" {
			store, err := cache.NewSQLiteStore(cfg.CachePath, cfg.CacheTTL)
			if err != nil {
				logging.Get(logging.CategoryRouter).Error("persistent cache unavailable, using memory: %v", err)
				opts.Cache = cache.NewMemoryStore(cfg.CacheCapacity, cfg.CacheTTL)
			} else {
				opts.Cache = store
			}
		} else {
			opts.Cache = cache.NewMemoryStore(cfg.CacheCapacity, cfg.CacheTTL)
		}
	}

	if cfg.MockMode() {
		mock := provider.NewMockProvider()
		opts.Local = mock
		opts.Cloud = mock
		logging.Router("mock mode: all requests served by the deterministic provider")
		return New(opts)
	}

	opts.Local = provider.NewLocalProvider(cfg.LocalHost, cfg.LocalModel, cfg.LocalTimeout)

	if cfg.CloudAPIKey != "" {
		cloud, err := provider.NewCloudProvider(ctx, cfg.CloudAPIKey, cfg.CloudModel)
		if err != nil {
			logging.Router("cloud provider unavailable: %v", err)
		} else {
			opts.Cloud = cloud
		}
	}

	return New(opts)
}
