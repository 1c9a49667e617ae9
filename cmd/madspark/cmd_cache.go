package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"madspark/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the persistent response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count",
	RunE:  cacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached response",
	RunE:  cacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openPersistentCache() (*cache.SQLiteStore, error) {
	if cfg.CachePath == "" {
		return nil, fmt.Errorf("no persistent cache configured (set cache_path in the config file)")
	}
	return cache.NewSQLiteStore(cfg.CachePath, cfg.CacheTTL)
}

func cacheStats(cmd *cobra.Command, args []string) error {
	store, err := openPersistentCache()
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("cache %s: %d entries, TTL %v\n", cfg.CachePath, store.Len(), cfg.CacheTTL)
	return nil
}

func cacheClear(cmd *cobra.Command, args []string) error {
	store, err := openPersistentCache()
	if err != nil {
		return err
	}
	defer store.Close()

	before := store.Len()
	if err := store.Clear(context.Background()); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Printf("cleared %d entries from %s\n", before, cfg.CachePath)
	return nil
}
