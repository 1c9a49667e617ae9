// Package cache implements the content-addressed response cache: 16-hex-char
// keys over the full request identity, values holding the validated record
// plus its metadata. Two backends exist: a bounded in-memory LRU with TTL,
// and a SQLite-backed store for persistence across process runs.
package cache

import (
	"context"
	"time"

	"madspark/internal/types"
)

// Entry is one cached response.
type Entry struct {
	Key        string                 `json:"key"`
	Record     map[string]interface{} `json:"record"`
	Meta       types.LLMResponseMeta  `json:"meta"`
	InsertedAt time.Time              `json:"inserted_at"`
	TTL        time.Duration          `json:"ttl"`
}

// expired reports whether the entry is past its TTL at now.
func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.InsertedAt.Add(e.TTL))
}

// Store is the cache contract. Get returns (entry, true) only for live
// entries; the returned entry's Meta has Cached=true. Implementations are
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, record map[string]interface{}, meta types.LLMResponseMeta)
	Len() int
	Close() error
}
