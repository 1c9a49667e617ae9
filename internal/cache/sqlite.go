package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"madspark/internal/logging"
	"madspark/internal/types"
)

// schemaVersion guards against reading rows written by an incompatible
// serialization. Bump it when Entry's stored shape changes.
const schemaVersion = 1

// SQLiteStore persists cached responses across process runs. It wraps a
// single-connection modernc.org/sqlite database in WAL mode.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLiteStore opens (or creates) the cache database at path.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", p, err)
		}
	}

	createSQL := `
	CREATE TABLE IF NOT EXISTS responses (
		key         TEXT PRIMARY KEY,
		version     INTEGER NOT NULL,
		record      TEXT NOT NULL,
		meta        TEXT NOT NULL,
		inserted_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_responses_inserted ON responses(inserted_at);
	`
	if _, err := db.Exec(createSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	logging.Cache("sqlite cache opened at %s", path)
	return &SQLiteStore{db: db, ttl: ttl}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool) {
	var (
		version    int
		recordJSON string
		metaJSON   string
		insertedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT version, record, meta, inserted_at FROM responses WHERE key = ?", key,
	).Scan(&version, &recordJSON, &metaJSON, &insertedAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		logging.Get(logging.CategoryCache).Error("sqlite get failed for %s: %v", key, err)
		return nil, false
	}
	if version != schemaVersion {
		s.delete(ctx, key)
		return nil, false
	}

	entry := &Entry{
		Key:        key,
		InsertedAt: time.Unix(insertedAt, 0),
		TTL:        s.ttl,
	}
	if entry.expired(time.Now()) {
		s.delete(ctx, key)
		logging.CacheDebug("entry %s expired, deleting row", key)
		return nil, false
	}

	if err := json.Unmarshal([]byte(recordJSON), &entry.Record); err != nil {
		logging.Get(logging.CategoryCache).Error("corrupt record for %s: %v", key, err)
		s.delete(ctx, key)
		return nil, false
	}
	if err := json.Unmarshal([]byte(metaJSON), &entry.Meta); err != nil {
		logging.Get(logging.CategoryCache).Error("corrupt meta for %s: %v", key, err)
		s.delete(ctx, key)
		return nil, false
	}

	entry.Meta.Cached = true
	return entry, true
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key string, record map[string]interface{}, meta types.LLMResponseMeta) {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		logging.Get(logging.CategoryCache).Error("cannot serialize record for %s: %v", key, err)
		return
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		logging.Get(logging.CategoryCache).Error("cannot serialize meta for %s: %v", key, err)
		return
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO responses (key, version, record, meta, inserted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			record = excluded.record,
			meta = excluded.meta,
			inserted_at = excluded.inserted_at
	`, key, schemaVersion, string(recordJSON), string(metaJSON), time.Now().Unix())
	if err != nil {
		logging.Get(logging.CategoryCache).Error("sqlite set failed for %s: %v", key, err)
	}
}

// Len implements Store.
func (s *SQLiteStore) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM responses").Scan(&n); err != nil {
		return 0
	}
	return n
}

// Clear drops every row.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM responses")
	return err
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) delete(ctx context.Context, key string) {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE key = ?", key); err != nil {
		logging.Get(logging.CategoryCache).Error("sqlite delete failed for %s: %v", key, err)
	}
}

var _ Store = (*SQLiteStore)(nil)
