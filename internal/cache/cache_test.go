package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"madspark/internal/types"
)

func TestKeyDeterministic(t *testing.T) {
	in := KeyInputs{Prompt: "generate ideas", SchemaID: "GeneratedIdeas", Temperature: 0.9}
	a, err := Key(in)
	if err != nil {
		t.Fatalf("key failed: %v", err)
	}
	b, _ := Key(in)
	if a != b {
		t.Errorf("same inputs should produce the same key: %s vs %s", a, b)
	}
	if len(a) != KeyLength {
		t.Errorf("key length should be %d, got %d", KeyLength, len(a))
	}
}

func TestKeyDiffersPerComponent(t *testing.T) {
	base := KeyInputs{Prompt: "p", SchemaID: "s", Temperature: 0.7}
	baseKey, _ := Key(base)

	variants := []KeyInputs{
		{Prompt: "q", SchemaID: "s", Temperature: 0.7},
		{Prompt: "p", SchemaID: "t", Temperature: 0.7},
		{Prompt: "p", SchemaID: "s", Temperature: 0.8},
		{Prompt: "p", SchemaID: "s", Temperature: 0.7, ForcedProvider: "cloud"},
		{Prompt: "p", SchemaID: "s", Temperature: 0.7, SystemInstruction: "be brief"},
		{Prompt: "p", SchemaID: "s", Temperature: 0.7, URLs: []string{"https://example.com"}},
	}
	for i, v := range variants {
		k, err := Key(v)
		if err != nil {
			t.Fatalf("variant %d: %v", i, err)
		}
		if k == baseKey {
			t.Errorf("variant %d should produce a different key", i)
		}
	}
}

func TestKeyURLOrderIrrelevant(t *testing.T) {
	a, _ := Key(KeyInputs{Prompt: "p", SchemaID: "s", URLs: []string{"https://a", "https://b"}})
	b, _ := Key(KeyInputs{Prompt: "p", SchemaID: "s", URLs: []string{"https://b", "https://a"}})
	if a != b {
		t.Error("URL order should not change the key")
	}
}

func TestKeyFileContentHashed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	k1, err := Key(KeyInputs{Prompt: "p", SchemaID: "s", Files: []string{path}})
	if err != nil {
		t.Fatalf("key with file failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	k2, _ := Key(KeyInputs{Prompt: "p", SchemaID: "s", Files: []string{path}})
	if k1 == k2 {
		t.Error("changing file content should change the key")
	}
}

func TestKeyMissingFile(t *testing.T) {
	_, err := Key(KeyInputs{Prompt: "p", SchemaID: "s", Files: []string{"/nonexistent/file"}})
	if err == nil {
		t.Error("missing file should fail key computation")
	}
}

func TestHashFileTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(types.MaxHashFileBytes + 1); err != nil {
		f.Close()
		t.Skipf("cannot create sparse file: %v", err)
	}
	f.Close()

	_, err = hashFile(path)
	var fe *types.FileTooLargeError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FileTooLargeError, got %v", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	record := map[string]interface{}{"ideas": []interface{}{"x"}}
	s.Set(ctx, "k1", record, types.LLMResponseMeta{Provider: "mock", TokensUsed: 42})

	entry, ok := s.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if !entry.Meta.Cached {
		t.Error("retrieved entry should have Cached=true")
	}
	if entry.Meta.TokensUsed != 42 {
		t.Errorf("meta should round-trip, got tokens=%d", entry.Meta.TokensUsed)
	}
}

func TestMemoryStoreMiss(t *testing.T) {
	s := NewMemoryStore(10, time.Hour)
	if _, ok := s.Get(context.Background(), "absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryStore(10, time.Millisecond)
	ctx := context.Background()
	s.Set(ctx, "k", map[string]interface{}{}, types.LLMResponseMeta{})

	time.Sleep(5 * time.Millisecond)
	if _, ok := s.Get(ctx, "k"); ok {
		t.Error("expired entry should be evicted on Get")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be removed, len=%d", s.Len())
	}
}

func TestMemoryStoreLRUEviction(t *testing.T) {
	s := NewMemoryStore(2, time.Hour)
	ctx := context.Background()
	s.Set(ctx, "a", map[string]interface{}{}, types.LLMResponseMeta{})
	s.Set(ctx, "b", map[string]interface{}{}, types.LLMResponseMeta{})

	// Touch "a" so "b" becomes least recently used.
	s.Get(ctx, "a")
	s.Set(ctx, "c", map[string]interface{}{}, types.LLMResponseMeta{})

	if _, ok := s.Get(ctx, "b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	if _, ok := s.Get(ctx, "a"); !ok {
		t.Error("recently used entry should survive")
	}
	if s.Len() != 2 {
		t.Errorf("capacity 2 store holds %d entries", s.Len())
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "cache.db"), time.Hour)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	record := map[string]interface{}{"score": 8.0}
	store.Set(ctx, "k1", record, types.LLMResponseMeta{Provider: "local", Model: "llama3.1:8b"})

	entry, ok := store.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if !entry.Meta.Cached {
		t.Error("retrieved entry should have Cached=true")
	}
	if entry.Record["score"] != 8.0 {
		t.Errorf("record should round-trip, got %v", entry.Record["score"])
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", store.Len())
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if store.Len() != 0 {
		t.Error("clear should drop every row")
	}
}
