package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerWritesJSONL(t *testing.T) {
	ws := t.TempDir()
	a, err := NewAuditLogger(ws)
	require.NoError(t, err)

	a.Record(AuditEvent{
		Type:       AuditLLMRequest,
		WorkflowID: "wf-1",
		Provider:   "local",
		Model:      "llama3.1:8b",
		Tokens:     120,
		LatencyMS:  42,
	})
	a.Record(AuditEvent{Type: AuditCacheHit, WorkflowID: "wf-1", Cached: true})
	require.NoError(t, a.Close())

	f, err := os.Open(filepath.Join(ws, ".madspark", "audit", "usage.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev AuditEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)

	assert.Equal(t, AuditLLMRequest, events[0].Type)
	assert.Equal(t, "wf-1", events[0].WorkflowID)
	assert.Equal(t, 120, events[0].Tokens)
	assert.NotZero(t, events[0].Timestamp, "timestamp should be filled in automatically")
	assert.Equal(t, AuditCacheHit, events[1].Type)
	assert.True(t, events[1].Cached)
}

func TestAuditLoggerNilSafe(t *testing.T) {
	var a *AuditLogger
	a.Record(AuditEvent{Type: AuditStageStart, Stage: "advocacy"})
	assert.NoError(t, a.Close())
}

func TestAuditLoggerRecordAfterClose(t *testing.T) {
	a, err := NewAuditLogger(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	a.Record(AuditEvent{Type: AuditStageFailed})
}

func TestInitializeProductionModeIsSilent(t *testing.T) {
	t.Cleanup(CloseAll)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws))
	assert.False(t, IsDebugMode(), "no config file means production mode")

	Router("this should go nowhere")
	_, err := os.Stat(filepath.Join(ws, ".madspark", "logs"))
	assert.True(t, os.IsNotExist(err), "production mode must not create a logs directory")
}

func TestInitializeDebugEnvOverride(t *testing.T) {
	t.Cleanup(CloseAll)
	t.Setenv("MADSPARK_DEBUG", "true")
	ws := t.TempDir()

	require.NoError(t, Initialize(ws))
	require.True(t, IsDebugMode())

	Get(CategoryRouter).Info("selected provider %s", "local")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".madspark", "logs"))
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".log" {
			found = true
		}
	}
	assert.True(t, found, "debug mode should write per-category log files")
}

func TestCategoryToggle(t *testing.T) {
	t.Cleanup(CloseAll)
	t.Setenv("MADSPARK_DEBUG", "")
	ws := t.TempDir()

	cfgDir := filepath.Join(ws, ".madspark")
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	cfg := `{"logging":{"debug_mode":true,"categories":{"cache":false}}}`
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(cfg), 0644))

	require.NoError(t, Initialize(ws))
	assert.False(t, IsCategoryEnabled(CategoryCache), "cache category is disabled in config")
	assert.True(t, IsCategoryEnabled(CategoryRouter), "unlisted categories default to enabled")
}
