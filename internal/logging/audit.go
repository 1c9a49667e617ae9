// Package logging provides audit logging for LLM usage.
// Audit events are structured JSONL records capturing every provider call,
// fallback, and workflow stage transition, suitable for offline cost analysis.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Provider events
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMFallback AuditEventType = "llm_fallback"
	AuditCacheHit    AuditEventType = "cache_hit"

	// Workflow events
	AuditStageStart    AuditEventType = "stage_start"
	AuditStageComplete AuditEventType = "stage_complete"
	AuditStageFailed   AuditEventType = "stage_failed"
)

// AuditEvent is a single JSONL audit record.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"`
	Type       AuditEventType `json:"type"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Stage      string         `json:"stage,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Model      string         `json:"model,omitempty"`
	Tokens     int            `json:"tokens,omitempty"`
	Cost       float64        `json:"cost,omitempty"`
	LatencyMS  int64          `json:"latency_ms,omitempty"`
	Cached     bool           `json:"cached,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// AuditLogger appends audit events to .madspark/audit/usage.jsonl.
// It is safe for concurrent use. A nil AuditLogger is a valid no-op.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens (or creates) the audit log under the workspace.
func NewAuditLogger(ws string) (*AuditLogger, error) {
	dir := filepath.Join(ws, ".madspark", "audit")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(dir, "usage.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &AuditLogger{file: file}, nil
}

// Record appends one event. Errors are swallowed; audit logging must never
// interfere with the pipeline.
func (a *AuditLogger) Record(ev AuditEvent) {
	if a == nil || a.file == nil {
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = a.file.Write(append(data, '\n'))
}

// Close flushes and closes the audit log file.
func (a *AuditLogger) Close() error {
	if a == nil || a.file == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.file.Close()
	a.file = nil
	return err
}
