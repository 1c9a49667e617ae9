package types

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR KINDS
// =============================================================================
// Caller-input and configuration failures are never retried; everything else
// goes through the retry wrapper and router fallback.

// ValidationError reports a caller input that failed type/emptiness/range
// checks. Raised before any provider call and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

// ConfigurationError reports missing or invalid configuration (API keys,
// forced providers, event-loop misuse). Never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// TimeoutError reports a per-batch or per-workflow deadline exceeded.
type TimeoutError struct {
	Op      string
	Seconds float64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %.1fs", e.Op, e.Seconds)
}

// FileTooLargeError is returned when cache-key hashing rejects a file.
type FileTooLargeError struct {
	Path string
	Size int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s too large for hashing: %d bytes (max %d)", e.Path, e.Size, MaxHashFileBytes)
}

// MaxHashFileBytes is the cap on files hashed into cache keys (50 MB).
const MaxHashFileBytes = 50 * 1024 * 1024

// IsNonRetryable reports whether err must bypass the retry wrapper.
func IsNonRetryable(err error) bool {
	var ve *ValidationError
	var ce *ConfigurationError
	var fe *FileTooLargeError
	return errors.As(err, &ve) || errors.As(err, &ce) || errors.As(err, &fe)
}
