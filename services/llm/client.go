package llm

import (
	"context"
	"errors"
	"fmt"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// ErrorClass partitions provider failures into the two behaviors the job
// runner cares about: transient errors are eligible for retry with backoff,
// fatal errors terminate the job immediately.
type ErrorClass int

const (
	ClassTransient ErrorClass = iota
	ClassFatal
)

// ProviderError wraps a provider failure with its retry classification.
type ProviderError struct {
	Class ErrorClass
	Op    string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable provider error (timeout, rate limit,
// upstream 5xx).
func Transient(op string, err error) *ProviderError {
	return &ProviderError{Class: ClassTransient, Op: op, Err: err}
}

// Fatal wraps err as a non-retryable provider error.
func Fatal(op string, err error) *ProviderError {
	return &ProviderError{Class: ClassFatal, Op: op, Err: err}
}

// IsTransient reports whether err is a retryable provider failure.
// Context deadline expiry counts as transient: the per-call timeout is the
// provider's, not the job's.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class == ClassTransient
	}
	return false
}

// classifyStatus maps an HTTP status code from a provider API to an error
// class. 408, 429 and all 5xx are retryable; everything else is not.
func classifyStatus(status int) ErrorClass {
	if status == 408 || status == 429 || status >= 500 {
		return ClassTransient
	}
	return ClassFatal
}
