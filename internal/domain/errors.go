package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotDue means the plan is too far in the future to wait for; re-queue the item.
	ErrNotDue = errors.New("publication not due yet")
	// ErrInvalidTransition is returned for lifecycle moves outside queued->scheduled->terminal.
	ErrInvalidTransition = errors.New("invalid content item transition")
	// ErrShuttingDown is returned when admission is closed.
	ErrShuttingDown = errors.New("factory is shutting down")
)

// ConfigurationError is fatal to the operation that raised it, not to the process.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Msg
	}
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Msg)
}

// RenderError marks a production task whose artifact could not be rendered.
type RenderError struct {
	TaskID string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render task %s: %v", e.TaskID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// RateLimitedError is raised when the per-platform window is full. It never
// consumes a retry attempt.
type RateLimitedError struct {
	Platform   string
	Operation  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s/%s, retry after %s", e.Platform, e.Operation, e.RetryAfter)
}

// TransientPublishError is a retryable publisher failure.
type TransientPublishError struct {
	Platform string
	Err      error
}

func (e *TransientPublishError) Error() string {
	return fmt.Sprintf("transient publish failure on %s: %v", e.Platform, e.Err)
}

func (e *TransientPublishError) Unwrap() error { return e.Err }

// PermanentPublishError stops retries immediately.
type PermanentPublishError struct {
	Platform string
	Err      error
}

func (e *PermanentPublishError) Error() string {
	return fmt.Sprintf("permanent publish failure on %s: %v", e.Platform, e.Err)
}

func (e *PermanentPublishError) Unwrap() error { return e.Err }

// ResourceExhaustedError asks the governor to shed load. It is not a task failure.
type ResourceExhaustedError struct {
	CPUPercent    float64
	MemoryPercent float64
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("resources exhausted: cpu %.1f%% mem %.1f%%", e.CPUPercent, e.MemoryPercent)
}

// CriticalSystemError triggers the emergency shutdown path.
type CriticalSystemError struct {
	Reason string
	Err    error
}

func (e *CriticalSystemError) Error() string {
	if e.Err == nil {
		return "critical: " + e.Reason
	}
	return fmt.Sprintf("critical: %s: %v", e.Reason, e.Err)
}

func (e *CriticalSystemError) Unwrap() error { return e.Err }

// IsRetryable reports whether a publish error may be retried with backoff.
func IsRetryable(err error) bool {
	var transient *TransientPublishError
	return errors.As(err, &transient)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
