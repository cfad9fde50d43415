// Package notify defines the completion-notification adapter boundary.
//
// Adapters publish command completion events to downstream systems.
// The CLI owns adapter lifecycle; users provide configuration only.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventType is the type tag carried by every published event.
const EventType = "command_completed"

// SchemaVersion is the published event schema version.
const SchemaVersion = "1.0"

// CommandCompletedEvent is the payload published when a non-interactive
// command finishes.
type CommandCompletedEvent struct {
	SchemaVersion string `json:"schema_version"`
	EventType     string `json:"event_type"` // always "command_completed"
	SessionID     string `json:"session_id"`
	RuntimeID     string `json:"runtime_id"`
	Variant       string `json:"variant"`
	Command       string `json:"command"`
	ExitCode      int    `json:"exit_code"`
	DurationMs    int64  `json:"duration_ms"`
	Timestamp     string `json:"timestamp"` // ISO 8601
}

// Adapter publishes command completion events to a downstream system.
// Implementations must be safe for single-use per session.
type Adapter interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *CommandCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// WithRetries runs attempt up to 1+retries times with exponential
// backoff (500ms, 1s, 2s, ...) before each retry. An error wrapped in
// Permanent stops the loop immediately.
func WithRetries(ctx context.Context, retries int, attempt func(ctx context.Context) error) error {
	attempts := 1 + retries
	var lastErr error

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("non-retriable error: %w", perm.Err)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
