// Package audit records tool executions. Writes are best-effort from the
// runtime's point of view: the executor fires them without awaiting
// completion, and failures are logged, never surfaced to callers.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Outcome captures whether an invocation succeeded and what it produced.
type Outcome struct {
	Success bool
	Result  any
	Error   string
}

// Record is a single tool-execution audit entry.
type Record struct {
	ID        string
	UserID    string
	ToolName  string
	Arguments json.RawMessage
	Outcome   Outcome
	Timestamp time.Time
}

// Sink persists audit records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// NopSink discards all records. Useful for tests and embedded deployments
// that don't need an audit trail.
type NopSink struct{}

func (NopSink) Record(ctx context.Context, rec Record) error { return nil }
