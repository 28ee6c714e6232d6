// Package checkpoint defines the durable snapshot of a thread's execution and
// the store contract the engine persists through. One checkpoint row is the
// latest known state for a thread; the engine never deletes rows itself.
package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Status is the lifecycle state recorded on a checkpoint.
type Status string

const (
	StatusRunning     Status = "running"
	StatusInterrupted Status = "interrupted" // waiting for external input
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// ErrNotFound is returned when no checkpoint exists for a thread.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is the latest durable snapshot of one thread.
//
// Position is the next node to execute. State is the workflow state as JSON,
// serialized by the engine so stores stay agnostic of workflow state types.
// Interrupt holds the pending interrupt payload while Status is interrupted.
type Checkpoint struct {
	ThreadID     string          `json:"thread_id"`
	WorkflowName string          `json:"workflow_name"`
	State        json.RawMessage `json:"state"`
	Status       Status          `json:"status"`
	Position     string          `json:"position"`
	Steps        int             `json:"steps"`
	Interrupt    json.RawMessage `json:"interrupt,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Store persists the latest checkpoint per thread and provides the per-thread
// lease that serializes overlapping runs of the same thread. Stores must be
// safe for concurrent use across threads.
type Store interface {
	// Load returns the latest checkpoint for the thread, ErrNotFound if none.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Save upserts the checkpoint keyed by ThreadID.
	Save(ctx context.Context, cp *Checkpoint) error

	// AcquireLease attempts to acquire (or re-acquire) the run lease for a
	// thread. It returns acquired=false, err=nil when another owner holds an
	// unexpired lease. A lease held by the same owner is re-entrant.
	AcquireLease(ctx context.Context, threadID, owner string, ttl time.Duration) (bool, error)

	// ReleaseLease releases the lease if held by owner. It is idempotent.
	ReleaseLease(ctx context.Context, threadID, owner string) error
}
