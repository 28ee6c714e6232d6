// Package workflow is the orchestration façade: a registry of compiled
// workflow definitions plus an orchestrator that starts, continues and
// inspects thread-addressed executions. Payloads cross this boundary as
// opaque JSON; each workflow's typed state decides what they mean.
package workflow

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/weftlabs/weft/internal/checkpoint"
	"github.com/weftlabs/weft/internal/graph"
	"github.com/weftlabs/weft/internal/state"
)

// Snapshot is the transport-agnostic view of a thread returned to callers.
type Snapshot struct {
	ThreadID     string            `json:"thread_id"`
	WorkflowName string            `json:"workflow_name"`
	Status       checkpoint.Status `json:"status"`
	State        json.RawMessage   `json:"state"`
	Interrupt    json.RawMessage   `json:"interrupt,omitempty"`
}

// Runner is the non-generic face of a compiled workflow, so definitions with
// heterogeneous state types can share one registry. Handle adapts a typed
// CompiledGraph to it.
type Runner interface {
	// Name returns the workflow name the runner is registered under.
	Name() string
	// Start begins a new thread with the given input payload.
	Start(ctx context.Context, threadID string, payload json.RawMessage) (*Snapshot, error)
	// Resume continues an interrupted thread with a resume payload.
	Resume(ctx context.Context, threadID string, payload json.RawMessage) (*Snapshot, error)
}

// Handle adapts a typed compiled graph to the Runner interface by decoding
// JSON payloads into the workflow's state type.
type Handle[T state.GraphState[T]] struct {
	compiled *graph.CompiledGraph[T]
}

var _ Runner = (*Handle[dummyState])(nil)

// NewHandle wraps a compiled graph for registration.
func NewHandle[T state.GraphState[T]](compiled *graph.CompiledGraph[T]) *Handle[T] {
	return &Handle[T]{compiled: compiled}
}

func (h *Handle[T]) Name() string {
	return h.compiled.Name()
}

func (h *Handle[T]) Start(ctx context.Context, threadID string, payload json.RawMessage) (*Snapshot, error) {
	input, err := decodePayload[T](payload)
	if err != nil {
		return nil, err
	}
	exec, err := h.compiled.Run(ctx, input, graph.WithThreadID[T](threadID))
	if err != nil {
		return nil, err
	}
	return h.snapshot(exec)
}

func (h *Handle[T]) Resume(ctx context.Context, threadID string, payload json.RawMessage) (*Snapshot, error) {
	signal, err := decodePayload[T](payload)
	if err != nil {
		return nil, err
	}
	exec, err := h.compiled.Resume(ctx, signal, graph.WithThreadID[T](threadID))
	if err != nil {
		return nil, err
	}
	return h.snapshot(exec)
}

func (h *Handle[T]) snapshot(exec graph.Execution[T]) (*Snapshot, error) {
	raw, err := json.Marshal(exec.State)
	if err != nil {
		return nil, errors.Wrap(err, "encode state")
	}
	return &Snapshot{
		ThreadID:     exec.ThreadID,
		WorkflowName: h.compiled.Name(),
		Status:       exec.Status,
		State:        raw,
		Interrupt:    exec.Interrupt,
	}, nil
}

func decodePayload[T state.GraphState[T]](payload json.RawMessage) (T, error) {
	var decoded T
	if len(payload) == 0 {
		return decoded, nil
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return decoded, errors.Wrap(err, "decode payload")
	}
	return decoded, nil
}

// dummyState only anchors the compile-time Runner conformance check above.
type dummyState struct{}

func (dummyState) Validate() error               { return nil }
func (d dummyState) Merge(dummyState) dummyState { return d }
