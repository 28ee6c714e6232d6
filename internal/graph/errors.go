package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyCompiled is returned when attempting to modify a compiled graph
	ErrAlreadyCompiled = errors.New("graph is already compiled and cannot be modified")

	// ErrAwaitingInput is returned when a thread suspended at an interrupt
	// point is run again without a resume signal
	ErrAwaitingInput = errors.New("thread is awaiting external input")

	// ErrConcurrentExecution is returned when a run overlaps another run of
	// the same thread; the engine rejects rather than queueing
	ErrConcurrentExecution = errors.New("another run is in progress for this thread")

	// ErrGraphStuck is returned when no branch matches and no plain edge
	// leaves the current node; always fatal for that run
	ErrGraphStuck = errors.New("no matching branch and no default edge")

	// ErrStaleCheckpoint is returned when a persisted position references a
	// node missing from the currently compiled graph
	ErrStaleCheckpoint = errors.New("checkpoint position is not a node of the compiled graph")

	// ErrWorkflowMismatch is returned when a thread is bound to a different
	// workflow than the one requested
	ErrWorkflowMismatch = errors.New("thread belongs to a different workflow")

	// ErrMaxSteps is returned when the step budget is exhausted before END
	ErrMaxSteps = errors.New("max steps reached")
)

// NodeError wraps a failure raised inside a node's function.
type NodeError struct {
	// Node is the name of the node that failed
	Node string
	// Err is the underlying error
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
