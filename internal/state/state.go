package state

type Mergeable[T any] interface {
	Merge(T) T
}

// State represents the base interface for any state type.
type State interface {
	// Validate validates the state
	Validate() error
}

// GraphState Combine both interfaces for graph states.
//
// A node receives the current state and returns a partial update which the
// engine folds back in via Merge. Each workflow declares its own state type
// and decides per field whether Merge overwrites or appends, so the merge
// semantics are part of the workflow's schema rather than engine guesswork.
type GraphState[T any] interface {
	State
	Mergeable[T]
}
