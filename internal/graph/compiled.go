package graph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/checkpoint"
	"github.com/weftlabs/weft/internal/state"
)

// CompiledGraph is a validated, immutable graph bound to a checkpoint store.
// Run starts or crash-recovers a thread; Resume continues an interrupted one.
// At most one run may execute per thread at a time: overlapping calls are
// rejected with ErrConcurrentExecution (lease held in the store, so the
// guarantee holds across processes).
type CompiledGraph[T state.GraphState[T]] struct {
	graph  *Graph[T]
	store  checkpoint.Store
	config Config[T]
}

// Execution is the outcome of one Run or Resume call. An interrupt is
// reported through Status and Interrupt, not as an error.
type Execution[T state.GraphState[T]] struct {
	ThreadID  string
	State     T
	Status    checkpoint.Status
	Interrupt json.RawMessage
}

// Compile validates the graph and binds it to a checkpoint store. The graph
// cannot be modified afterwards.
func (g *Graph[T]) Compile(store checkpoint.Store, opts ...CompilationOption[T]) (*CompiledGraph[T], error) {
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "graph validation failed")
	}

	g.compiled = true

	return &CompiledGraph[T]{
		graph:  g,
		store:  store,
		config: newConfig(opts...),
	}, nil
}

// Name returns the compiled workflow's name.
func (cg *CompiledGraph[T]) Name() string {
	return cg.graph.name
}

// EntryPoint returns the node the graph starts from.
func (cg *CompiledGraph[T]) EntryPoint() string {
	return cg.graph.entryPoint
}

// Run starts a new thread, or re-enters a crashed or failed one at its last
// committed position. Running it against a thread suspended at an interrupt
// point fails with ErrAwaitingInput; use Resume for that. Running against a
// completed thread returns the final snapshot without re-executing anything.
func (cg *CompiledGraph[T]) Run(ctx context.Context, input T, opts ...ExecutionOption[T]) (Execution[T], error) {
	cfg := cg.config.forRun(opts...)
	return cg.execute(ctx, cfg, func(ctx context.Context) (Execution[T], error) {
		cp, err := cg.store.Load(ctx, cfg.ThreadID)
		if errors.Is(err, checkpoint.ErrNotFound) {
			return cg.startFresh(ctx, cfg, input)
		}
		if err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "load checkpoint")
		}
		if err := cg.checkOwnership(cp); err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, err
		}

		switch cp.Status {
		case checkpoint.StatusCompleted:
			return cg.snapshot(cp)
		case checkpoint.StatusInterrupted:
			exec, serr := cg.snapshot(cp)
			if serr != nil {
				return exec, serr
			}
			return exec, errors.Wrapf(ErrAwaitingInput, "thread %s interrupted at %s", cp.ThreadID, cp.Position)
		default:
			// running (crash recovery) or failed (retry): re-enter at the
			// last committed position with the last committed state.
			st, derr := cg.decodeState(cp.State)
			if derr != nil {
				return Execution[T]{ThreadID: cfg.ThreadID}, derr
			}
			return cg.loop(ctx, cfg, cp, st)
		}
	})
}

// Resume continues a suspended thread with an external signal. The signal is
// merged into the thread's state and execution proceeds through the interrupt
// point it was suspended at.
func (cg *CompiledGraph[T]) Resume(ctx context.Context, signal T, opts ...ExecutionOption[T]) (Execution[T], error) {
	cfg := cg.config.forRun(opts...)
	return cg.execute(ctx, cfg, func(ctx context.Context) (Execution[T], error) {
		cp, err := cg.store.Load(ctx, cfg.ThreadID)
		if err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "load checkpoint")
		}
		if err := cg.checkOwnership(cp); err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, err
		}

		if cp.Status == checkpoint.StatusCompleted {
			// Nothing left to resume; hand back the final snapshot.
			return cg.snapshot(cp)
		}

		// Refuse before merging the signal: a stale position must leave the
		// stored checkpoint exactly as it was.
		if _, exists := cg.graph.nodes[cp.Position]; !exists && cp.Position != END {
			return Execution[T]{ThreadID: cfg.ThreadID},
				errors.Wrapf(ErrStaleCheckpoint, "thread %s references node %q", cp.ThreadID, cp.Position)
		}

		st, err := cg.decodeState(cp.State)
		if err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, err
		}
		st = st.Merge(signal)
		if err := st.Validate(); err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "invalid merged state")
		}

		raw, err := json.Marshal(st)
		if err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "encode state")
		}
		cp.State = raw
		cp.Status = checkpoint.StatusRunning
		cp.Interrupt = nil
		// Commit the merged signal before executing so a crash mid-node does
		// not re-raise the already answered interrupt.
		if err := cg.store.Save(ctx, cp); err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "save checkpoint")
		}

		return cg.loop(ctx, cfg, cp, st)
	})
}

// execute wraps a run body with the timeout and the per-thread lease.
func (cg *CompiledGraph[T]) execute(
	ctx context.Context,
	cfg Config[T],
	body func(context.Context) (Execution[T], error),
) (Execution[T], error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	owner := uuid.New().String()
	acquired, err := cg.store.AcquireLease(ctx, cfg.ThreadID, owner, cfg.LeaseTTL)
	if err != nil {
		return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "acquire lease")
	}
	if !acquired {
		return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrapf(ErrConcurrentExecution, "thread %s", cfg.ThreadID)
	}
	defer func() {
		// Release must not be lost to a run timeout.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := cg.store.ReleaseLease(releaseCtx, cfg.ThreadID, owner); rerr != nil {
			cfg.Logger.Error("failed to release lease",
				zap.String("thread_id", cfg.ThreadID),
				zap.Error(rerr))
		}
	}()

	return body(ctx)
}

// startFresh creates the initial checkpoint for a new thread and runs it.
func (cg *CompiledGraph[T]) startFresh(ctx context.Context, cfg Config[T], input T) (Execution[T], error) {
	if err := input.Validate(); err != nil {
		return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "invalid initial state")
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "encode state")
	}

	cp := &checkpoint.Checkpoint{
		ThreadID:     cfg.ThreadID,
		WorkflowName: cg.graph.name,
		State:        raw,
		Status:       checkpoint.StatusRunning,
		Position:     cg.graph.entryPoint,
	}

	// The entry point itself may be an interrupt point.
	if payload, ok := cg.graph.interrupts[cp.Position]; ok {
		cp.Status = checkpoint.StatusInterrupted
		cp.Interrupt = payload
		if err := cg.store.Save(ctx, cp); err != nil {
			return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "save checkpoint")
		}
		return Execution[T]{
			ThreadID:  cfg.ThreadID,
			State:     input,
			Status:    checkpoint.StatusInterrupted,
			Interrupt: payload,
		}, nil
	}

	if err := cg.store.Save(ctx, cp); err != nil {
		return Execution[T]{ThreadID: cfg.ThreadID}, errors.Wrap(err, "save checkpoint")
	}
	return cg.loop(ctx, cfg, cp, input)
}

// loop is the step loop: execute the node at the committed position, merge
// its partial update, resolve the next position and persist, until END or an
// interrupt point. The committed checkpoint always references a position that
// has not been executed yet.
func (cg *CompiledGraph[T]) loop(
	ctx context.Context,
	cfg Config[T],
	cp *checkpoint.Checkpoint,
	st T,
) (Execution[T], error) {
	for cp.Position != END {
		if cfg.MaxSteps > 0 && cp.Steps >= cfg.MaxSteps {
			return cg.result(cp, st), errors.Wrapf(ErrMaxSteps, "thread %s at node %s", cp.ThreadID, cp.Position)
		}

		node, exists := cg.graph.nodes[cp.Position]
		if !exists {
			return cg.result(cp, st), errors.Wrapf(ErrStaleCheckpoint, "thread %s references node %q", cp.ThreadID, cp.Position)
		}

		cfg.Logger.Debug("executing node",
			zap.String("workflow", cg.graph.name),
			zap.String("thread_id", cp.ThreadID),
			zap.String("node", cp.Position),
			zap.Int("step", cp.Steps))

		update, err := cg.executeNode(ctx, node, st, cfg)
		if err != nil {
			// Keep the last good state and position so a retry re-enters
			// cleanly at this node; only the status records the failure.
			cp.Status = checkpoint.StatusFailed
			if serr := cg.store.Save(ctx, cp); serr != nil {
				cfg.Logger.Error("failed to persist failure checkpoint",
					zap.String("thread_id", cp.ThreadID),
					zap.Error(serr))
			}
			cfg.Logger.Error("node execution failed",
				zap.String("thread_id", cp.ThreadID),
				zap.String("node", node.Name),
				zap.Error(err))
			return cg.result(cp, st), &NodeError{Node: node.Name, Err: err}
		}
		st = st.Merge(update)

		next, err := cg.nextNode(ctx, cp.Position, st, cfg)
		if err != nil {
			// The prior checkpoint stays untouched for stuck graphs.
			return cg.result(cp, st), err
		}

		cfg.Logger.Debug("transition",
			zap.String("thread_id", cp.ThreadID),
			zap.String("from", cp.Position),
			zap.String("to", next))

		raw, err := json.Marshal(st)
		if err != nil {
			return cg.result(cp, st), errors.Wrap(err, "encode state")
		}
		cp.State = raw
		cp.Position = next
		cp.Steps++
		cp.Status = checkpoint.StatusRunning
		cp.Interrupt = nil

		if payload, ok := cg.graph.interrupts[next]; ok && next != END {
			cp.Status = checkpoint.StatusInterrupted
			cp.Interrupt = payload
			if err := cg.store.Save(ctx, cp); err != nil {
				return cg.result(cp, st), errors.Wrap(err, "save checkpoint")
			}
			return Execution[T]{
				ThreadID:  cp.ThreadID,
				State:     st,
				Status:    checkpoint.StatusInterrupted,
				Interrupt: payload,
			}, nil
		}

		if err := cg.store.Save(ctx, cp); err != nil {
			return cg.result(cp, st), errors.Wrap(err, "save checkpoint")
		}
	}

	cp.Status = checkpoint.StatusCompleted
	if err := cg.store.Save(ctx, cp); err != nil {
		return cg.result(cp, st), errors.Wrap(err, "save checkpoint")
	}
	return Execution[T]{
		ThreadID: cp.ThreadID,
		State:    st,
		Status:   checkpoint.StatusCompleted,
	}, nil
}

func (cg *CompiledGraph[T]) executeNode(ctx context.Context, node NodeSpec[T], st T, cfg Config[T]) (T, error) {
	maxAttempts := 1
	if node.RetryPolicy != nil && node.RetryPolicy.MaxAttempts > 1 {
		maxAttempts = node.RetryPolicy.MaxAttempts
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(node.RetryPolicy.Delay):
			}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		update, err := node.Function(ctx, st, cfg)
		if err == nil {
			return update, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// nextNode resolves the transition out of a node: branches in declared order
// first, then the first plain edge as the default.
func (cg *CompiledGraph[T]) nextNode(ctx context.Context, current string, st T, cfg Config[T]) (string, error) {
	for _, branch := range cg.graph.branches[current] {
		if target := branch.Path(ctx, st, cfg); target != "" {
			return target, nil
		}
	}

	for _, edge := range cg.graph.edges {
		if edge.From == current {
			return edge.To, nil
		}
	}

	return "", errors.Wrapf(ErrGraphStuck, "no transition from node %s", current)
}

func (cg *CompiledGraph[T]) checkOwnership(cp *checkpoint.Checkpoint) error {
	if cp.WorkflowName != cg.graph.name {
		return errors.Wrapf(ErrWorkflowMismatch,
			"thread %s belongs to workflow %q, not %q", cp.ThreadID, cp.WorkflowName, cg.graph.name)
	}
	return nil
}

func (cg *CompiledGraph[T]) decodeState(raw json.RawMessage) (T, error) {
	var st T
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return st, errors.Wrap(err, "decode state")
	}
	return st, nil
}

func (cg *CompiledGraph[T]) snapshot(cp *checkpoint.Checkpoint) (Execution[T], error) {
	st, err := cg.decodeState(cp.State)
	if err != nil {
		return Execution[T]{ThreadID: cp.ThreadID}, err
	}
	return Execution[T]{
		ThreadID:  cp.ThreadID,
		State:     st,
		Status:    cp.Status,
		Interrupt: cp.Interrupt,
	}, nil
}

func (cg *CompiledGraph[T]) result(cp *checkpoint.Checkpoint, st T) Execution[T] {
	return Execution[T]{
		ThreadID:  cp.ThreadID,
		State:     st,
		Status:    cp.Status,
		Interrupt: cp.Interrupt,
	}
}
