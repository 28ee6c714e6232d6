package workflow

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/checkpoint"
	"github.com/weftlabs/weft/internal/graph"
)

// Orchestrator resolves workflow names, decides new-vs-resume by thread, and
// hands execution to the workflow's compiled graph. It is the single entry
// point a transport layer (HTTP or otherwise) should talk to.
type Orchestrator struct {
	registry *Registry
	store    checkpoint.Store
	logger   *zap.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator builds an orchestrator over a populated registry and the
// checkpoint store shared with the registered workflows.
func NewOrchestrator(registry *Registry, store checkpoint.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		store:    store,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins a new thread of the named workflow with a fresh ThreadId and
// runs it until completion or the first interrupt point.
func (o *Orchestrator) Start(ctx context.Context, name string, payload json.RawMessage) (*Snapshot, error) {
	runner, err := o.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	threadID := uuid.New().String()
	o.logger.Debug("starting workflow",
		zap.String("workflow", name),
		zap.String("thread_id", threadID))

	return runner.Start(ctx, threadID, payload)
}

// Continue resumes an existing thread with new input. The thread must belong
// to the named workflow.
func (o *Orchestrator) Continue(ctx context.Context, name, threadID string, payload json.RawMessage) (*Snapshot, error) {
	runner, err := o.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	cp, err := o.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if cp.WorkflowName != name {
		return nil, errors.Wrapf(graph.ErrWorkflowMismatch,
			"thread %s belongs to workflow %q, not %q", threadID, cp.WorkflowName, name)
	}

	o.logger.Debug("continuing workflow",
		zap.String("workflow", name),
		zap.String("thread_id", threadID),
		zap.String("position", cp.Position))

	return runner.Resume(ctx, threadID, payload)
}

// GetState returns the latest persisted snapshot of a thread without running
// anything.
func (o *Orchestrator) GetState(ctx context.Context, name, threadID string) (*Snapshot, error) {
	if _, err := o.registry.Resolve(name); err != nil {
		return nil, err
	}

	cp, err := o.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if cp.WorkflowName != name {
		return nil, errors.Wrapf(graph.ErrWorkflowMismatch,
			"thread %s belongs to workflow %q, not %q", threadID, cp.WorkflowName, name)
	}

	return &Snapshot{
		ThreadID:     cp.ThreadID,
		WorkflowName: cp.WorkflowName,
		Status:       cp.Status,
		State:        cp.State,
		Interrupt:    cp.Interrupt,
	}, nil
}

// Workflows enumerates the registered workflow names.
func (o *Orchestrator) Workflows() []string {
	return o.registry.Names()
}
