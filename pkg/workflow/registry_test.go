package workflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRunner struct {
	name string
}

func (s *staticRunner) Name() string { return s.name }

func (s *staticRunner) Start(context.Context, string, json.RawMessage) (*Snapshot, error) {
	return &Snapshot{WorkflowName: s.name}, nil
}

func (s *staticRunner) Resume(context.Context, string, json.RawMessage) (*Snapshot, error) {
	return &Snapshot{WorkflowName: s.name}, nil
}

func TestRegistryRegisterResolve(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.NoError(t, r.Register(&staticRunner{name: "echo"}))

	runner, err := r.Resolve("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", runner.Name())
}

func TestRegistryRejectsDuplicatesAndEmptyNames(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.NoError(t, r.Register(&staticRunner{name: "echo"}))
	assert.Error(t, r.Register(&staticRunner{name: "echo"}))
	assert.Error(t, r.Register(&staticRunner{name: ""}))
}

func TestRegistryResolveUnknown(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	_, err := r.Resolve("missing")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestRegistryNamesSorted(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.NoError(t, r.Register(&staticRunner{name: "zeta"}))
	require.NoError(t, r.Register(&staticRunner{name: "alpha"}))
	require.NoError(t, r.Register(&staticRunner{name: "echo"}))

	assert.Equal(t, []string{"alpha", "echo", "zeta"}, r.Names())
}
