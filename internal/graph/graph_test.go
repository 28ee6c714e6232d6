package graph

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/checkpoint"
)

// buildState is a minimal state for definition-level tests.
type buildState struct {
	Value string `json:"value,omitempty"`
}

func (s buildState) Validate() error { return nil }

func (s buildState) Merge(other buildState) buildState {
	if other.Value != "" {
		s.Value = other.Value
	}
	return s
}

func noopNode(_ context.Context, s buildState, _ Config[buildState]) (buildState, error) {
	return buildState{}, nil
}

func TestAddNodeRejectsDuplicatesAndReservedNames(t *testing.T) {
	t.Parallel()
	g := NewGraph[buildState]("build")

	require.NoError(t, g.AddNode("a", noopNode, nil))
	require.Error(t, g.AddNode("a", noopNode, nil))
	require.Error(t, g.AddNode(START, noopNode, nil))
	require.Error(t, g.AddNode(END, noopNode, nil))
}

func TestAddEdgeValidatesEndpoints(t *testing.T) {
	t.Parallel()
	g := NewGraph[buildState]("build")
	require.NoError(t, g.AddNode("a", noopNode, nil))

	assert.Error(t, g.AddEdge("missing", "a", nil), "unknown source")
	assert.Error(t, g.AddEdge("a", "missing", nil), "unknown target")
	assert.Error(t, g.AddEdge(END, "a", nil), "edge from END")
	assert.Error(t, g.AddEdge("a", START, nil), "edge to START")
	assert.NoError(t, g.AddEdge("a", END, nil))
}

func TestSetEntryPoint(t *testing.T) {
	t.Parallel()
	g := NewGraph[buildState]("build")
	require.NoError(t, g.AddNode("a", noopNode, nil))

	assert.Error(t, g.SetEntryPoint("missing"))
	assert.Error(t, g.SetEntryPoint(END))
	assert.NoError(t, g.SetEntryPoint("a"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("entry point not set", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[buildState]("build")
		require.NoError(t, g.AddNode("a", noopNode, nil))
		require.NoError(t, g.AddEdge("a", END, nil))
		assert.ErrorContains(t, g.Validate(), "entry point")
	})

	t.Run("unreachable node", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[buildState]("build")
		require.NoError(t, g.AddNode("a", noopNode, nil))
		require.NoError(t, g.AddNode("orphan", noopNode, nil))
		require.NoError(t, g.AddEdge("a", END, nil))
		require.NoError(t, g.AddEdge("orphan", END, nil))
		require.NoError(t, g.SetEntryPoint("a"))
		assert.ErrorContains(t, g.Validate(), "unreachable")
	})

	t.Run("node without outgoing edge", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[buildState]("build")
		require.NoError(t, g.AddNode("a", noopNode, nil))
		require.NoError(t, g.AddNode("b", noopNode, nil))
		require.NoError(t, g.AddEdge("a", "b", nil))
		require.NoError(t, g.SetEntryPoint("a"))
		assert.ErrorContains(t, g.Validate(), "no outgoing")
	})

	t.Run("conditional targets count as reachable", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[buildState]("build")
		require.NoError(t, g.AddNode("a", noopNode, nil))
		require.NoError(t, g.AddNode("b", noopNode, nil))
		require.NoError(t, g.AddConditionalEdge("a", []string{"b", END},
			func(_ context.Context, _ buildState, _ Config[buildState]) string { return "b" }, nil))
		require.NoError(t, g.AddEdge("b", END, nil))
		require.NoError(t, g.SetEntryPoint("a"))
		assert.NoError(t, g.Validate())
	})
}

func TestCompileFreezesGraph(t *testing.T) {
	t.Parallel()
	g := NewGraph[buildState]("build")
	require.NoError(t, g.AddNode("a", noopNode, nil))
	require.NoError(t, g.AddEdge("a", END, nil))
	require.NoError(t, g.SetEntryPoint("a"))

	compiled, err := g.Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)
	assert.Equal(t, "build", compiled.Name())
	assert.Equal(t, "a", compiled.EntryPoint())

	assert.ErrorIs(t, g.AddNode("b", noopNode, nil), ErrAlreadyCompiled)
	assert.ErrorIs(t, g.AddEdge("a", END, nil), ErrAlreadyCompiled)
	assert.ErrorIs(t, g.SetEntryPoint("a"), ErrAlreadyCompiled)
	assert.ErrorIs(t, g.AddInterrupt("a", nil), ErrAlreadyCompiled)
	assert.ErrorIs(t, g.AddBranch("a",
		func(_ context.Context, _ buildState, _ Config[buildState]) string { return END }, nil),
		ErrAlreadyCompiled)
	assert.ErrorIs(t, g.AddConditionalEdge("a", []string{END},
		func(_ context.Context, _ buildState, _ Config[buildState]) string { return END }, nil),
		ErrAlreadyCompiled)
	assert.Empty(t, g.condTargets, "validation metadata must not change after compile")
}

func TestCompileRequiresStore(t *testing.T) {
	t.Parallel()
	g := NewGraph[buildState]("build")
	require.NoError(t, g.AddNode("a", noopNode, nil))
	require.NoError(t, g.AddEdge("a", END, nil))
	require.NoError(t, g.SetEntryPoint("a"))

	_, err := g.Compile(nil)
	require.Error(t, err)
}

func TestAddInterrupt(t *testing.T) {
	t.Parallel()
	g := NewGraph[buildState]("build")
	require.NoError(t, g.AddNode("a", noopNode, nil))

	payload := json.RawMessage(`{"awaiting":"approval"}`)
	assert.Error(t, g.AddInterrupt("missing", payload))
	assert.NoError(t, g.AddInterrupt("a", payload))
	assert.Error(t, g.AddInterrupt("a", payload), "duplicate interrupt")
}
