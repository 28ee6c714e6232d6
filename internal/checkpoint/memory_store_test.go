package checkpoint

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	cp := &Checkpoint{
		ThreadID:     "thread-1",
		WorkflowName: "echo",
		State:        json.RawMessage(`{"name":"Ada"}`),
		Status:       StatusRunning,
		Position:     "collect",
		Steps:        1,
	}
	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "echo", loaded.WorkflowName)
	assert.Equal(t, StatusRunning, loaded.Status)
	assert.Equal(t, "collect", loaded.Position)
	assert.JSONEq(t, `{"name":"Ada"}`, string(loaded.State))
	assert.False(t, loaded.UpdatedAt.IsZero())

	// Mutating the loaded copy must not leak back into the store.
	loaded.Position = "greet"
	again, err := store.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "collect", again.Position)
}

func TestMemoryStoreLoadNotFound(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSaveUpserts(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	cp := &Checkpoint{ThreadID: "t", WorkflowName: "echo", Status: StatusRunning, Position: "a"}
	require.NoError(t, store.Save(ctx, cp))

	cp.Status = StatusCompleted
	cp.Position = "END"
	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.Equal(t, "END", loaded.Position)
}

func TestMemoryStoreLease(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	acquired, err := store.AcquireLease(ctx, "t", "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// Another owner is rejected while the lease is live.
	acquired, err = store.AcquireLease(ctx, "t", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// Same owner is re-entrant.
	acquired, err = store.AcquireLease(ctx, "t", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Release by a non-owner is a no-op.
	require.NoError(t, store.ReleaseLease(ctx, "t", "owner-b"))
	acquired, err = store.AcquireLease(ctx, "t", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, store.ReleaseLease(ctx, "t", "owner-a"))
	acquired, err = store.AcquireLease(ctx, "t", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryStoreLeaseExpiry(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	acquired, err := store.AcquireLease(ctx, "t", "owner-a", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	acquired, err = store.AcquireLease(ctx, "t", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "expired lease should be claimable")
}
