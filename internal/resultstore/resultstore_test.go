package resultstore

import (
	"context"
	"testing"

	"github.com/equihomepartners/core-engine/internal/simulation/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	summary := &orchestrator.RunSummary{RunID: "run-1", State: orchestrator.StateCompleted}
	require.NoError(t, store.StoreResult(ctx, "run-1", summary))

	got, err := store.GetResult(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, summary.State, got.State)
}

func TestMemoryStoreRejectsDuplicateWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	summary := &orchestrator.RunSummary{RunID: "run-1"}

	require.NoError(t, store.StoreResult(ctx, "run-1", summary))
	err := store.StoreResult(ctx, "run-1", summary)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryStoreGetMissingReturnsNotFound(t *testing.T) {
	_, err := NewMemory().GetResult(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	for _, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.StoreResult(ctx, id, &orchestrator.RunSummary{RunID: id}))
	}

	page, err := store.ListResults(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.StoreResult(ctx, "run-1", &orchestrator.RunSummary{RunID: "run-1"}))
	require.NoError(t, store.DeleteResult(ctx, "run-1"))
	_, err := store.GetResult(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFile(t.TempDir())
	require.NoError(t, err)

	summary := &orchestrator.RunSummary{RunID: "run-1", State: orchestrator.StateCompleted, NumLoans: 5}
	require.NoError(t, store.StoreResult(ctx, "run-1", summary))

	got, err := store.GetResult(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.NumLoans)
}

func TestFileStoreRejectsDuplicateWrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewFile(t.TempDir())
	require.NoError(t, err)

	summary := &orchestrator.RunSummary{RunID: "run-1"}
	require.NoError(t, store.StoreResult(ctx, "run-1", summary))
	err = store.StoreResult(ctx, "run-1", summary)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestFileStoreSanitizesRunIDPathTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewFile(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.StoreResult(ctx, "../../etc/passwd", &orchestrator.RunSummary{RunID: "evil"}))
	_, err = store.GetResult(ctx, "../../etc/passwd")
	assert.NoError(t, err)
}
