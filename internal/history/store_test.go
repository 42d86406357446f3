package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendescribe/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndRecentNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	runs := []history.Run{
		{ID: "a", Trigger: "scheduled", Outcome: "success", Description: "first", StartedAt: base, FinishedAt: base.Add(5 * time.Second)},
		{ID: "b", Trigger: "manual", Outcome: "failure", Stage: "infer", Error: "model not found", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second)},
		{ID: "c", Trigger: "scheduled", Outcome: "success", Description: "third", StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(2*time.Hour + 3*time.Second)},
	}
	for _, run := range runs {
		require.NoError(t, store.Append(ctx, run))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)
	assert.Equal(t, "infer", recent[1].Stage)
	assert.Equal(t, "model not found", recent[1].Error)
	assert.Empty(t, recent[1].Description)
	assert.Equal(t, time.Second, recent[1].Duration())

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"success": 2, "failure": 1}, counts)
}

func TestAppendRequiresID(t *testing.T) {
	store := openStore(t)
	require.Error(t, store.Append(context.Background(), history.Run{Outcome: "success"}))
}

func TestPruneRemovesOldRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, history.Run{ID: "old", Trigger: "scheduled", Outcome: "success", StartedAt: now.AddDate(0, 0, -40), FinishedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, store.Append(ctx, history.Run{ID: "new", Trigger: "scheduled", Outcome: "success", StartedAt: now, FinishedAt: now}))

	removed, err := store.Prune(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ID)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, store.Append(context.Background(), history.Run{ID: "x", Trigger: "manual", Outcome: "success", StartedAt: now, FinishedAt: now}))
	require.NoError(t, store.Close())

	reopened, err := history.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	recent, err := reopened.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
