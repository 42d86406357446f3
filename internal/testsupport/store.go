package testsupport

import (
	"testing"

	"screendescribe/internal/config"
	"screendescribe/internal/history"
)

// MustOpenHistory opens the run history store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
