package testsupport

import (
	"testing"

	"clarifai/internal/config"
	"clarifai/internal/jobs"
)

// MustOpenStore opens the SQLite job store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.SQLiteStore {
	t.Helper()

	store, err := jobs.OpenSQLite(cfg.StoreDBPath())
	if err != nil {
		t.Fatalf("jobs.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
