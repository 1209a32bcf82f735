package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

type storeFactory func(t *testing.T, clock func() time.Time) Store

func storeImplementations() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clock func() time.Time) Store {
			store := NewMemoryStore()
			store.now = clock
			return store
		},
		"sqlite": func(t *testing.T, clock func() time.Time) Store {
			store, err := OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			store.now = clock
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newJob(id, owner string) *ConceptJob {
	return &ConceptJob{
		ID:                 id,
		Owner:              owner,
		ConceptName:        "Pythagoras",
		ConceptDescription: "Show a right triangle. Then show squares on each side.",
		Status:             StatusPending,
	}
}

func TestStorePutGetRoundTrip(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
			store := factory(t, clock.Now)
			ctx := context.Background()

			job := newJob("job-1", "alice")
			job.Scenes = []Scene{{Index: 0, Description: "triangle"}, {Index: 1, Description: "squares"}}
			job.AppendLog(clock.Now(), "Planned 2 scenes")
			job.ClipPaths = []string{"/tmp/a.mp4"}
			if err := store.Put(ctx, job); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := store.Get(ctx, "job-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Owner != "alice" || got.Status != StatusPending {
				t.Fatalf("unexpected job %+v", got)
			}
			if len(got.Scenes) != 2 || got.Scenes[1].Description != "squares" {
				t.Fatalf("unexpected scenes %+v", got.Scenes)
			}
			if len(got.Log) != 1 || got.Log[0].Message != "Planned 2 scenes" {
				t.Fatalf("unexpected log %+v", got.Log)
			}
			if len(got.ClipPaths) != 1 || got.ClipPaths[0] != "/tmp/a.mp4" {
				t.Fatalf("unexpected clip paths %v", got.ClipPaths)
			}
			if !got.CreatedAt.Equal(clock.now) {
				t.Fatalf("expected created_at %v, got %v", clock.now, got.CreatedAt)
			}

			got.ClipPaths[0] = "mutated"
			again, err := store.Get(ctx, "job-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if again.ClipPaths[0] != "/tmp/a.mp4" {
				t.Fatal("mutating a returned job must not change the store")
			}
		})
	}
}

func TestStoreGetUnknown(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := store.Put(context.Background(), &ConceptJob{}); err == nil {
				t.Fatal("expected error for job without id")
			}
		})
	}
}

func TestStoreCompareAndSwapStatus(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			ctx := context.Background()
			if err := store.Put(ctx, newJob("job-1", "alice")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			swapped, err := store.CompareAndSwapStatus(ctx, "job-1", StatusPending, StatusGenerating)
			if err != nil || !swapped {
				t.Fatalf("expected first swap to succeed, got %v, %v", swapped, err)
			}
			swapped, err = store.CompareAndSwapStatus(ctx, "job-1", StatusPending, StatusGenerating)
			if err != nil || swapped {
				t.Fatalf("expected second swap to be rejected, got %v, %v", swapped, err)
			}
			if _, err := store.CompareAndSwapStatus(ctx, "missing", StatusPending, StatusGenerating); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for unknown job, got %v", err)
			}

			got, err := store.Get(ctx, "job-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != StatusGenerating {
				t.Fatalf("expected generating, got %s", got.Status)
			}
		})
	}
}

func TestStoreListByOwnerNewestFirst(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
			store := factory(t, clock.Now)
			ctx := context.Background()
			for _, job := range []*ConceptJob{newJob("a", "alice"), newJob("b", "bob"), newJob("c", "alice")} {
				if err := store.Put(ctx, job); err != nil {
					t.Fatalf("Put: %v", err)
				}
				clock.Advance(time.Minute)
			}

			mine, err := store.List(ctx, "alice")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(mine) != 2 || mine[0].ID != "c" || mine[1].ID != "a" {
				t.Fatalf("unexpected owner listing %+v", mine)
			}
			all, err := store.List(ctx, "")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("expected 3 jobs, got %d", len(all))
			}
		})
	}
}

func TestStoreFailStale(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
			store := factory(t, clock.Now)
			ctx := context.Background()

			stale := newJob("stale", "alice")
			stale.Status = StatusGenerating
			fresh := newJob("fresh", "bob")
			fresh.Status = StatusGenerating
			done := newJob("done", "carol")
			done.Status = StatusCompleted
			for _, job := range []*ConceptJob{stale, fresh, done} {
				if err := store.Put(ctx, job); err != nil {
					t.Fatalf("Put: %v", err)
				}
			}
			clock.Advance(10 * time.Minute)
			if err := store.UpdateHeartbeat(ctx, "fresh"); err != nil {
				t.Fatalf("UpdateHeartbeat: %v", err)
			}
			if err := store.UpdateHeartbeat(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound heartbeat, got %v", err)
			}

			count, err := store.FailStale(ctx, clock.Now().Add(-5*time.Minute), "run abandoned")
			if err != nil {
				t.Fatalf("FailStale: %v", err)
			}
			if count != 1 {
				t.Fatalf("expected 1 stale job, got %d", count)
			}

			got, err := store.Get(ctx, "stale")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != StatusFailed || got.FailureReason != ReasonStale {
				t.Fatalf("expected stale failure, got %s/%s", got.Status, got.FailureReason)
			}
			if len(got.Log) == 0 || got.Log[len(got.Log)-1].Message != "run abandoned" {
				t.Fatalf("expected log entry, got %+v", got.Log)
			}
			for _, id := range []string{"fresh", "done"} {
				other, err := store.Get(ctx, id)
				if err != nil {
					t.Fatalf("Get %s: %v", id, err)
				}
				if other.Status == StatusFailed {
					t.Fatalf("job %s should not be failed", id)
				}
			}
		})
	}
}

func TestOpenSQLiteReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jobs.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := store.Put(context.Background(), newJob("keep", "alice")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "keep"); err != nil {
		t.Fatalf("expected persisted job, got %v", err)
	}
	if reopened.Path() != path {
		t.Fatalf("unexpected path %q", reopened.Path())
	}
}

func TestStorePutKeepsHeartbeat(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
			store := factory(t, clock.Now)
			ctx := context.Background()

			job := newJob("job-hb", "alice")
			job.Status = StatusGenerating
			if err := store.Put(ctx, job); err != nil {
				t.Fatalf("Put: %v", err)
			}
			clock.Advance(time.Minute)
			if err := store.UpdateHeartbeat(ctx, job.ID); err != nil {
				t.Fatalf("UpdateHeartbeat: %v", err)
			}
			job.AppendLog(clock.Now(), "Scene 1 rendered successfully on attempt 1/3")
			if err := store.Put(ctx, job); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := store.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.LastHeartbeat == nil || !got.LastHeartbeat.Equal(clock.Now()) {
				t.Fatalf("heartbeat lost after Put: %v", got.LastHeartbeat)
			}
		})
	}
}

func TestStorePutDoesNotMoveStatus(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			ctx := context.Background()

			job := newJob("job-1", "alice")
			job.Status = StatusGenerating
			if err := store.Put(ctx, job); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if _, err := store.FailStale(ctx, time.Now().Add(time.Hour), "run abandoned"); err != nil {
				t.Fatalf("FailStale: %v", err)
			}

			job.AppendLog(time.Now(), "Scene 2 rendered successfully on attempt 1/3")
			if err := store.Put(ctx, job); !errors.Is(err, ErrStatusChanged) {
				t.Fatalf("expected ErrStatusChanged, got %v", err)
			}
			got, err := store.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != StatusFailed || got.FailureReason != ReasonStale {
				t.Fatalf("stale failure overwritten: %s/%s", got.Status, got.FailureReason)
			}
			if got.ErrorMessage != "run abandoned" {
				t.Fatalf("unexpected error message %q", got.ErrorMessage)
			}
		})
	}
}

func TestStorePutIfStatus(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			store := factory(t, time.Now)
			ctx := context.Background()

			job := newJob("job-1", "alice")
			job.Status = StatusGenerating
			if err := store.Put(ctx, job); err != nil {
				t.Fatalf("Put: %v", err)
			}

			job.Status = StatusCompleted
			job.FinalVideoPath = "/out/job-1/Pythagoras.mp4"
			ok, err := store.PutIfStatus(ctx, job, StatusGenerating)
			if err != nil || !ok {
				t.Fatalf("expected conditional write, got %v, %v", ok, err)
			}
			got, err := store.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != StatusCompleted || got.FinalVideoPath != job.FinalVideoPath {
				t.Fatalf("unexpected job %s %q", got.Status, got.FinalVideoPath)
			}

			job.Status = StatusFailed
			job.FinalVideoPath = ""
			ok, err = store.PutIfStatus(ctx, job, StatusGenerating)
			if err != nil || ok {
				t.Fatalf("expected rejected write, got %v, %v", ok, err)
			}
			got, err = store.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != StatusCompleted || got.FinalVideoPath == "" {
				t.Fatalf("rejected write changed job: %s %q", got.Status, got.FinalVideoPath)
			}

			if _, err := store.PutIfStatus(ctx, newJob("missing", "alice"), StatusPending); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreFailStaleKeepsLaterLogEntries(t *testing.T) {
	for name, factory := range storeImplementations() {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
			store := factory(t, clock.Now)
			ctx := context.Background()

			job := newJob("job-1", "alice")
			job.Status = StatusGenerating
			job.AppendLog(clock.Now(), "Planned 2 scenes")
			if err := store.Put(ctx, job); err != nil {
				t.Fatalf("Put: %v", err)
			}
			job.AppendLog(clock.Now(), "Scene 1 rendered successfully on attempt 1/3")
			if err := store.Put(ctx, job); err != nil {
				t.Fatalf("Put: %v", err)
			}

			clock.Advance(10 * time.Minute)
			if _, err := store.FailStale(ctx, clock.Now().Add(-5*time.Minute), "run abandoned"); err != nil {
				t.Fatalf("FailStale: %v", err)
			}
			got, err := store.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			want := []string{"Planned 2 scenes", "Scene 1 rendered successfully on attempt 1/3", "run abandoned"}
			if len(got.Log) != len(want) {
				t.Fatalf("expected %d log entries, got %+v", len(want), got.Log)
			}
			for i, msg := range want {
				if got.Log[i].Message != msg {
					t.Fatalf("log[%d] = %q, want %q", i, got.Log[i].Message, msg)
				}
			}
			if got.FinalVideoPath != "" {
				t.Fatalf("stale job kept final path %q", got.FinalVideoPath)
			}
		})
	}
}
