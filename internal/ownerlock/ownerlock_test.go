package ownerlock

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryAcquireRejectsSecondRequest(t *testing.T) {
	reg := New(t.TempDir())

	release, err := reg.TryAcquire("alice", "job-1")
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if _, err := reg.TryAcquire("alice", "job-2"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if holder, ok := reg.Holder("alice"); !ok || holder != "job-1" {
		t.Fatalf("unexpected holder %q %v", holder, ok)
	}

	other, err := reg.TryAcquire("bob", "job-3")
	if err != nil {
		t.Fatalf("different owners must not block each other: %v", err)
	}
	other()

	release()
	release()
	again, err := reg.TryAcquire("alice", "job-4")
	if err != nil {
		t.Fatalf("expected owner to be free after release: %v", err)
	}
	again()
}

func TestTryAcquireAcrossRegistriesSharingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	first := New(dir)
	second := New(dir)

	release, err := first.TryAcquire("Alice Smith", "job-1")
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if _, err := second.TryAcquire("Alice Smith", "job-2"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected file lock to reject second registry, got %v", err)
	}
	release()
	if rel, err := second.TryAcquire("Alice Smith", "job-2"); err != nil {
		t.Fatalf("expected lock free after release: %v", err)
	} else {
		rel()
	}
}

func TestTryAcquireConcurrentSingleWinner(t *testing.T) {
	reg := New("")
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := reg.TryAcquire("alice", "job"); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestTryAcquireRequiresOwner(t *testing.T) {
	if _, err := New("").TryAcquire("  ", "job"); err == nil {
		t.Fatal("expected error for empty owner")
	}
}
