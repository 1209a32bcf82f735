package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"clarifai/internal/jobs"
	"clarifai/internal/ownerlock"
	"clarifai/internal/services"
)

func newTestManager(t *testing.T, h *harness, opts ...ManagerOption) *Manager {
	t.Helper()
	var seq atomic.Int64
	opts = append([]ManagerOption{WithIDGenerator(func() string {
		return fmt.Sprintf("job-%d", seq.Add(1))
	})}, opts...)
	m := NewManager(h.cfg, h.store, h.orch, nil, opts...)
	t.Cleanup(m.Stop)
	return m
}

func request(owner string) Request {
	return Request{
		Owner:              owner,
		ConceptName:        "chain rule",
		ConceptDescription: "Differentiate a composition.",
	}
}

func TestManagerRejectsSecondRequestForOwner(t *testing.T) {
	renderer := &stubRenderer{gate: make(chan struct{}), started: make(chan string, 4)}
	h := newHarness(t, []string{"one"}, renderer)
	m := newTestManager(t, h)
	ctx := waitCtx(t)

	first, err := m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if first.Status != jobs.StatusGenerating {
		t.Fatalf("expected generating, got %s", first.Status)
	}
	<-renderer.started

	_, err = m.Submit(ctx, request("alice"))
	if !errors.Is(err, ErrOwnerBusy) || !errors.Is(err, ownerlock.ErrBusy) {
		t.Fatalf("expected ErrOwnerBusy, got %v", err)
	}
	if !strings.Contains(err.Error(), first.ID) {
		t.Fatalf("rejection should name the running job, got %v", err)
	}

	other, err := m.Submit(ctx, request("bob"))
	if err != nil {
		t.Fatalf("other owner should not be blocked: %v", err)
	}

	close(renderer.gate)
	for _, id := range []string{first.ID, other.ID} {
		job, err := m.Wait(ctx, id)
		if err != nil {
			t.Fatalf("Wait(%s): %v", id, err)
		}
		if job.Status != jobs.StatusCompleted {
			t.Fatalf("job %s ended %s: %s", id, job.Status, job.ErrorMessage)
		}
	}

	again, err := m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("owner should be free after completion: %v", err)
	}
	if _, err := m.Wait(ctx, again.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	listed, err := m.List(ctx, "alice")
	if err != nil || len(listed) != 2 {
		t.Fatalf("expected 2 jobs for alice, got %d (%v)", len(listed), err)
	}
}

func TestManagerReleasesOwnerAfterPanic(t *testing.T) {
	renderer := &stubRenderer{panicOn: "scene_1.mp4"}
	h := newHarness(t, []string{"one"}, renderer)
	m := newTestManager(t, h)
	ctx := waitCtx(t)

	job, err := m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final, err := m.Wait(ctx, job.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if final.Status != jobs.StatusFailed || final.FailureReason != jobs.ReasonInternal {
		t.Fatalf("expected internal failure, got %s/%s", final.Status, final.FailureReason)
	}
	if !strings.Contains(final.ErrorMessage, "renderer exploded") {
		t.Fatalf("panic value not recorded: %q", final.ErrorMessage)
	}

	renderer.panicOn = ""
	next, err := m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("owner still locked after panic: %v", err)
	}
	if final, _ := m.Wait(ctx, next.ID); final.Status != jobs.StatusCompleted {
		t.Fatalf("expected completion after recovery, got %s", final.Status)
	}
}

// blockingNotifier holds completion notifications until release is closed.
type blockingNotifier struct {
	recordingNotifier
	entered chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) NotifyJobCompleted(ctx context.Context, conceptName, finalPath string, sceneCount int) error {
	n.entered <- struct{}{}
	<-n.release
	return n.recordingNotifier.NotifyJobCompleted(ctx, conceptName, finalPath, sceneCount)
}

func TestManagerFreesOwnerBeforeNotifying(t *testing.T) {
	h := newHarness(t, []string{"one"}, &stubRenderer{})
	notifier := &blockingNotifier{entered: make(chan struct{}, 2), release: make(chan struct{})}
	m := newTestManager(t, h, WithNotifier(notifier))
	ctx := waitCtx(t)

	first, err := m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-notifier.entered:
	case <-ctx.Done():
		t.Fatal("completion notification never started")
	}

	stored, err := m.Get(ctx, first.ID)
	if err != nil || stored.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed job while notifying, got %+v (%v)", stored, err)
	}
	second, err := m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("owner still busy while a finished job notifies: %v", err)
	}

	close(notifier.release)
	for _, id := range []string{first.ID, second.ID} {
		if final, err := m.Wait(ctx, id); err != nil || final.Status != jobs.StatusCompleted {
			t.Fatalf("job %s did not complete: %+v (%v)", id, final, err)
		}
	}
}

func TestManagerFinalPathOnlyOnSuccess(t *testing.T) {
	renderer := &stubRenderer{fail: map[string]bool{"scene_2.mp4": true}}
	h := newHarness(t, []string{"one", "two"}, renderer)
	notifier := &recordingNotifier{}
	m := newTestManager(t, h, WithNotifier(notifier))
	ctx := waitCtx(t)

	job, err := m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final, err := m.Wait(ctx, job.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if final.Status != jobs.StatusFailed || final.FinalVideoPath != "" {
		t.Fatalf("failed job must have no final path: %+v", final)
	}
	if len(notifier.failed) != 1 || !strings.HasPrefix(notifier.failed[0], "Chain Rule|Scene 2 failed") {
		t.Fatalf("unexpected failure notifications %v", notifier.failed)
	}

	renderer.fail = nil
	job, err = m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final, _ = m.Wait(ctx, job.ID)
	if final.Status != jobs.StatusCompleted || final.FinalVideoPath == "" {
		t.Fatalf("completed job must have a final path: %+v", final)
	}
	if len(notifier.completed) != 1 || !strings.HasSuffix(notifier.completed[0], "|2") {
		t.Fatalf("unexpected completion notifications %v", notifier.completed)
	}
}

func TestManagerStopCancelsRunningJob(t *testing.T) {
	renderer := &stubRenderer{gate: make(chan struct{}), started: make(chan string, 1)}
	h := newHarness(t, []string{"one"}, renderer)
	notifier := &recordingNotifier{}
	m := NewManager(h.cfg, h.store, h.orch, nil, WithNotifier(notifier))
	ctx := waitCtx(t)

	job, err := m.Submit(ctx, request("alice"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-renderer.started
	m.Stop()

	final, err := m.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != jobs.StatusFailed || final.FailureReason != jobs.ReasonCanceled {
		t.Fatalf("expected canceled job, got %s/%s", final.Status, final.FailureReason)
	}
	if len(notifier.failed) != 0 {
		t.Fatal("canceled jobs are not announced")
	}
	if _, err := m.Submit(ctx, request("alice")); err == nil {
		t.Fatal("stopped manager must reject new jobs")
	}
}

func TestManagerValidatesRequest(t *testing.T) {
	h := newHarness(t, []string{"one"}, &stubRenderer{})
	m := newTestManager(t, h)

	cases := map[string]Request{
		"missing owner":       {ConceptName: "x", ConceptDescription: "y"},
		"missing description": {Owner: "alice", ConceptName: "x"},
		"bad quality":         {Owner: "alice", ConceptName: "x", ConceptDescription: "y", Quality: "ultra"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Submit(context.Background(), req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestManagerAppliesRequestOverrides(t *testing.T) {
	h := newHarness(t, []string{"one"}, &stubRenderer{})
	var gotQuality string
	runner := h.orch.runners
	h.orch.runners = func(q string) SceneRunner {
		gotQuality = q
		return runner(q)
	}
	m := newTestManager(t, h)
	ctx := waitCtx(t)

	req := request("alice")
	req.Quality = " HIGH "
	req.OutputDir = t.TempDir()
	job, err := m.Submit(ctx, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final, _ := m.Wait(ctx, job.ID)
	if gotQuality != "high" || final.Quality != "high" {
		t.Fatalf("quality override lost: runner %q job %q", gotQuality, final.Quality)
	}
	if !strings.HasPrefix(final.FinalVideoPath, req.OutputDir) {
		t.Fatalf("output dir override lost: %q", final.FinalVideoPath)
	}
}
