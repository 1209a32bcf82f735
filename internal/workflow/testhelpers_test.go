package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"clarifai/internal/config"
	"clarifai/internal/jobs"
	"clarifai/internal/repair"
	"clarifai/internal/testsupport"
)

type stubPlanner struct {
	scenes   []string
	fallback bool
}

func (p stubPlanner) Plan(_ context.Context, _, _ string) ([]jobs.Scene, bool) {
	out := make([]jobs.Scene, len(p.scenes))
	for i, description := range p.scenes {
		out[i] = jobs.Scene{Index: i, Description: description}
	}
	return out, !p.fallback
}

type stubSynth struct {
	mu          sync.Mutex
	syntheses   []string
	corrections int
}

func (s *stubSynth) Synthesize(_ context.Context, description string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syntheses = append(s.syntheses, description)
	return "from manim import *\n\nclass S(Scene):  # " + description, nil
}

func (s *stubSynth) Correct(_ context.Context, previousCode, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrections++
	return previousCode + "\n# fixed", nil
}

func (s *stubSynth) synthesisCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.syntheses)
}

// stubRenderer writes a clip named after the output file unless the scene is
// configured to fail. A non-nil gate blocks every render until it is closed.
type stubRenderer struct {
	mu      sync.Mutex
	fail    map[string]bool
	panicOn string
	gate    chan struct{}
	started chan string
	calls   []string
	codes   map[string]string
}

func (r *stubRenderer) Render(ctx context.Context, code, outputPath string) error {
	name := filepath.Base(outputPath)
	r.mu.Lock()
	r.calls = append(r.calls, name)
	if r.codes == nil {
		r.codes = make(map[string]string)
	}
	r.codes[name] = code
	r.mu.Unlock()

	if r.started != nil {
		select {
		case r.started <- name:
		default:
		}
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if name == r.panicOn {
		panic("renderer exploded")
	}
	if r.fail[name] {
		return errors.New("Traceback (most recent call last):\nNameError: name 'Circel' is not defined")
	}
	return os.WriteFile(outputPath, []byte(name), 0o644)
}

func (r *stubRenderer) callCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.calls {
		if call == name {
			n++
		}
	}
	return n
}

type stubAssembler struct {
	mu    sync.Mutex
	calls int
	clips []string
	err   error
}

func (a *stubAssembler) Assemble(_ context.Context, clips []string, finalPath string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.clips = append([]string(nil), clips...)
	if a.err != nil {
		return "", a.err
	}
	var joined strings.Builder
	for _, clip := range clips {
		data, err := os.ReadFile(clip)
		if err != nil {
			return "", err
		}
		joined.Write(data)
	}
	return finalPath, os.WriteFile(finalPath, []byte(joined.String()), 0o644)
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (n *recordingNotifier) NotifyJobCompleted(_ context.Context, conceptName, finalPath string, sceneCount int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, fmt.Sprintf("%s|%s|%d", conceptName, finalPath, sceneCount))
	return nil
}

func (n *recordingNotifier) NotifyJobFailed(_ context.Context, conceptName, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, conceptName+"|"+message)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

type harness struct {
	cfg       *config.Config
	store     jobs.Store
	synth     *stubSynth
	renderer  *stubRenderer
	assembler *stubAssembler
	orch      *Orchestrator
}

func newHarness(t *testing.T, scenes []string, renderer *stubRenderer) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore())
	store := jobs.NewMemoryStore()
	synth := &stubSynth{}
	assembler := &stubAssembler{}
	orch := NewOrchestrator(store, Components{
		Planner: stubPlanner{scenes: scenes},
		Runners: func(string) SceneRunner {
			return repair.New(synth, renderer, nil)
		},
		Assembler: assembler,
	}, nil)
	return &harness{cfg: cfg, store: store, synth: synth, renderer: renderer, assembler: assembler, orch: orch}
}

// generatingJob stores a job ready for Orchestrator.Run.
func (h *harness) generatingJob(t *testing.T, id string) *jobs.ConceptJob {
	t.Helper()
	job := &jobs.ConceptJob{
		ID:                 id,
		Owner:              "alice",
		ConceptName:        "chain rule",
		ConceptDescription: "Differentiate a composition. Multiply the outer and inner derivatives.",
		OutputDir:          h.cfg.Paths.OutputDir,
		Quality:            config.QualityLow,
		Status:             jobs.StatusGenerating,
	}
	if err := h.store.Put(context.Background(), job); err != nil {
		t.Fatalf("Put: %v", err)
	}
	return job
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func countEntries(job *jobs.ConceptJob, substr string) int {
	n := 0
	for _, entry := range job.Log {
		if strings.Contains(entry.Message, substr) {
			n++
		}
	}
	return n
}
