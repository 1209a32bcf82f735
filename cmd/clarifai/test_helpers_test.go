package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"clarifai/internal/config"
	"clarifai/internal/jobs"
	"clarifai/internal/repair"
	"clarifai/internal/testsupport"
	"clarifai/internal/workflow"
)

type cliEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "")

	configPath := filepath.Join(home, ".config", "clarifai", "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, factory managerFactory, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCommand(factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type cliPlanner struct{}

func (cliPlanner) Plan(_ context.Context, _, description string) ([]jobs.Scene, bool) {
	return []jobs.Scene{{Index: 0, Description: description}, {Index: 1, Description: "recap"}}, true
}

// cliRunner succeeds immediately unless fail is set, in which case every
// scene exhausts its attempts.
type cliRunner struct {
	fail bool
}

func (r cliRunner) RunScene(ctx context.Context, req repair.SceneRequest) (jobs.ClipResult, error) {
	result := jobs.ClipResult{SceneIndex: req.Scene.Index}
	if r.fail {
		for n := 1; n <= jobs.MaxAttempts; n++ {
			result.Attempts = append(result.Attempts, jobs.Attempt{Number: n, RenderError: "SyntaxError"})
			req.Journal.Record(ctx, "scene attempt failed")
		}
		return result, nil
	}
	if err := os.WriteFile(req.OutputPath, []byte("clip"), 0o644); err != nil {
		return result, err
	}
	result.Attempts = []jobs.Attempt{{Number: 1}}
	result.Succeeded = true
	result.Path = req.OutputPath
	return result, nil
}

type cliAssembler struct{}

func (cliAssembler) Assemble(_ context.Context, _ []string, finalPath string) (string, error) {
	return finalPath, os.WriteFile(finalPath, []byte("video"), 0o644)
}

func fakeManagerFactory(fail bool) managerFactory {
	return func(cfg *config.Config, store jobs.Store, logger *slog.Logger) (*workflow.Manager, error) {
		orch := workflow.NewOrchestrator(store, workflow.Components{
			Planner:   cliPlanner{},
			Runners:   func(string) workflow.SceneRunner { return cliRunner{fail: fail} },
			Assembler: cliAssembler{},
		}, logger)
		return workflow.NewManager(cfg, store, orch, logger), nil
	}
}
