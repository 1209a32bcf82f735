package workflow

import (
	"log/slog"
	"slices"

	"clarifai/internal/assemble"
	"clarifai/internal/config"
	"clarifai/internal/jobs"
	"clarifai/internal/planner"
	"clarifai/internal/publish"
	"clarifai/internal/render"
	"clarifai/internal/repair"
	"clarifai/internal/services/llm"
	"clarifai/internal/synth"
)

// NewFromConfig wires the production collaborators: the LLM oracle, the
// manim executor, the ffmpeg assembler and, when enabled, the publisher.
func NewFromConfig(cfg *config.Config, store jobs.Store, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	planning, synthesis := newOracles(cfg.GetLLM())

	synthesizer := synth.New(synthesis, logger, synth.WithFallbackScene(cfg.Render.FallbackScene))
	executor := render.New(cfg, logger)

	orchestrator := NewOrchestrator(store, Components{
		Planner: planner.New(planning, logger),
		Runners: func(quality string) SceneRunner {
			return repair.New(synthesizer, executor.WithQuality(quality), logger)
		},
		Assembler:         assemble.New(cfg, logger),
		Drafts:            synthesizer,
		ParallelSynthesis: cfg.Workflow.ParallelSynthesis,
	}, logger)

	publisher, err := publish.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]ManagerOption{WithPublisher(publisher)}, opts...)
	return NewManager(cfg, store, orchestrator, logger, opts...), nil
}

// newOracles returns the planning client, which retries transient transport
// failures, and the synthesis client, which makes a single request so an
// oracle failure becomes one failed repair attempt.
func newOracles(settings config.LLMConfig, opts ...llm.Option) (planning, synthesis *llm.Client) {
	cfg := llm.Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		TimeoutSeconds: settings.TimeoutSeconds,
	}
	planning = llm.NewClient(cfg, slices.Concat(opts, []llm.Option{llm.WithRetryMaxAttempts(settings.RetryAttempts)})...)
	synthesis = llm.NewClient(cfg, slices.Concat(opts, []llm.Option{llm.WithRetryMaxAttempts(1)})...)
	return planning, synthesis
}
