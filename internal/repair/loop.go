// Package repair drives one scene through synthesize, render and correct
// cycles until it renders or the attempt budget is spent.
package repair

import (
	"context"
	"fmt"
	"log/slog"

	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/services"
	"clarifai/internal/textutil"
)

// logErrorLimit bounds error text copied into job log entries. The corrector
// always receives the full text.
const logErrorLimit = 300

// Synthesizer produces and repairs scene programs.
type Synthesizer interface {
	Synthesize(ctx context.Context, sceneDescription string) (string, error)
	Correct(ctx context.Context, previousCode, renderError string) (string, error)
}

// SceneRenderer renders a program to outputPath. A non-nil error is the
// renderer's diagnostic.
type SceneRenderer interface {
	Render(ctx context.Context, code, outputPath string) error
}

// Journal receives the job log entries produced by the loop.
type Journal interface {
	Record(ctx context.Context, message string)
}

// JournalFunc adapts a function to Journal.
type JournalFunc func(ctx context.Context, message string)

func (f JournalFunc) Record(ctx context.Context, message string) { f(ctx, message) }

// Draft is a first-attempt program synthesized ahead of time.
type Draft struct {
	Code string
	Err  error
}

// SceneRequest describes one scene run.
type SceneRequest struct {
	Scene      jobs.Scene
	OutputPath string
	Journal    Journal
	// Draft, when set, replaces the attempt 1 synthesis call.
	Draft *Draft
}

// TransitionHook observes every state change.
type TransitionHook func(scene jobs.Scene, from, to State)

// Loop runs scenes through the repair state machine.
type Loop struct {
	synth    Synthesizer
	renderer SceneRenderer
	logger   *slog.Logger
	onChange TransitionHook
}

// Option customizes a Loop.
type Option func(*Loop)

// WithTransitionHook registers a hook called on every state change.
func WithTransitionHook(hook TransitionHook) Option {
	return func(l *Loop) {
		l.onChange = hook
	}
}

// New constructs a Loop.
func New(synth Synthesizer, renderer SceneRenderer, logger *slog.Logger, opts ...Option) *Loop {
	l := &Loop{synth: synth, renderer: renderer, logger: logging.NewComponentLogger(logger, "repair")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type sceneRun struct {
	loop    *Loop
	ctx     context.Context
	req     SceneRequest
	logger  *slog.Logger
	state   State
	attempt int
}

func (r *sceneRun) transition(to State, message string) {
	from := r.state
	r.state = to
	if r.loop.onChange != nil {
		r.loop.onChange(r.req.Scene, from, to)
	}
	r.record(message)
	r.logger.Debug("scene state changed",
		logging.String("from", from.String()),
		logging.String("to", to.String()),
		logging.Int(logging.FieldAttempt, r.attempt),
	)
}

func (r *sceneRun) record(message string) {
	if r.req.Journal != nil {
		r.req.Journal.Record(r.ctx, message)
	}
}

func (r *sceneRun) prefix() string {
	return fmt.Sprintf("Attempt %d/%d for scene %d", r.attempt, jobs.MaxAttempts, r.req.Scene.Number())
}

// RunScene runs the state machine for one scene. The returned error is only
// set when ctx ends; every other failure is reported through the result.
func (l *Loop) RunScene(ctx context.Context, req SceneRequest) (jobs.ClipResult, error) {
	ctx = services.WithSceneIndex(ctx, req.Scene.Index)
	run := &sceneRun{
		loop:   l,
		ctx:    ctx,
		req:    req,
		logger: logging.WithContext(ctx, l.logger),
		state:  StateNotStarted,
	}
	result := jobs.ClipResult{SceneIndex: req.Scene.Index}

	var (
		lastCode  string
		lastError string
	)
	for run.attempt = 1; run.attempt <= jobs.MaxAttempts; run.attempt++ {
		var (
			code string
			err  error
		)
		switch {
		case run.attempt == 1 || lastCode == "":
			run.transition(StateSynthesizing, run.prefix()+": generating code")
			if run.attempt == 1 && req.Draft != nil {
				code, err = req.Draft.Code, req.Draft.Err
			} else {
				code, err = l.synth.Synthesize(ctx, req.Scene.Description)
			}
		default:
			run.transition(StateCorrecting, run.prefix()+": correcting code")
			code, err = l.synth.Correct(ctx, lastCode, lastError)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		attempt := jobs.Attempt{Number: run.attempt, Code: code}
		if err != nil {
			attempt.RenderError = fmt.Sprintf("code generation failed: %v", err)
		} else {
			run.transition(StateRendering, run.prefix()+": rendering")
			renderErr := l.renderer.Render(ctx, code, req.OutputPath)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			if renderErr == nil {
				result.Attempts = append(result.Attempts, attempt)
				result.Succeeded = true
				result.Path = req.OutputPath
				run.transition(StateSucceeded, fmt.Sprintf("Scene %d rendered successfully on attempt %d/%d",
					req.Scene.Number(), run.attempt, jobs.MaxAttempts))
				run.logger.Info("scene rendered",
					logging.Int(logging.FieldAttempt, run.attempt),
					logging.String("output", req.OutputPath),
				)
				return result, nil
			}
			attempt.RenderError = renderErr.Error()
			if attempt.RenderError == "" {
				attempt.RenderError = "render failed without diagnostic output"
			}
			lastCode, lastError = code, attempt.RenderError
		}
		result.Attempts = append(result.Attempts, attempt)
		run.record(fmt.Sprintf("%s failed: %s", run.prefix(), textutil.Truncate(attempt.RenderError, logErrorLimit)))
		run.logger.Info("scene attempt failed",
			logging.Int(logging.FieldAttempt, run.attempt),
			logging.String("reason", textutil.Truncate(attempt.RenderError, logErrorLimit)),
		)
	}

	run.attempt = jobs.MaxAttempts
	run.transition(StateFailed, fmt.Sprintf("Scene %d could not be rendered after %d attempts", req.Scene.Number(), jobs.MaxAttempts))
	logging.WarnWithContext(run.logger, "scene exhausted repair budget", "scene_exhausted",
		logging.Int(logging.FieldAttempt, jobs.MaxAttempts),
		logging.String(logging.FieldErrorHint, "inspect the job log for the renderer output"),
		logging.String(logging.FieldImpact, "job fails without a video"),
	)
	return result, nil
}
