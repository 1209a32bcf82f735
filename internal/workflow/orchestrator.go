package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/repair"
	"clarifai/internal/services"
	"clarifai/internal/textutil"
)

// ScenePlanner splits a concept into scenes.
type ScenePlanner interface {
	Plan(ctx context.Context, conceptName, conceptDescription string) ([]jobs.Scene, bool)
}

// SceneRunner renders one scene through the repair loop.
type SceneRunner interface {
	RunScene(ctx context.Context, req repair.SceneRequest) (jobs.ClipResult, error)
}

// SceneRunnerFactory returns the runner for a render quality preset.
type SceneRunnerFactory func(quality string) SceneRunner

// ClipConcatenator joins ordered clips into the final video.
type ClipConcatenator interface {
	Assemble(ctx context.Context, clips []string, finalPath string) (string, error)
}

// DraftSynthesizer generates first-attempt programs ahead of the loop.
type DraftSynthesizer interface {
	Synthesize(ctx context.Context, sceneDescription string) (string, error)
}

// Orchestrator runs a single concept job to a terminal state.
type Orchestrator struct {
	store     jobs.Store
	planner   ScenePlanner
	runners   SceneRunnerFactory
	assembler ClipConcatenator
	drafts    DraftSynthesizer
	parallel  int
	logger    *slog.Logger
	now       func() time.Time
}

// Components are the collaborators an Orchestrator drives.
type Components struct {
	Planner   ScenePlanner
	Runners   SceneRunnerFactory
	Assembler ClipConcatenator
	// Drafts and ParallelSynthesis enable first-attempt prefetching when
	// ParallelSynthesis is above one.
	Drafts            DraftSynthesizer
	ParallelSynthesis int
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(store jobs.Store, components Components, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		planner:   components.Planner,
		runners:   components.Runners,
		assembler: components.Assembler,
		drafts:    components.Drafts,
		parallel:  components.ParallelSynthesis,
		logger:    logging.NewComponentLogger(logger, "orchestrator"),
		now:       time.Now,
	}
}

// Run drives job from generating to completed or failed, persisting every
// change. job is updated in place. The returned error reports store failures
// and cancellation; scene and assembly failures are recorded on the job. When
// another writer moves the job out of generating, such as stale-run
// reclamation, the run stops and job is reloaded from the store.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.ConceptJob) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithOwner(ctx, job.Owner)
	runCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	err := o.run(runCtx, stop, job)
	if errors.Is(err, jobs.ErrStatusChanged) {
		return o.lostOwnership(ctx, job)
	}
	return err
}

func (o *Orchestrator) run(ctx context.Context, stop context.CancelCauseFunc, job *jobs.ConceptJob) error {
	logger := logging.WithContext(ctx, o.logger)

	if err := o.record(ctx, job, fmt.Sprintf("Planning scenes for %q", job.ConceptName)); err != nil {
		return err
	}
	scenes, planned := o.planner.Plan(services.WithStage(ctx, "plan"), job.ConceptName, job.ConceptDescription)
	job.Scenes = scenes
	message := fmt.Sprintf("Planned %d scenes", len(scenes))
	if !planned {
		message += " by splitting the description"
	}
	if err := o.record(ctx, job, message); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return o.cancel(ctx, job, err)
	}

	jobDir := filepath.Join(job.OutputDir, job.ID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return o.fail(ctx, job, jobs.ReasonInternal, fmt.Sprintf("Cannot create output directory: %v", err))
	}

	drafts := o.prefetch(ctx, scenes)
	runner := o.runners(job.Quality)
	journal := repair.JournalFunc(func(ctx context.Context, message string) {
		if err := o.record(ctx, job, message); err != nil {
			stop(err)
		}
	})

	renderCtx := services.WithStage(ctx, "render")
	for i, scene := range scenes {
		result, err := runner.RunScene(renderCtx, repair.SceneRequest{
			Scene:      scene,
			OutputPath: filepath.Join(jobDir, fmt.Sprintf("scene_%d.mp4", scene.Number())),
			Journal:    journal,
			Draft:      drafts[i],
		})
		if cause := context.Cause(ctx); errors.Is(cause, jobs.ErrStatusChanged) {
			return cause
		}
		if err != nil {
			return o.cancel(ctx, job, err)
		}
		if !result.Succeeded {
			logger.Info("stopping job after failed scene",
				logging.Int(logging.FieldSceneIndex, scene.Index),
				logging.Int("remaining_scenes", len(scenes)-i-1),
			)
			return o.fail(ctx, job, jobs.ReasonSceneFailed,
				fmt.Sprintf("Scene %d failed after %d attempts", scene.Number(), len(result.Attempts)))
		}
		job.ClipPaths = append(job.ClipPaths, result.Path)
		if err := o.persist(ctx, job); err != nil {
			return err
		}
	}

	finalPath := filepath.Join(jobDir, finalFileName(job.ConceptName))
	if err := o.record(ctx, job, fmt.Sprintf("Assembling %d clips", len(job.ClipPaths))); err != nil {
		return err
	}
	path, err := o.assembler.Assemble(services.WithStage(ctx, "assemble"), job.ClipPaths, finalPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o.cancel(ctx, job, ctxErr)
		}
		return o.fail(ctx, job, jobs.ReasonAssemblyFailed, fmt.Sprintf("Assembly failed: %v", err))
	}
	return o.complete(ctx, job, path)
}

func finalFileName(conceptName string) string {
	name := textutil.SanitizeFileName(conceptName)
	if name == "" {
		name = "concept"
	}
	return name + ".mp4"
}

// record appends a log entry and persists the job.
func (o *Orchestrator) record(ctx context.Context, job *jobs.ConceptJob, message string) error {
	job.AppendLog(o.now(), message)
	return o.persist(ctx, job)
}

// persist saves job. Only a status conflict is returned; other store errors
// are logged and the run continues.
func (o *Orchestrator) persist(ctx context.Context, job *jobs.ConceptJob) error {
	err := o.store.Put(context.WithoutCancel(ctx), job)
	if err == nil {
		return nil
	}
	if errors.Is(err, jobs.ErrStatusChanged) {
		return err
	}
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "job update not persisted", "job_persist_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check job store access"),
		logging.String(logging.FieldImpact, "status queries may lag behind the run"),
	)
	return nil
}

// finish writes the terminal job state only while the stored job is still
// generating.
func (o *Orchestrator) finish(ctx context.Context, job *jobs.ConceptJob) (bool, error) {
	return o.store.PutIfStatus(context.WithoutCancel(ctx), job, jobs.StatusGenerating)
}

func (o *Orchestrator) complete(ctx context.Context, job *jobs.ConceptJob, finalPath string) error {
	job.Status = jobs.StatusCompleted
	job.FinalVideoPath = finalPath
	job.AppendLog(o.now(), "Video ready: "+finalPath)
	ok, err := o.finish(ctx, job)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !ok {
		return o.lostOwnership(ctx, job)
	}
	logging.WithContext(ctx, o.logger).Info("job completed",
		logging.String("final_video_path", finalPath),
		logging.Int("scene_count", len(job.Scenes)),
	)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job *jobs.ConceptJob, reason, message string) error {
	job.SetFailed(reason, message)
	job.AppendLog(o.now(), message)
	ok, err := o.finish(ctx, job)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if !ok {
		return o.lostOwnership(ctx, job)
	}
	logging.WithContext(ctx, o.logger).Info("job failed",
		logging.String("reason", reason),
		logging.String("message", message),
		logging.Int("clip_count", len(job.ClipPaths)),
	)
	return nil
}

func (o *Orchestrator) cancel(ctx context.Context, job *jobs.ConceptJob, cause error) error {
	if err := o.fail(ctx, job, jobs.ReasonCanceled, "Job canceled before completion"); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// lostOwnership reloads a job whose status was changed by someone else, such
// as stale-run reclamation.
func (o *Orchestrator) lostOwnership(ctx context.Context, job *jobs.ConceptJob) error {
	current, err := o.store.Get(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return fmt.Errorf("reload job: %w", err)
	}
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "job status changed during run", "job_status_conflict",
		logging.String("status", string(current.Status)),
		logging.String(logging.FieldErrorHint, "check for stale-run reclamation or a second process"),
		logging.String(logging.FieldImpact, "run result discarded"),
	)
	*job = *current
	return nil
}
