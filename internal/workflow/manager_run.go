package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/ownerlock"
	"clarifai/internal/services"
)

// execute runs one job. The owner lease is released as soon as the job is
// terminal, before upload and notifications; the deferred release and the
// close of done cover every other path, panics included.
func (m *Manager) execute(job *jobs.ConceptJob, release ownerlock.Release, done chan struct{}) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.runs, job.ID)
		m.mu.Unlock()
		close(done)
	}()
	defer release()

	ctx := services.WithJobID(m.ctx, job.ID)
	ctx = services.WithOwner(ctx, job.Owner)
	ctx = services.WithRequestID(ctx, uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			m.recordPanic(ctx, job, r)
		}
	}()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)
	defer func() {
		stopHeartbeat()
		hbWG.Wait()
	}()

	started := time.Now()
	if err := m.orchestrator.Run(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
		logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "job run ended with error", "job_run_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job store access"),
		)
	}
	logging.WithContext(ctx, m.logger).Info("job finished",
		logging.String("status", string(job.Status)),
		logging.Duration("elapsed", time.Since(started)),
	)
	release()
	m.afterRun(ctx, job)
}

func (m *Manager) recordPanic(ctx context.Context, job *jobs.ConceptJob, recovered any) {
	message := fmt.Sprintf("Internal error: %v", recovered)
	logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "job panicked", "job_panic",
		logging.String("panic", fmt.Sprint(recovered)),
		logging.String("stack", string(debug.Stack())),
		logging.String(logging.FieldErrorHint, "report this failure with the log file"),
	)
	store := context.WithoutCancel(ctx)
	job.SetFailed(jobs.ReasonInternal, message)
	job.AppendLog(time.Now(), message)
	ok, err := m.store.PutIfStatus(store, job, jobs.StatusGenerating)
	if err != nil {
		m.logger.Error("failed to persist panic failure", logging.Error(err))
		return
	}
	if !ok {
		m.logger.Warn("panic failure not recorded; job already left generating")
	}
}
