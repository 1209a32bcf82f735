package workflow

import (
	"context"
	"errors"

	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/textutil"
)

// afterRun publishes and announces a finished job. Neither step changes the
// job's terminal status.
func (m *Manager) afterRun(ctx context.Context, job *jobs.ConceptJob) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, m.logger)
	title := textutil.DisplayTitle(job.ConceptName)

	switch job.Status {
	case jobs.StatusCompleted:
		m.publishVideo(ctx, job)
		if err := m.notifier.NotifyJobCompleted(ctx, title, job.FinalVideoPath, len(job.Scenes)); err != nil {
			logger.Debug("completion notification failed", logging.Error(err))
		}
	case jobs.StatusFailed:
		if job.FailureReason == jobs.ReasonCanceled {
			return
		}
		if err := m.notifier.NotifyJobFailed(ctx, title, job.ErrorMessage); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debug("shutting down, could not send failure notification")
			} else {
				logger.Debug("failure notification failed", logging.Error(err))
			}
		}
	}
}

func (m *Manager) publishVideo(ctx context.Context, job *jobs.ConceptJob) {
	if !m.publisher.Enabled() {
		return
	}
	key, err := m.publisher.Publish(ctx, job.ID, job.FinalVideoPath)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "video upload failed", "publish_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check publish endpoint and credentials"),
			logging.String(logging.FieldImpact, "video is only available locally"),
		)
		_ = m.orchestrator.record(ctx, job, "Upload failed: "+err.Error())
		return
	}
	_ = m.orchestrator.record(ctx, job, "Uploaded to "+key)
}
