package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clarifai/internal/jobs"
	"clarifai/internal/logging"
)

// HeartbeatMonitor keeps running jobs fresh and fails abandoned ones.
type HeartbeatMonitor struct {
	store             jobs.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store jobs.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logging.NewComponentLogger(logger, "workflow-heartbeat"),
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale fails generating jobs whose heartbeat is older than the
// timeout. Such jobs belong to a process that exited mid-run.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) (int64, error) {
	if h.heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	message := fmt.Sprintf("Job abandoned: no heartbeat for %s", h.heartbeatTimeout)
	reclaimed, err := h.store.FailStale(ctx, cutoff, message)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		h.logger.Info("failed stale jobs", logging.Int64("count", reclaimed))
	}
	return reclaimed, nil
}

// StartLoop updates the heartbeat for jobID until ctx ends.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat stopped")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
