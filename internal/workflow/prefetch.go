package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/repair"
	"clarifai/internal/services"
)

// prefetch synthesizes first-attempt programs for every scene with at most
// o.parallel calls in flight. The result is indexed like scenes; entries are
// nil when prefetching is disabled. Failures are carried in the draft so the
// repair loop counts them against the scene's first attempt.
func (o *Orchestrator) prefetch(ctx context.Context, scenes []jobs.Scene) []*repair.Draft {
	drafts := make([]*repair.Draft, len(scenes))
	if o.drafts == nil || o.parallel <= 1 || len(scenes) < 2 {
		return drafts
	}

	group, groupCtx := errgroup.WithContext(services.WithStage(ctx, "synthesize"))
	group.SetLimit(o.parallel)
	for i, scene := range scenes {
		group.Go(func() error {
			code, err := o.drafts.Synthesize(services.WithSceneIndex(groupCtx, scene.Index), scene.Description)
			drafts[i] = &repair.Draft{Code: code, Err: err}
			return nil
		})
	}
	_ = group.Wait()

	logging.WithContext(ctx, o.logger).Debug("first-attempt programs prefetched",
		logging.Int("scene_count", len(scenes)),
		logging.Int("parallel", o.parallel),
	)
	return drafts
}
