package services

import "context"

type contextKey string

const (
	jobIDKey      contextKey = "job_id"
	ownerKey      contextKey = "owner"
	sceneIndexKey contextKey = "scene_index"
	stageKey      contextKey = "stage"
	requestIDKey  contextKey = "request_id"
)

// WithJobID annotates context with the concept job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the concept job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOwner annotates context with the logical owner of a job.
func WithOwner(ctx context.Context, owner string) context.Context {
	if owner == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerKey, owner)
}

// OwnerFromContext returns the job owner if present.
func OwnerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(ownerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSceneIndex annotates context with the 0-based scene index.
func WithSceneIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, sceneIndexKey, index)
}

// SceneIndexFromContext extracts the scene index if present.
func SceneIndexFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(sceneIndexKey).(int)
	return v, ok
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
