package services_test

import (
	"context"
	"testing"

	"clarifai/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithOwner(ctx, "paper-7")
	ctx = services.WithSceneIndex(ctx, 0)
	ctx = services.WithStage(ctx, "render")
	ctx = services.WithRequestID(ctx, "req")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id %q", id)
	}
	if owner, ok := services.OwnerFromContext(ctx); !ok || owner != "paper-7" {
		t.Fatalf("unexpected owner %q", owner)
	}
	if idx, ok := services.SceneIndexFromContext(ctx); !ok || idx != 0 {
		t.Fatalf("expected scene index 0, got %d (ok=%v)", idx, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "render" {
		t.Fatalf("unexpected stage %q", stage)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req" {
		t.Fatalf("unexpected request id %q", rid)
	}
	if _, ok := services.SceneIndexFromContext(context.Background()); ok {
		t.Fatal("expected no scene index on empty context")
	}
}
