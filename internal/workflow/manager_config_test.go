package workflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clarifai/internal/config"
	"clarifai/internal/services/llm"
)

func TestOraclesRetryOnlyForPlanning(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	settings := config.LLMConfig{APIKey: "test", BaseURL: server.URL, Model: "demo-model", RetryAttempts: 3}
	planning, synthesis := newOracles(settings, llm.WithSleeper(func(time.Duration) {}))

	if _, err := synthesis.Complete(context.Background(), "write a scene"); err == nil {
		t.Fatal("expected synthesis error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("synthesis must not retry, got %d requests", got)
	}

	calls.Store(0)
	if _, err := planning.Complete(context.Background(), "plan scenes"); err == nil {
		t.Fatal("expected planning error")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("planning should use its retry budget, got %d requests", got)
	}
}
