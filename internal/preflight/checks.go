package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"clarifai/internal/config"
	"clarifai/internal/deps"
	"clarifai/internal/services/llm"
)

const llmCheckTimeout = 30 * time.Second

// CheckLLM sends one planning-sized prompt to the oracle and reports whether
// it answered. Retries are disabled so a dead endpoint fails fast.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	ctx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(ctx); err != nil {
		return Result{Name: name, Detail: describeLLMFailure(err)}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Model + " reachable"}
}

// CheckDirectoryAccess reports whether path is a directory the renderer and
// assembler can create files in.
func CheckDirectoryAccess(name, path string) Result {
	if problem := directoryProblem(path); problem != "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, problem)}
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

func directoryProblem(path string) string {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "does not exist"
	case err != nil:
		return fmt.Sprintf("stat: %v", err)
	case !info.IsDir():
		return "is not a directory"
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Sprintf("insufficient permissions: %v", err)
	}
	return ""
}

// CheckBinaries reports manim, ffmpeg and (when verification is on) ffprobe.
func CheckBinaries(cfg *config.Config) []Result {
	var results []Result
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		detail := status.Detail
		if status.Available {
			detail = status.Path
		}
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Optional: status.Optional,
			Detail:   detail,
		})
	}
	return results
}

// CheckNotifications is informational: a missing ntfy topic only means no
// push messages are sent.
func CheckNotifications(cfg config.Notifications) Result {
	result := Result{Name: "Notifications", Optional: true}
	if topic := strings.TrimSpace(cfg.NtfyTopic); topic != "" {
		result.Passed = true
		result.Detail = "ntfy " + topic
		return result
	}
	result.Detail = "ntfy topic not set"
	return result
}

// CheckPublish validates the upload settings without contacting the bucket.
func CheckPublish(cfg config.Publish) Result {
	result := Result{Name: "Publishing", Optional: true}
	if !cfg.Enabled {
		result.Passed = true
		result.Detail = "disabled"
		return result
	}
	var missing []string
	if strings.TrimSpace(cfg.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		missing = append(missing, "credentials")
	}
	if len(missing) > 0 {
		result.Detail = "missing " + strings.Join(missing, ", ")
		return result
	}
	result.Passed = true
	result.Detail = fmt.Sprintf("%s/%s", cfg.Endpoint, cfg.Bucket)
	return result
}

func describeLLMFailure(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "health check timed out (LLM API unresponsive)"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "health check timed out (LLM API unreachable)"
	default:
		return err.Error()
	}
}
