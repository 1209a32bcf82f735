package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clarifai/internal/config"
	"clarifai/internal/textutil"
)

const userAgent = "clarifai/0.1.0"

// Service defines the notification surface exposed to the workflow.
type Service interface {
	NotifyJobCompleted(ctx context.Context, conceptName, finalPath string, sceneCount int) error
	NotifyJobFailed(ctx context.Context, conceptName, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// Event toggles in cfg suppress individual notifications.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		jobCompleted: cfg.Notifications.JobCompleted,
		jobFailed:    cfg.Notifications.JobFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	jobCompleted bool
	jobFailed    bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, conceptName, finalPath string, sceneCount int) error {
	if !n.jobCompleted {
		return nil
	}
	message := fmt.Sprintf("Video ready: %s (%d scenes)", textutil.DisplayTitle(conceptName), sceneCount)
	if finalPath = strings.TrimSpace(finalPath); finalPath != "" {
		message += "\nFile: " + finalPath
	}
	return n.send(ctx, payload{
		title:    "clarifai - Video Ready",
		message:  message,
		tags:     []string{"clarifai", "job", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, conceptName, message string) error {
	if !n.jobFailed {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown error"
	}
	return n.send(ctx, payload{
		title:    "clarifai - Job Failed",
		message:  fmt.Sprintf("Failed: %s\n%s", textutil.DisplayTitle(conceptName), message),
		tags:     []string{"clarifai", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "clarifai - Test",
		message:  "Notification system test",
		tags:     []string{"clarifai", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, string, int) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
