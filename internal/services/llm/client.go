package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = time.Second
	defaultRetryAttempts  = 3
	defaultTemperature    = 0.2
)

// Config captures the runtime settings required to talk to the oracle.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client sends prompts to an OpenAI-compatible chat completion endpoint
// (OpenRouter by default) and returns the raw reply text.
type Client struct {
	cfg   Config
	http  *http.Client
	retry retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts sets how many requests one completion may use.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff overrides the first and the largest retry delay.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the retry wait, for tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleep = sleeper }
}

// NewClient constructs a client. Blank fields fall back to package defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		retry: retryPolicy{
			attempts: defaultRetryAttempts,
			base:     defaultRetryBaseDelay,
			max:      defaultRetryMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Complete sends prompt as a single user message and returns the reply text
// untouched; callers own all parsing.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("llm complete: prompt required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("llm complete: api key required")
	}
	return c.complete(ctx, "llm complete", chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: defaultTemperature,
	})
}

// HealthCheck asks the model for a fixed JSON reply to prove the key and
// model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	content, err := c.complete(ctx, "llm health", chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: `Respond with {"ok":true}`},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return err
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &reply); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !reply.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatReply `json:"message"`
		// Some providers answer with the streaming schema even when stream=false.
		Delta        chatReply `json:"delta"`
		Text         string    `json:"text"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatReply struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// text returns the first non-empty reply across choices. When there is none it
// describes why as an emptyReplyError.
func (r chatCompletionResponse) text(op string, raw []byte) (string, error) {
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", op)
	}
	empty := &emptyReplyError{op: op, snippet: summarizePayloadSnippet(string(raw))}
	for _, choice := range r.Choices {
		if empty.finishReason == "" {
			empty.finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if empty.refusal == "" {
			empty.refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if text := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); text != "" {
			return text, nil
		}
	}
	return "", empty
}

func (c *Client) complete(ctx context.Context, op string, payload chatCompletionRequest) (string, error) {
	attempts := c.retry.maxAttempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var content string
		content, err = c.post(ctx, op, payload)
		if err == nil {
			return content, nil
		}
		delay, again := c.retry.delay(ctx, err, attempt)
		if !again {
			return "", err
		}
		if waitErr := c.retry.wait(ctx, delay); waitErr != nil {
			return "", waitErr
		}
	}
	return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, err)
}

func (c *Client) post(ctx context.Context, op string, payload chatCompletionRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: http error (timeout=%s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", newStatusError(resp, body)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	return completion.text(op, body)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
