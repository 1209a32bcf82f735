package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireLLM reports whether the oracle credentials are present. It is checked
// by commands that generate videos rather than at load time so that config and
// status commands work without an API key.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("llm.api_key is required. Set OPENROUTER_API_KEY env var or edit %s (create with 'clarifai config init')", defaultPath)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("render.quality must be one of low, medium, high (got %q)", c.Render.Quality)
	}
	if c.Render.TimeoutSeconds <= 0 {
		return errors.New("render.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.parallel_synthesis":   c.Workflow.ParallelSynthesis,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"llm.retry_attempts":            c.LLM.RetryAttempts,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendSQLite, StoreBackendMemory:
		return nil
	default:
		return fmt.Errorf("store.backend must be sqlite or memory (got %q)", c.Store.Backend)
	}
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if c.Publish.Endpoint == "" {
		return errors.New("publish.endpoint must be set when publish.enabled is true")
	}
	if c.Publish.Bucket == "" {
		return errors.New("publish.bucket must be set when publish.enabled is true")
	}
	if c.Publish.AccessKey == "" || c.Publish.SecretKey == "" {
		return errors.New("publish.access_key and publish.secret_key must be set when publish.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
