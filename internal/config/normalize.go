package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeRender()
	c.normalizeAssembly()
	c.normalizeStore()
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
}

func (c *Config) normalizeRender() {
	c.Render.ManimBinary = strings.TrimSpace(c.Render.ManimBinary)
	if c.Render.ManimBinary == "" {
		c.Render.ManimBinary = defaultManimBinary
	}
	quality := strings.ToLower(strings.TrimSpace(c.Render.Quality))
	// Accept the reference naming (medium_quality) as well as the short form.
	quality = strings.TrimSuffix(quality, "_quality")
	if quality == "" {
		quality = defaultRenderQuality
	}
	c.Render.Quality = quality
}

func (c *Config) normalizeAssembly() {
	c.Assembly.FFmpegBinary = strings.TrimSpace(c.Assembly.FFmpegBinary)
	if c.Assembly.FFmpegBinary == "" {
		c.Assembly.FFmpegBinary = defaultFFmpegBinary
	}
	c.Assembly.FFprobeBinary = strings.TrimSpace(c.Assembly.FFprobeBinary)
	if c.Assembly.FFprobeBinary == "" {
		c.Assembly.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
}

func (c *Config) normalizePublish() {
	c.Publish.Endpoint = strings.TrimSpace(c.Publish.Endpoint)
	c.Publish.Bucket = strings.TrimSpace(c.Publish.Bucket)
	c.Publish.Region = strings.TrimSpace(c.Publish.Region)
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
	if c.Publish.AccessKey == "" {
		if value, ok := os.LookupEnv("CLARIFAI_MINIO_ACCESS_KEY"); ok {
			c.Publish.AccessKey = value
		}
	}
	if c.Publish.SecretKey == "" {
		if value, ok := os.LookupEnv("CLARIFAI_MINIO_SECRET_KEY"); ok {
			c.Publish.SecretKey = value
		}
	}
	c.Publish.AccessKey = strings.TrimSpace(c.Publish.AccessKey)
	c.Publish.SecretKey = strings.TrimSpace(c.Publish.SecretKey)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
