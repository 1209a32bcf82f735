package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clarifai/internal/config"
	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/workflow"
)

// managerFactory builds the workflow manager for a command run.
type managerFactory func(cfg *config.Config, store jobs.Store, logger *slog.Logger) (*workflow.Manager, error)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	storeOnce sync.Once
	store     jobs.Store
	storeErr  error

	newManager managerFactory
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		newManager: func(cfg *config.Config, store jobs.Store, logger *slog.Logger) (*workflow.Manager, error) {
			return workflow.NewFromConfig(cfg, store, logger)
		},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) ensureStore() (jobs.Store, error) {
	c.storeOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.storeErr = err
			return
		}
		c.store, c.storeErr = openStore(cfg)
	})
	return c.store, c.storeErr
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}

func openStore(cfg *config.Config) (jobs.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return jobs.NewMemoryStore(), nil
	case config.StoreBackendSQLite, "":
		store, err := jobs.OpenSQLite(cfg.StoreDBPath())
		if err != nil {
			return nil, fmt.Errorf("open job store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
