package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"PersonaPipeline/internal/app"
	"PersonaPipeline/internal/config"
	"PersonaPipeline/internal/logging"
)

const configPathEnv = "PERSONA_PIPELINE_CONFIG"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	logger     *slog.Logger

	app *app.Application
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() config.Config {
	c.configOnce.Do(func() {
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				_ = os.Setenv(configPathEnv, path)
			}
		}
		c.config = config.Load()
		c.logger = logging.New(c.config.LogLevel)
	})
	return c.config
}

func (c *commandContext) ensureApp(ctx context.Context) (*app.Application, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg := c.ensureConfig()
	application, err := app.New(ctx, cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("init application: %w", err)
	}
	c.app = application
	return application, nil
}

func (c *commandContext) close() {
	if c.app == nil {
		return
	}
	if err := c.app.Close(); err != nil {
		c.logger.Warn("shutdown", "error", err)
	}
	c.app = nil
}
