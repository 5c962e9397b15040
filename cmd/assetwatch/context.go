package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"assetwatch/internal/config"
	"assetwatch/internal/logging"
)

const defaultEnvFile = ".env"

type commandContext struct {
	configFlag  *string
	envFileFlag *string

	envOnce sync.Once
	envErr  error

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, envFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		envFileFlag: envFileFlag,
	}
}

// loadEnv populates unset environment variables from the env file so the
// config layer's DISCORD_*, PAGERDUTY_* and NTFY_TOPIC fallbacks see them.
// A missing default .env is ignored; a missing explicit file is an error.
func (c *commandContext) loadEnv() error {
	c.envOnce.Do(func() {
		path := ""
		if c.envFileFlag != nil {
			path = strings.TrimSpace(*c.envFileFlag)
		}
		explicit := path != ""
		if !explicit {
			path = defaultEnvFile
		}
		if err := godotenv.Load(path); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				return
			}
			c.envErr = fmt.Errorf("load env file %s: %w", path, err)
		}
	})
	return c.envErr
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// commandLogger builds a logger for one-shot commands. Records go to stderr so
// stdout stays clean for tables and JSON.
func (c *commandContext) commandLogger(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level := "warn"
	if verbose {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
