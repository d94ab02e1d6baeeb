package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. The dataset directory is not
// required here; commands that touch a dataset call RequireDataset.
func (c *Config) Validate() error {
	if err := c.validateDataset(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireDataset reports a configuration error when no dataset root is set.
func (c *Config) RequireDataset() error {
	if strings.TrimSpace(c.Paths.DatasetDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/eventsync/config.toml"
		}
		return fmt.Errorf("paths.dataset_dir is required. Pass --dataset, set EVENTSYNC_DATASET or edit %s (create with 'eventsync config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateDataset() error {
	switch c.Dataset.Manager {
	case ManagerDatalad, ManagerPlain:
	default:
		return fmt.Errorf("dataset.manager must be %q or %q, got %q", ManagerDatalad, ManagerPlain, c.Dataset.Manager)
	}
	if c.Dataset.CommandTimeout <= 0 {
		return errors.New("dataset.command_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateArchive() error {
	pattern := c.Archive.MemberPattern
	if !strings.Contains(pattern, "{subject}") || !strings.Contains(pattern, "{session}") {
		return errors.New("archive.member_pattern must contain {subject} and {session} placeholders")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}
