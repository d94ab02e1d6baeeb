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
	c.normalizeDataset()
	if err := c.normalizeMatching(); err != nil {
		return err
	}
	c.normalizeArchive()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DatasetDir) == "" {
		if value, ok := os.LookupEnv("EVENTSYNC_DATASET"); ok {
			c.Paths.DatasetDir = strings.TrimSpace(value)
		}
	}
	if c.Paths.DatasetDir, err = expandPath(strings.TrimSpace(c.Paths.DatasetDir)); err != nil {
		return fmt.Errorf("paths.dataset_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDataset() {
	c.Dataset.Manager = strings.ToLower(strings.TrimSpace(c.Dataset.Manager))
	if c.Dataset.Manager == "" {
		c.Dataset.Manager = defaultDatasetManager
	}
	c.Dataset.DataladBinary = strings.TrimSpace(c.Dataset.DataladBinary)
	if c.Dataset.DataladBinary == "" {
		c.Dataset.DataladBinary = defaultDataladBinary
	}
	c.Dataset.SaveMessage = strings.TrimSpace(c.Dataset.SaveMessage)
	if c.Dataset.SaveMessage == "" {
		c.Dataset.SaveMessage = defaultSaveMessage
	}
}

func (c *Config) normalizeMatching() error {
	c.Matching.OverridesFile = strings.TrimSpace(c.Matching.OverridesFile)
	if c.Matching.OverridesFile == "" {
		return nil
	}
	var err error
	if c.Matching.OverridesFile, err = expandPath(c.Matching.OverridesFile); err != nil {
		return fmt.Errorf("matching.overrides_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeArchive() {
	c.Archive.MemberPattern = strings.TrimSpace(c.Archive.MemberPattern)
	if c.Archive.MemberPattern == "" {
		c.Archive.MemberPattern = defaultMemberPattern
	}
	c.Archive.EventsPattern = strings.TrimSpace(c.Archive.EventsPattern)
	if c.Archive.EventsPattern == "" {
		c.Archive.EventsPattern = defaultEventsPattern
	}
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
