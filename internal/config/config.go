package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains dataset and state directory configuration.
type Paths struct {
	DatasetDir string `toml:"dataset_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Dataset contains configuration for the version-control layer wrapping the dataset.
type Dataset struct {
	// Manager selects the dataset manager: "datalad" or "plain".
	Manager        string `toml:"manager"`
	DataladBinary  string `toml:"datalad_binary"`
	SaveMessage    string `toml:"save_message"`
	CommandTimeout int    `toml:"command_timeout"`
}

// Matching contains configuration for scan/log reconciliation.
type Matching struct {
	// SessionZeroStrip addresses log sessions by their unpadded label ("2" for "02").
	SessionZeroStrip bool   `toml:"session_zero_strip"`
	OverridesFile    string `toml:"overrides_file"`
}

// Archive contains configuration for extracting logs out of session archives.
type Archive struct {
	MemberPattern string `toml:"member_pattern"`
	EventsPattern string `toml:"events_pattern"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for eventsync.
//
// Configuration sections by subsystem:
//   - Paths: dataset root, state directory (ledger, lock) and logs
//   - Dataset: datalad or plain-directory persistence
//   - Matching: session addressing and manual override file
//   - Archive: member patterns for log extraction and direct copy
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Dataset  Dataset  `toml:"dataset"`
	Matching Matching `toml:"matching"`
	Archive  Archive  `toml:"archive"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/eventsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("eventsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The dataset
// directory is never created; it must already exist.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogFilePath returns the file the logger tees output into, or "" when no
// log directory is configured.
func (c *Config) LogFilePath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "eventsync.log")
}

// LedgerPath returns the location of the run ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the lock file guarding the configured dataset against
// concurrent reconciliation runs.
func (c *Config) LockPath() string {
	name := strings.Trim(strings.ReplaceAll(c.Paths.DatasetDir, string(filepath.Separator), "_"), "_")
	if name == "" {
		name = "dataset"
	}
	return filepath.Join(c.Paths.StateDir, "locks", name+".lock")
}

// WithDataset returns a copy of the config pointing at another dataset root.
func (c *Config) WithDataset(dir string) (*Config, error) {
	clone := *c
	expanded, err := expandPath(strings.TrimSpace(dir))
	if err != nil {
		return nil, fmt.Errorf("paths.dataset_dir: %w", err)
	}
	clone.Paths.DatasetDir = expanded
	return &clone, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
