// Package config loads the layered workbench configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	wberrors "github.com/vinhtt95/BAWorkbench-sub000/internal/errors"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/logging"
)

const (
	// ProjectMarker is the file under the config dir that identifies a project root.
	ProjectMarker = "project.json"
	// ProjectConfigFile is the optional engine configuration under the config dir.
	ProjectConfigFile = "workbench.yaml"

	appName = "baworkbench"
)

// Config represents the complete workbench engine configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Layout   LayoutConfig   `yaml:"layout" json:"layout"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	AutoSave AutoSaveConfig `yaml:"autosave" json:"autosave"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// LayoutConfig names the directories and files inside a project root.
type LayoutConfig struct {
	ConfigDir    string `yaml:"config_dir" json:"config_dir"`
	ArtifactsDir string `yaml:"artifacts_dir" json:"artifacts_dir"`
	IndexFile    string `yaml:"index_file" json:"index_file"`
	DocumentExt  string `yaml:"document_ext" json:"document_ext"`
	MirrorExt    string `yaml:"mirror_ext" json:"mirror_ext"`
}

// IndexConfig tunes index derivation and queries.
type IndexConfig struct {
	// StatusField is the artifact field that feeds the status column.
	StatusField string `yaml:"status_field" json:"status_field"`
	// DefaultStatus is used when StatusField is absent or null.
	DefaultStatus string `yaml:"default_status" json:"default_status"`
	// SearchLimit caps autocomplete results.
	SearchLimit int `yaml:"search_limit" json:"search_limit"`
	// RebuildWorkers bounds parallel document parsing during a rebuild.
	RebuildWorkers int `yaml:"rebuild_workers" json:"rebuild_workers"`
	// BatchSize is the number of documents parsed before a write pass.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// CacheSize is the number of cached search terms (0 uses the default).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// WatchConfig configures live synchronisation of artifact files.
type WatchConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Debounce     string `yaml:"debounce" json:"debounce"`
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// AutoSaveConfig configures debounced saving of edited artifacts.
type AutoSaveConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures the rotating log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Layout: LayoutConfig{
			ConfigDir:    ".config",
			ArtifactsDir: "Artifacts",
			IndexFile:    "index.db",
			DocumentExt:  ".json",
			MirrorExt:    ".md",
		},
		Index: IndexConfig{
			StatusField:    "Trạng thái",
			DefaultStatus:  "Draft",
			SearchLimit:    10,
			RebuildWorkers: runtime.NumCPU(),
			BatchSize:      256,
			CacheSize:      256,
		},
		Watch: WatchConfig{
			Enabled:      true,
			Debounce:     "300ms",
			PollInterval: "5s",
		},
		AutoSave: AutoSaveConfig{
			Debounce: "1s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the user-level configuration file:
// $XDG_CONFIG_HOME/baworkbench/config.yaml, or ~/.config/baworkbench/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", appName, "config.yaml")
	}
	return filepath.Join(home, ".config", appName, "config.yaml")
}

// ProjectConfigPath returns the project-level configuration file for root.
func ProjectConfigPath(root string, layout LayoutConfig) string {
	return filepath.Join(root, layout.ConfigDir, ProjectConfigFile)
}

// Load builds the configuration for the project at root. Sources, lowest
// precedence first:
//  1. Built-in defaults
//  2. User config (GetUserConfigPath)
//  3. Project config (<root>/.config/workbench.yaml)
//  4. BAW_* environment variables
//
// root may be empty, in which case the project layer is skipped.
func Load(root string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.overlayYAML(path); err != nil {
			return nil, err
		}
	}

	if root != "" {
		if path := ProjectConfigPath(root, cfg.Layout); fileExists(path) {
			if err := cfg.overlayYAML(path); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayYAML decodes path on top of the current values. Keys absent from
// the file keep their previous value.
func (c *Config) overlayYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return wberrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err).
			WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return wberrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies BAW_* variables. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BAW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BAW_STATUS_FIELD"); v != "" {
		c.Index.StatusField = v
	}
	if v := os.Getenv("BAW_DEFAULT_STATUS"); v != "" {
		c.Index.DefaultStatus = v
	}
	if v := os.Getenv("BAW_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.SearchLimit = n
		}
	}
	if v := os.Getenv("BAW_REBUILD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.RebuildWorkers = n
		}
	}
	if v := os.Getenv("BAW_WATCH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch.Enabled = b
		}
	}
	if v := os.Getenv("BAW_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return wberrors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	for name, v := range map[string]string{
		"layout.config_dir":    c.Layout.ConfigDir,
		"layout.artifacts_dir": c.Layout.ArtifactsDir,
		"layout.index_file":    c.Layout.IndexFile,
	} {
		if strings.TrimSpace(v) == "" {
			return invalid("%s must not be empty", name)
		}
		if filepath.IsAbs(v) || strings.Contains(filepath.ToSlash(v), "..") {
			return invalid("%s must be a relative path inside the project, got %q", name, v)
		}
	}
	if !strings.HasPrefix(c.Layout.DocumentExt, ".") || !strings.HasPrefix(c.Layout.MirrorExt, ".") {
		return invalid("layout extensions must start with '.', got %q and %q", c.Layout.DocumentExt, c.Layout.MirrorExt)
	}
	if c.Layout.DocumentExt == c.Layout.MirrorExt {
		return invalid("layout.document_ext and layout.mirror_ext must differ, both are %q", c.Layout.DocumentExt)
	}

	if c.Index.StatusField == "" {
		return invalid("index.status_field must not be empty")
	}
	if c.Index.SearchLimit <= 0 {
		return invalid("index.search_limit must be positive, got %d", c.Index.SearchLimit)
	}
	if c.Index.RebuildWorkers <= 0 {
		return invalid("index.rebuild_workers must be positive, got %d", c.Index.RebuildWorkers)
	}
	if c.Index.BatchSize <= 0 {
		return invalid("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Index.CacheSize < 0 {
		return invalid("index.cache_size must be non-negative, got %d", c.Index.CacheSize)
	}

	for name, v := range map[string]string{
		"watch.debounce":      c.Watch.Debounce,
		"watch.poll_interval": c.Watch.PollInterval,
		"autosave.debounce":   c.AutoSave.Debounce,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return invalid("%s is not a duration: %q", name, v)
		}
		if d <= 0 {
			return invalid("%s must be positive, got %s", name, v)
		}
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB <= 0 || c.Logging.MaxFiles <= 0 {
		return invalid("logging.max_size_mb and logging.max_files must be positive")
	}

	return nil
}

// WatchDebounce returns the parsed watch debounce window.
func (c *Config) WatchDebounce() time.Duration {
	return mustDuration(c.Watch.Debounce, 300*time.Millisecond)
}

// PollInterval returns the parsed polling interval for the fallback watcher.
func (c *Config) PollInterval() time.Duration {
	return mustDuration(c.Watch.PollInterval, 5*time.Second)
}

// AutoSaveDebounce returns the parsed auto-save window.
func (c *Config) AutoSaveDebounce() time.Duration {
	return mustDuration(c.AutoSave.Debounce, time.Second)
}

// LoggingConfig converts the logging section into a logging.Config.
func (c *Config) LoggingConfig(debug bool) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.MaxSizeMB = c.Logging.MaxSizeMB
	cfg.MaxFiles = c.Logging.MaxFiles
	if debug {
		cfg.Level = "debug"
		cfg.WriteToStderr = true
	}
	return cfg
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir to the first directory containing
// <configDir>/project.json. Returns a NotOpen error when none is found.
func FindProjectRoot(startDir, configDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for dir := absDir; ; {
		if fileExists(filepath.Join(dir, configDir, ProjectMarker)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", wberrors.NotOpenError().WithDetail("start", absDir)
		}
		dir = parent
	}
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
