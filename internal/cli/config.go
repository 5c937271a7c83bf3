package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/pageindex/pkg/pagestore"
)

// MemoryIndex as the index path keeps the index in memory for the
// lifetime of one command.
const MemoryIndex = ":memory:"

// ConfigFileName is the default project config file name.
const ConfigFileName = ".pageindex.json"

var (
	errConfigInvalid      = errors.New("invalid config")
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errPagesDirEmpty      = errors.New("pages_dir cannot be empty")
	errBadLogLevel        = errors.New("log_level must be one of debug, info, warn, error")
	errBadDebounce        = errors.New("debounce_ms must be non-negative")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	PagesDir    string `json:"pages_dir"`
	Index       string `json:"index,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`
	MetricsAddr string `json:"metrics_addr,omitempty"`
	DebounceMS  int    `json:"debounce_ms,omitempty"`

	// Resolved values (computed, not serialized)
	EffectiveCwd string     `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	PagesDirAbs  string     `json:"-"` // Absolute path to the page directory
	IndexAbs     string     `json:"-"` // Absolute index file path, or MemoryIndex
	Level        slog.Level `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PagesDir:   ".",
		LogLevel:   "warn",
		DebounceMS: int(pagestore.DefaultDebounce / time.Millisecond),
	}
}

// Debounce is the watcher debounce window.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// globalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/pageindex/config.json if set, otherwise
// ~/.config/pageindex/config.json. Returns empty string if home directory
// cannot be determined.
func globalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "pageindex", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "pageindex", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       Config            // flag values; zero fields mean no override
	Env             map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/pageindex/config.json)
// 3. Project config file at default location (.pageindex.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty)
// 5. Flag overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := DefaultConfig()

	if path := globalConfigPath(input.Env); path != "" {
		globalCfg, loaded, err := loadConfigFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
			cfg = mergeConfig(cfg, globalCfg)
		}
	}

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)
	cfg = mergeConfig(cfg, input.Overrides)

	err = resolveConfig(&cfg, workDir)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadProjectConfig loads the project config file or an explicit config
// file. Returns the config, the path if loaded, and any error.
func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	if configPath == "" {
		path := filepath.Join(workDir, ConfigFileName)

		cfg, loaded, err := loadConfigFile(path, false)
		if err != nil || !loaded {
			return Config{}, "", err
		}

		return cfg, path, nil
	}

	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	// Check existence first to provide a clear "not found" error
	_, statErr := os.Stat(path)
	if statErr != nil {
		return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
	}

	cfg, _, err := loadConfigFile(path, true)
	if err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing files
// return a zero config. Returns whether the file was loaded.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", errConfigFileRead, path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	// An explicit "pages_dir": "" is an error, not "use the default".
	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	if val, exists := raw["pages_dir"]; exists {
		if str, ok := val.(string); ok && str == "" {
			return Config{}, errPagesDirEmpty
		}
	}

	if cfg.DebounceMS < 0 {
		return Config{}, errBadDebounce
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.PagesDir != "" {
		base.PagesDir = overlay.PagesDir
	}

	if overlay.Index != "" {
		base.Index = overlay.Index
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.MetricsAddr != "" {
		base.MetricsAddr = overlay.MetricsAddr
	}

	if overlay.DebounceMS != 0 {
		base.DebounceMS = overlay.DebounceMS
	}

	return base
}

func resolveConfig(cfg *Config, workDir string) error {
	if cfg.PagesDir == "" {
		return errPagesDirEmpty
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	cfg.Level = level
	cfg.EffectiveCwd = workDir
	cfg.PagesDirAbs = absFrom(workDir, cfg.PagesDir)

	switch cfg.Index {
	case MemoryIndex:
		cfg.IndexAbs = MemoryIndex
	case "":
		cfg.IndexAbs = filepath.Join(cfg.PagesDirAbs, ".pageindex", "index.db")
	default:
		cfg.IndexAbs = absFrom(workDir, cfg.Index)
	}

	return nil
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", errBadLogLevel, name)
	}
}

func absFrom(workDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(workDir, path)
}
