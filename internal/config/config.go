package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/logging"
)

// File names searched when no explicit config file is given
const (
	ProjectFile = "sftgen.yaml"
	LocalFile   = "sftgen.local.yaml"
	EnvFile     = ".env"
	EnvPrefix   = "SFTGEN"
)

// Config represents the sftgen configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// files that were merged, lowest priority first
	sources  []string
	explicit string
}

type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	RecordsFile string `mapstructure:"records_file"`
	MemoryFile  string `mapstructure:"memory_file"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "files")
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.records_file", "sft_records.xlsx")
	v.SetDefault("storage.memory_file", "sft_memory.json")
	v.SetDefault("storage.sqlite_path", "sft_registry.db")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads the layered configuration: defaults, ~/.sftgen/config.yaml,
// sftgen.yaml (or explicit), sftgen.local.yaml, .env and SFTGEN_* variables.
// A missing explicit file is an error; every other layer is optional.
func Load(explicit string) (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", EnvFile, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	var sources []string

	// Load global config first (lowest priority)
	if home, err := os.UserHomeDir(); err == nil {
		sources = appendIfExists(sources, filepath.Join(home, ".sftgen", "config.yaml"))
	}

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", explicit, err)
		}
		sources = append(sources, explicit)
	} else {
		sources = appendIfExists(sources, ProjectFile)
	}

	// Local overrides (highest file priority)
	sources = appendIfExists(sources, LocalFile)

	for _, path := range sources {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.sources = sources
	cfg.explicit = explicit

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func appendIfExists(sources []string, path string) []string {
	if _, err := os.Stat(path); err == nil {
		return append(sources, path)
	}
	return sources
}

// Sources returns the config files that were merged, lowest priority first
func (c *Config) Sources() []string {
	return c.sources
}

// expandPaths expands ~ in storage paths
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Storage.Dir, &c.Storage.SQLitePath} {
		if !strings.HasPrefix(*p, "~") {
			continue
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to expand ~ in %s: %w", *p, err)
		}
		*p = strings.Replace(*p, "~", home, 1)
	}
	return nil
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var problems []string

	switch c.Storage.Backend {
	case "files":
		if c.Storage.RecordsFile == "" {
			problems = append(problems, "storage.records_file is required")
		}
		if c.Storage.MemoryFile == "" {
			problems = append(problems, "storage.memory_file is required")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			problems = append(problems, "storage.sqlite_path is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.backend must be files or sqlite, got %q", c.Storage.Backend))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		problems = append(problems, fmt.Sprintf("server.mode must be debug, release or test, got %q", c.Server.Mode))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "server timeouts must be positive")
	}

	if !logging.ValidLevel(c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of trace, debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		problems = append(problems, fmt.Sprintf("metrics.path must start with /, got %q", c.Metrics.Path))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

// RecordsPath returns the tabular records file location
func (c *Config) RecordsPath() string {
	return c.resolve(c.Storage.RecordsFile)
}

// MemoryPath returns the membership file location
func (c *Config) MemoryPath() string {
	return c.resolve(c.Storage.MemoryFile)
}

// SQLitePath returns the sqlite database location
func (c *Config) SQLitePath() string {
	return c.resolve(c.Storage.SQLitePath)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.Dir, name)
}

// Addr returns the server listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Watch reloads the full layered config whenever the highest-priority config
// file changes and passes the result to onChange. Invalid edits are logged and
// ignored. It returns false when no config file was loaded.
func (c *Config) Watch(logger *slog.Logger, onChange func(*Config)) bool {
	if len(c.sources) == 0 {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}

	watched := c.sources[len(c.sources)-1]
	w := viper.New()
	w.SetConfigFile(watched)
	w.OnConfigChange(func(e fsnotify.Event) {
		next, err := Load(c.explicit)
		if err != nil {
			logger.Warn("config reload failed, keeping previous settings", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(next)
	})
	w.WatchConfig()

	return true
}
