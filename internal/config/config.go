// Package config handles configuration loading, validation, and management for logq.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete application configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Format selects the log line format.
	Format FormatConfig `toml:"format" json:"format" yaml:"format"`

	// Storage configures the SQLite row store.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Ingest configures the load pipeline.
	Ingest IngestConfig `toml:"ingest" json:"ingest" yaml:"ingest"`

	// Query configures the viewer windowing.
	Query QueryConfig `toml:"query" json:"query" yaml:"query"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	mu sync.RWMutex
}

// FormatConfig points at a format description file.
type FormatConfig struct {
	// Path to a TOML, YAML or JSON format file. Empty selects the built-in
	// log4net layout.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// StorageConfig configures the row store.
type StorageConfig struct {
	// Path is the SQLite file. It is deleted and recreated on every load.
	Path string `toml:"path" json:"path" yaml:"path"`

	// CacheSizeKiB is the SQLite page cache size.
	CacheSizeKiB int `toml:"cache_size_kib" json:"cache_size_kib" yaml:"cache_size_kib"`
}

// IngestConfig configures the producer/consumer pipeline.
type IngestConfig struct {
	// BatchSize is the number of rows per insert batch.
	BatchSize int `toml:"batch_size" json:"batch_size" yaml:"batch_size"`

	// ChannelCapacity is the number of batches buffered between producer
	// and consumer.
	ChannelCapacity int `toml:"channel_capacity" json:"channel_capacity" yaml:"channel_capacity"`
}

// QueryConfig configures the scrolling window.
type QueryConfig struct {
	Window int `toml:"window" json:"window" yaml:"window"`
	Low    int `toml:"low" json:"low" yaml:"low"`
	High   int `toml:"high" json:"high" yaml:"high"`
	Step   int `toml:"step" json:"step" yaml:"step"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format (text, json).
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where to write logs (stdout, stderr, file, both).
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated log files kept.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// AddSource adds file:line to log entries.
	AddSource bool `toml:"add_source" json:"add_source" yaml:"add_source"`

	// NoColor disables coloured text output.
	NoColor bool `toml:"no_color" json:"no_color" yaml:"no_color"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Storage: StorageConfig{
			Path:         DefaultStorePath(),
			CacheSizeKiB: 1_000_000,
		},
		Ingest: IngestConfig{
			BatchSize:       64,
			ChannelCapacity: 16,
		},
		Query: QueryConfig{
			Window: 300,
			Low:    50,
			High:   250,
			Step:   100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "logq.log"),
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	if v := os.Getenv("LOGQ_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DefaultStorePath returns the default SQLite store location.
func DefaultStorePath() string {
	return filepath.Join(PlatformDataDir(), "logs.db")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with LOGQ_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("LOGQ_FORMAT_PATH"); v != "" {
		c.Format.Path = v
	}
	if v := os.Getenv("LOGQ_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v, ok := envInt("LOGQ_CACHE_SIZE_KIB"); ok {
		c.Storage.CacheSizeKiB = v
	}
	if v, ok := envInt("LOGQ_BATCH_SIZE"); ok {
		c.Ingest.BatchSize = v
	}
	if v, ok := envInt("LOGQ_CHANNEL_CAPACITY"); ok {
		c.Ingest.ChannelCapacity = v
	}
	if v := os.Getenv("LOGQ_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOGQ_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("LOGQ_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Logging.NoColor = true
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version: c.Version,
		Format:  c.Format,
		Storage: c.Storage,
		Ingest:  c.Ingest,
		Query:   c.Query,
		Logging: c.Logging,
	}
}

// SaveConfig saves the configuration to a file, encoded by extension
// (TOML by default).
func SaveConfig(cfg *Config, path string) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		var b strings.Builder
		b.WriteString("# logq configuration\n")
		err = toml.NewEncoder(&b).Encode(cfg)
		data = []byte(b.String())
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
