package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Output formats for the scan command.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Config holds application configuration
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"info"`
	Host           string        `yaml:"host" default:"0.0.0.0"`
	Port           int           `yaml:"port" default:"5120"`
	ScanDuration   time.Duration `yaml:"scan_duration" default:"2s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
	RPCTimeout     time.Duration `yaml:"rpc_timeout" default:"5s"`
	RadioLock      bool          `yaml:"radio_lock" default:"false"`
	OutputFormat   string        `yaml:"output_format" default:"table"` // table, json
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port: %d out of range", c.Port)
	}
	if c.ScanDuration <= 0 {
		return errors.New("scan_duration: must be positive")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect_timeout: must be positive")
	}
	if c.RPCTimeout <= 0 {
		return errors.New("rpc_timeout: must be positive")
	}
	switch c.OutputFormat {
	case FormatTable, FormatJSON:
	default:
		return fmt.Errorf("output_format: unsupported %q", c.OutputFormat)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
