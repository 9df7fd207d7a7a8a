// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap/zapcore"
)

// Trace exporters
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
)

// Config holds all application configuration.
type Config struct {
	Port            int           `env:"FD_PORT" envDefault:"8080"`
	Env             string        `env:"FD_ENV" envDefault:"development"`
	ServiceName     string        `env:"FD_SERVICE_NAME" envDefault:"fast-dispatch"`
	ReadTimeout     time.Duration `env:"FD_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"FD_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"FD_IDLE_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"FD_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxConnections  int           `env:"FD_MAX_CONNECTIONS" envDefault:"0"`
	MaxRequestBytes int           `env:"FD_MAX_REQUEST_BYTES" envDefault:"1048576"`
	LogLevel        zapcore.Level `env:"FD_LOG_LEVEL" envDefault:"info"`
	TraceExporter   string        `env:"FD_TRACE_EXPORTER" envDefault:"none"`
	StaticRoot      string        `env:"FD_STATIC_ROOT" envDefault:"."`
	StaticTable     string        `env:"FD_STATIC_TABLE"`
	StaticCacheSize int           `env:"FD_STATIC_CACHE_SIZE" envDefault:"64"`
	HandlerWorkers  int           `env:"FD_HANDLER_WORKERS" envDefault:"0"`
	HandlerQueue    int           `env:"FD_HANDLER_QUEUE" envDefault:"256"`
	GCPercent       int           `env:"FD_GC_PERCENT" envDefault:"0"`
	MemoryLimit     int64         `env:"FD_MEMORY_LIMIT" envDefault:"0"`
}

// New parses the environment into a Config
func New() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Newf("FD_PORT out of range: %d", c.Port)
	}
	if c.MaxRequestBytes <= 0 {
		return errors.Newf("FD_MAX_REQUEST_BYTES must be positive, got %d", c.MaxRequestBytes)
	}
	if c.HandlerWorkers < 0 {
		return errors.Newf("FD_HANDLER_WORKERS must not be negative, got %d", c.HandlerWorkers)
	}
	switch c.TraceExporter {
	case TraceExporterNone, TraceExporterStdout:
	default:
		return errors.Newf("unsupported FD_TRACE_EXPORTER: %q (supported: none, stdout)", c.TraceExporter)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// StaticFile maps a request path to a file alias
type StaticFile struct {
	Path  string `yaml:"path"`
	Alias string `yaml:"alias"`
}

type staticTable struct {
	Files []StaticFile `yaml:"files"`
}

// LoadStaticTable reads static file mappings from a YAML document:
//
//	files:
//	  - path: /
//	    alias: index.html
func LoadStaticTable(path string) ([]StaticFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read static table")
	}
	return ParseStaticTable(data)
}

// ParseStaticTable decodes static file mappings
func ParseStaticTable(data []byte) ([]StaticFile, error) {
	var table staticTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, errors.Wrap(err, "decode static table")
	}
	for i, f := range table.Files {
		if f.Path == "" || f.Alias == "" {
			return nil, errors.Newf("static table entry %d: path and alias are required", i)
		}
	}
	return table.Files, nil
}
