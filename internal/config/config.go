package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	minTimeout          = time.Second
	defaultMetadataTime = 10 * time.Second
	defaultUploadTime   = 60 * time.Second
	defaultSummaryIDs   = 20
)

// Config holds all configuration values.
type Config struct {
	// Remote service
	Server        string `env:"PTFLOW_SERVER"`
	Session       string `env:"PTFLOW_SESSION"`
	SessionCookie string `env:"PTFLOW_SESSION_COOKIE" envDefault:"SESSION"`

	// Bookkeeping and input
	BookkeepingDir string `env:"PTFLOW_BOOKKEEPING_DIR" envDefault:"bookkeeping"`
	Source         string `env:"PTFLOW_SOURCE"`
	SourceSkipRows int    `env:"PTFLOW_SOURCE_SKIP_ROWS" envDefault:"4"`

	// Logging
	LogFile     string `env:"PTFLOW_IMPORTER_LOG_FILE"`
	LogLevelRaw string `env:"PTFLOW_IMPORTER_LOG_LEVEL" envDefault:"INFO"`
	LogLevel    slog.Level

	// Engine
	MetadataTimeout time.Duration `env:"PTFLOW_METADATA_TIMEOUT" envDefault:"10s"`
	UploadTimeout   time.Duration `env:"PTFLOW_UPLOAD_TIMEOUT" envDefault:"60s"`
	Priorities      []string      `env:"PTFLOW_PRIORITIES" envDefault:"1,2" envSeparator:","`
	OnInvalid       string        `env:"PTFLOW_ON_INVALID" envDefault:"abort"`
	SummaryMaxIDs   int           `env:"PTFLOW_SUMMARY_MAX_IDS" envDefault:"20"`
}

// Load reads an optional .env file from the working directory and then
// parses configuration from environment variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse(env.Options{})
}

// Parse parses configuration with the given options. Tests pass an
// Environment map instead of touching the process env.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from env.
func (c *Config) Sanitize() {
	c.Server = strings.TrimRight(strings.TrimSpace(c.Server), "/")
	c.Session = strings.TrimSpace(c.Session)
	if c.SessionCookie == "" {
		c.SessionCookie = "SESSION"
	}
	if c.BookkeepingDir == "" {
		c.BookkeepingDir = "bookkeeping"
	}
	if c.SourceSkipRows < 0 {
		c.SourceSkipRows = 0
	}

	c.LogLevel = parseLogLevel(c.LogLevelRaw)

	if c.MetadataTimeout <= 0 {
		c.MetadataTimeout = defaultMetadataTime
	} else if c.MetadataTimeout < minTimeout {
		c.MetadataTimeout = minTimeout
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = defaultUploadTime
	} else if c.UploadTimeout < minTimeout {
		c.UploadTimeout = minTimeout
	}

	priorities := c.Priorities[:0]
	for _, p := range c.Priorities {
		if p = strings.TrimSpace(p); p != "" {
			priorities = append(priorities, p)
		}
	}
	c.Priorities = priorities

	c.OnInvalid = strings.ToLower(strings.TrimSpace(c.OnInvalid))
	if c.OnInvalid == "" {
		c.OnInvalid = "abort"
	}
	if c.SummaryMaxIDs <= 0 {
		c.SummaryMaxIDs = defaultSummaryIDs
	}
}

// HasCredentials reports whether both server and session are set.
func (c Config) HasCredentials() bool {
	return c.Server != "" && c.Session != ""
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
