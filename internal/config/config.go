package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
)

// Backend names.
const (
	BackendLocal   = "local"
	BackendGDrive  = "gdrive"
	BackendDropbox = "dropbox"
	BackendCapture = "capture"
)

// Config holds all application configuration
type Config struct {
	Backend string
	Local   LocalConfig
	GDrive  GDriveConfig
	Dropbox DropboxConfig
	Capture CaptureConfig
	Log     LogConfig
	Report  ReportConfig
	// HTTPTimeout bounds every request of the HTTP backends.
	HTTPTimeout time.Duration
}

// LocalConfig holds filesystem backend configuration
type LocalConfig struct {
	Root string
}

// GDriveConfig holds Google Drive configuration
type GDriveConfig struct {
	Token     string
	BaseURL   string
	UploadURL string
}

// DropboxConfig holds Dropbox configuration
type DropboxConfig struct {
	Token      string
	APIURL     string
	ContentURL string
}

// CaptureConfig holds capture inbox configuration
type CaptureConfig struct {
	RedisURL string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// ReportConfig holds review report configuration
type ReportConfig struct {
	DiffContext int
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Backend: strings.ToLower(getEnv("LQABOSS_BACKEND", BackendLocal)),
		Local: LocalConfig{
			Root: getEnv("LQABOSS_ROOT", "."),
		},
		GDrive: GDriveConfig{
			Token:     getEnv("GDRIVE_TOKEN", ""),
			BaseURL:   getEnv("GDRIVE_BASE_URL", ""),
			UploadURL: getEnv("GDRIVE_UPLOAD_URL", ""),
		},
		Dropbox: DropboxConfig{
			Token:      getEnv("DROPBOX_TOKEN", ""),
			APIURL:     getEnv("DROPBOX_API_URL", ""),
			ContentURL: getEnv("DROPBOX_CONTENT_URL", ""),
		},
		Capture: CaptureConfig{
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LQABOSS_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LQABOSS_LOG_FORMAT", "text")),
		},
		Report: ReportConfig{
			DiffContext: getEnvAsInt("LQABOSS_REPORT_DIFF_CONTEXT", 3),
		},
		HTTPTimeout: getEnvAsDuration("LQABOSS_HTTP_TIMEOUT", 20*time.Second),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func configError(format string, args ...any) error {
	return apperr.New(apperr.CodeConfig, fmt.Sprintf(format, args...), nil)
}

// Validate checks the settings the selected backend depends on.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.Local.Root == "" {
			return configError("LQABOSS_ROOT is required for the local backend")
		}
	case BackendGDrive:
		if c.GDrive.Token == "" {
			return configError("GDRIVE_TOKEN is required for the gdrive backend")
		}
	case BackendDropbox:
		if c.Dropbox.Token == "" {
			return configError("DROPBOX_TOKEN is required for the dropbox backend")
		}
	case BackendCapture:
		if c.Capture.RedisURL == "" {
			return configError("REDIS_URL is required for the capture backend")
		}
	default:
		return configError("unknown backend %q", c.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return configError("LQABOSS_LOG_LEVEL must be debug, info, warn or error (got %q)", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return configError("LQABOSS_LOG_FORMAT must be text or json (got %q)", c.Log.Format)
	}
	if c.HTTPTimeout <= 0 {
		return configError("LQABOSS_HTTP_TIMEOUT must be positive")
	}
	if c.Report.DiffContext < 0 {
		return configError("LQABOSS_REPORT_DIFF_CONTEXT must be >= 0")
	}
	return nil
}
