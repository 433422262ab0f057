// Package config provides application configuration management.
// It loads settings from environment variables (optionally via a .env file)
// and provides defaults for scraping, storage, and optional integrations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	LogLevel string

	// Data Configuration
	DataDir string // Data directory for the SQLite database

	// Scraper Configuration
	ScraperTimeout time.Duration
	ScraperRate    float64 // Requests per second towards a portal (0 = unlimited)
	ScraperBurst   int
	Retries        int           // Caller-side retries for transport failures (0 = none)
	RetryInitial   time.Duration // First backoff delay

	// Registry Configuration
	InstitutionsFile string // Optional JSON5 file merged over the built-in registry

	// MetricsTextfile is where a Prometheus textfile is written on exit (empty = disabled)
	MetricsTextfile string

	// ClassRegex holds runtime overrides for class cell sub-parsing.
	// Empty values leave the schema's own expression in place.
	ClassRegex ClassRegexConfig

	R2          R2Config
	Sentry      SentryConfig
	BetterStack BetterStackConfig
}

// ClassRegexConfig mirrors the six class cell expressions.
type ClassRegexConfig struct {
	Name    string
	Type    string
	During  string
	Time    string
	Place   string
	Teacher string
}

// R2Config holds Cloudflare R2 credentials for database snapshots.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	SnapshotPrefix  string
}

// Enabled reports whether every credential needed for R2 is present.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

// Endpoint returns the S3-compatible endpoint for the account.
func (c R2Config) Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// SentryConfig holds Better Stack error tracking settings.
type SentryConfig struct {
	Token       string
	Host        string
	Environment string
	SampleRate  float64
}

// BetterStackConfig holds Better Stack log shipping settings.
type BetterStackConfig struct {
	Token    string
	Endpoint string
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv(EnvLogLevel, "info"),
		DataDir:  getEnv(EnvDataDir, getDefaultDataDir()),

		ScraperTimeout: getDurationEnv(EnvScraperTimeout, ScraperRequest),
		ScraperRate:    getFloatEnv(EnvScraperRate, ScraperRate),
		ScraperBurst:   getIntEnv(EnvScraperBurst, ScraperBurst),
		Retries:        getIntEnv(EnvRetries, 0),
		RetryInitial:   getDurationEnv(EnvRetryInitial, ScraperRetryInitial),

		InstitutionsFile: getEnv(EnvInstitutionsFile, ""),
		MetricsTextfile:  getEnv(EnvMetricsTextfile, ""),

		ClassRegex: ClassRegexConfig{
			Name:    getEnv(EnvClassNameRE, ""),
			Type:    getEnv(EnvClassTypeRE, ""),
			During:  getEnv(EnvClassDuringRE, ""),
			Time:    getEnv(EnvClassTimeRE, ""),
			Place:   getEnv(EnvClassPlaceRE, ""),
			Teacher: getEnv(EnvClassTeacherRE, ""),
		},

		R2: R2Config{
			AccountID:       getEnv(EnvR2AccountID, ""),
			AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
			SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
			BucketName:      getEnv(EnvR2BucketName, ""),
			SnapshotPrefix:  getEnv(EnvR2SnapshotPrefix, "snapshots"),
		},

		Sentry: SentryConfig{
			Token:       getEnv(EnvSentryToken, ""),
			Host:        getEnv(EnvSentryHost, ""),
			Environment: getEnv(EnvSentryEnvironment, "production"),
			SampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),
		},

		BetterStack: BetterStackConfig{
			Token:    getEnv(EnvBetterStackToken, ""),
			Endpoint: getEnv(EnvBetterStackEndpoint, ""),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration values are usable
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.ScraperTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvScraperTimeout, c.ScraperTimeout))
	}
	if c.ScraperRate < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvScraperRate, c.ScraperRate))
	}
	if c.ScraperRate > 0 && c.ScraperBurst < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1 when rate limiting, got %d", EnvScraperBurst, c.ScraperBurst))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvRetries, c.Retries))
	}
	if c.Retries > 0 && c.RetryInitial <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvRetryInitial, c.RetryInitial))
	}
	if c.Sentry.Token != "" && c.Sentry.Host == "" {
		errs = append(errs, errors.New(EnvSentryHost+" is required when "+EnvSentryToken+" is set"))
	}
	if c.Sentry.SampleRate < 0 || c.Sentry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", EnvSentrySampleRate, c.Sentry.SampleRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".openct")
	}
	return "./data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "openct.db")
}
