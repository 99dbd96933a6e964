// Package config loads suite configuration from environment variables,
// validates it, and provides defaults.
//
// Browser selection (BROWSER, SELENIUM_GRID_URL, HEADLESS) picks how sessions are
// acquired. FORGE_* variables point the suite at a live forge; when FORGE_BASE_URL
// is unset, scenario tests run against the in-process forge instead.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/forge-e2e/internal/errs"
)

const (
	defaultEngine        = "chrome"
	defaultReadyTimeout  = 5 * time.Second
	defaultPollInterval  = 100 * time.Millisecond
	defaultSettleTimeout = 2 * time.Second
	defaultAWSRegion     = "us-east-1"
)

// Config holds all suite configuration.
type Config struct {
	// Browser session
	Engine   string // BROWSER: chrome | firefox
	GridURL  string // SELENIUM_GRID_URL: remote endpoint; empty means local launch
	Headless bool   // HEADLESS

	// Target forge
	BaseURL      string // FORGE_BASE_URL
	Username     string // FORGE_USERNAME
	Password     string // FORGE_PASSWORD
	Org          string // FORGE_ORG, defaults to Username
	APIToken     string // FORGE_API_TOKEN
	FixturesPath string // FORGE_FIXTURES

	// Synchronization
	ReadyTimeout  time.Duration // READY_TIMEOUT
	PollInterval  time.Duration // POLL_INTERVAL
	SettleTimeout time.Duration // SETTLE_TIMEOUT

	// REST client pacing
	APIRPS   float64 // API_RPS
	APIBurst int     // API_BURST

	// Failure artifacts
	ArtifactsDir       string // ARTIFACTS_DIR
	ArtifactsBucket    string // ARTIFACTS_BUCKET
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY

	LogLevel string // LOG_LEVEL
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads configuration from the environment and validates it.
// Validation failures are coded errs.Configuration and unwrap to *ValidationError.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.Configuration, "invalid suite configuration", err)
	}
	return cfg, nil
}

// FromEnv reads configuration from the environment without validating it.
func FromEnv() *Config {
	cfg := &Config{}

	cfg.Engine = strings.ToLower(getEnvOrDefault("BROWSER", defaultEngine))
	cfg.GridURL = getEnvOrDefault("SELENIUM_GRID_URL", "")
	cfg.Headless = parseBoolOrDefault("HEADLESS", true)

	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("FORGE_BASE_URL", ""), "/")
	cfg.Username = getEnvOrDefault("FORGE_USERNAME", "")
	cfg.Password = os.Getenv("FORGE_PASSWORD")
	cfg.Org = getEnvOrDefault("FORGE_ORG", cfg.Username)
	cfg.APIToken = getEnvOrDefault("FORGE_API_TOKEN", "")
	cfg.FixturesPath = getEnvOrDefault("FORGE_FIXTURES", "")

	cfg.ReadyTimeout = parseDurationOrDefault("READY_TIMEOUT", defaultReadyTimeout)
	cfg.PollInterval = parseDurationOrDefault("POLL_INTERVAL", defaultPollInterval)
	cfg.SettleTimeout = parseDurationOrDefault("SETTLE_TIMEOUT", defaultSettleTimeout)

	cfg.APIRPS = parseFloat64OrDefault("API_RPS", 10)
	cfg.APIBurst = parseIntOrDefault("API_BURST", 5)

	cfg.ArtifactsDir = getEnvOrDefault("ARTIFACTS_DIR", "")
	cfg.ArtifactsBucket = getEnvOrDefault("ARTIFACTS_BUCKET", "")
	cfg.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", "")
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultAWSRegion)
	cfg.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "")

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	return cfg
}

// Validate checks that configuration values are usable.
// Engine and grid address are checked by the session provider when a session
// is acquired, so API-only runs never fail on browser settings.
func (c *Config) Validate() error {
	var problems []string

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, "FORGE_BASE_URL must be an absolute http(s) URL")
		}
		if c.Username == "" {
			problems = append(problems, "FORGE_USERNAME is required when FORGE_BASE_URL is set")
		}
	}

	if c.ReadyTimeout <= 0 {
		problems = append(problems, "READY_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "POLL_INTERVAL must be positive")
	} else if c.PollInterval >= c.ReadyTimeout {
		problems = append(problems, "POLL_INTERVAL must be smaller than READY_TIMEOUT")
	}
	if c.SettleTimeout <= 0 {
		problems = append(problems, "SETTLE_TIMEOUT must be positive")
	}

	if c.APIRPS <= 0 {
		problems = append(problems, "API_RPS must be positive")
	}
	if c.APIBurst <= 0 {
		problems = append(problems, "API_BURST must be positive")
	}

	if c.ArtifactsBucket != "" && c.AWSRegion == "" {
		problems = append(problems, "AWS_REGION is required when ARTIFACTS_BUCKET is set")
	}

	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

// HasLiveTarget reports whether a real forge is configured.
func (c *Config) HasLiveTarget() bool {
	return c.BaseURL != ""
}

// UsesGrid reports whether sessions connect to a remote grid.
func (c *Config) UsesGrid() bool {
	return c.GridURL != ""
}

// Summary returns a human-readable description of the configuration for
// the CLI's startup banner. Secrets are never included.
func (c *Config) Summary() string {
	var b strings.Builder
	target := c.BaseURL
	if target == "" {
		target = "(in-process forge)"
	}
	fmt.Fprintf(&b, "  Target:   %s\n", target)
	if c.UsesGrid() {
		fmt.Fprintf(&b, "  Browser:  %s via grid %s\n", c.Engine, c.GridURL)
	} else {
		fmt.Fprintf(&b, "  Browser:  %s (local, headless=%t)\n", c.Engine, c.Headless)
	}
	fmt.Fprintf(&b, "  Timing:   ready=%s poll=%s settle=%s\n", c.ReadyTimeout, c.PollInterval, c.SettleTimeout)
	switch {
	case c.ArtifactsBucket != "":
		fmt.Fprintf(&b, "  Artifacts: s3://%s\n", c.ArtifactsBucket)
	case c.ArtifactsDir != "":
		fmt.Fprintf(&b, "  Artifacts: %s\n", c.ArtifactsDir)
	default:
		fmt.Fprintln(&b, "  Artifacts: disabled")
	}
	return b.String()
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
