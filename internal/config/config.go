// Package config provides application configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFlagKey is evaluated when FLAG_KEY is not set.
const DefaultFlagKey = "discount"

// Config holds all application configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv               string        // Application environment (dev, staging, prod)
	HTTPAddr             string        // HTTP server bind address (e.g., ":8080")
	MetricsAddr          string        // Metrics server bind address
	LogLevel             string        // zerolog level for the process log
	LogFormat            string        // "json" or "console"
	SDKKey               string        // Optimizely SDK key; no default
	FlagKey              string        // Flag evaluated per request
	DatafileBaseURL      string        // CDN base, datafiles live at {base}/{sdkKey}.json
	DatafileTTL          time.Duration // How long a fetched datafile may be served from cache
	DatafileCacheSize    int           // Max distinct datafile URLs kept in cache
	SDKLogLevel          string        // Decision engine log verbosity
	EventDispatchEnabled bool          // Send impression events to the telemetry backend
	EventTimeout         time.Duration // Per-POST timeout of the telemetry backend
	RateLimitPerIP       int           // Requests per minute per IP on the decision route (0 disables)
	RequestTimeout       time.Duration // Upper bound on one request, including the datafile fetch
	ShutdownTimeout      time.Duration // Time allowed for draining background work on exit

	v *viper.Viper
}

// RequestConfig is the subset of configuration a single decision request needs.
// The host sources it per request and hands it to the decider explicitly.
type RequestConfig struct {
	SDKKey               string
	FlagKey              string
	EventDispatchEnabled bool
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
//
// Validation:
//
//	This function does NOT validate configuration constraints.
//	Use Validate() to check them at startup.
func Load() (*Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = viperInstance.ReadInConfig()    // Ignore error - .env is optional
	viperInstance.AutomaticEnv()        // Read from environment variables

	setConfigDefaults(viperInstance)

	return &Config{
		AppEnv:               viperInstance.GetString("APP_ENV"),
		HTTPAddr:             viperInstance.GetString("APP_HTTP_ADDR"),
		MetricsAddr:          viperInstance.GetString("METRICS_ADDR"),
		LogLevel:             viperInstance.GetString("LOG_LEVEL"),
		LogFormat:            viperInstance.GetString("LOG_FORMAT"),
		SDKKey:               viperInstance.GetString("OPTIMIZELY_SDK_KEY"),
		FlagKey:              flagKeyOrDefault(viperInstance.GetString("FLAG_KEY")),
		DatafileBaseURL:      strings.TrimRight(viperInstance.GetString("DATAFILE_BASE_URL"), "/"),
		DatafileTTL:          viperInstance.GetDuration("DATAFILE_TTL"),
		DatafileCacheSize:    viperInstance.GetInt("DATAFILE_CACHE_SIZE"),
		SDKLogLevel:          viperInstance.GetString("SDK_LOG_LEVEL"),
		EventDispatchEnabled: viperInstance.GetBool("EVENT_DISPATCH_ENABLED"),
		EventTimeout:         viperInstance.GetDuration("EVENT_TIMEOUT"),
		RateLimitPerIP:       viperInstance.GetInt("RATE_LIMIT_PER_IP"),
		RequestTimeout:       viperInstance.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout:      viperInstance.GetDuration("SHUTDOWN_TIMEOUT"),
		v:                    viperInstance,
	}, nil
}

// setConfigDefaults sets default values for all configuration options.
// OPTIMIZELY_SDK_KEY deliberately has none.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("FLAG_KEY", DefaultFlagKey)
	v.SetDefault("DATAFILE_BASE_URL", "https://cdn.optimizely.com/datafiles")
	v.SetDefault("DATAFILE_TTL", 600*time.Second)
	v.SetDefault("DATAFILE_CACHE_SIZE", 128)
	v.SetDefault("SDK_LOG_LEVEL", "error") // INFO/DEBUG slow every decision down
	v.SetDefault("EVENT_DISPATCH_ENABLED", false)
	v.SetDefault("EVENT_TIMEOUT", 10*time.Second)
	v.SetDefault("RATE_LIMIT_PER_IP", 0)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
}

func flagKeyOrDefault(key string) string {
	if strings.TrimSpace(key) == "" {
		return DefaultFlagKey
	}
	return key
}

// Request re-reads the per-request values. OPTIMIZELY_SDK_KEY and FLAG_KEY are looked up
// at request time, so an operator can rotate them without a restart.
func (c *Config) Request() RequestConfig {
	if c.v == nil {
		return RequestConfig{
			SDKKey:               c.SDKKey,
			FlagKey:              flagKeyOrDefault(c.FlagKey),
			EventDispatchEnabled: c.EventDispatchEnabled,
		}
	}
	return RequestConfig{
		SDKKey:               c.v.GetString("OPTIMIZELY_SDK_KEY"),
		FlagKey:              flagKeyOrDefault(c.v.GetString("FLAG_KEY")),
		EventDispatchEnabled: c.EventDispatchEnabled,
	}
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration can start a server.
//
// Validation Rules:
//  1. HTTPAddr and MetricsAddr must be non-empty
//  2. DatafileBaseURL must be an http(s) URL
//  3. DatafileTTL must not be negative, DatafileCacheSize must be positive
//  4. LogFormat must be "json" or "console"
//  5. SDKLogLevel must be one of debug, info, warning, error
//
// Production Safety:
//
//	In production (AppEnv "prod" or "production") OPTIMIZELY_SDK_KEY must be set.
//	Elsewhere an empty key is accepted and every request fails at the fetch.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return ValidationError{Field: "APP_HTTP_ADDR", Message: "HTTP server address cannot be empty"}
	}
	if c.MetricsAddr == "" {
		return ValidationError{Field: "METRICS_ADDR", Message: "metrics server address cannot be empty"}
	}
	if !strings.HasPrefix(c.DatafileBaseURL, "http://") && !strings.HasPrefix(c.DatafileBaseURL, "https://") {
		return ValidationError{
			Field:   "DATAFILE_BASE_URL",
			Message: fmt.Sprintf("must be an http(s) URL, got '%s'", c.DatafileBaseURL),
		}
	}
	if c.DatafileTTL < 0 {
		return ValidationError{Field: "DATAFILE_TTL", Message: "must not be negative"}
	}
	if c.DatafileCacheSize <= 0 {
		return ValidationError{Field: "DATAFILE_CACHE_SIZE", Message: "must be greater than zero"}
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return ValidationError{
			Field:   "LOG_FORMAT",
			Message: fmt.Sprintf("must be 'json' or 'console', got '%s'", c.LogFormat),
		}
	}
	switch strings.ToLower(c.SDKLogLevel) {
	case "debug", "info", "warning", "error":
	default:
		return ValidationError{
			Field:   "SDK_LOG_LEVEL",
			Message: fmt.Sprintf("must be one of debug, info, warning, error, got '%s'", c.SDKLogLevel),
		}
	}

	if (c.AppEnv == "prod" || c.AppEnv == "production") && c.SDKKey == "" {
		return ValidationError{
			Field:   "OPTIMIZELY_SDK_KEY",
			Message: "SDK key is required in production",
		}
	}

	return nil
}
