// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port               string
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// Plaid
	PlaidClientID   string
	PlaidSecret     string
	PlaidEnv        string
	PlaidBaseURL    string
	PlaidClientName string
	PlaidTimeout    time.Duration
	SyncWindowDays  int

	// AMQP; an empty URL disables sync events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validBackends  = []string{"memory", "sqlite"}
	validPlaidEnvs = []string{"sandbox", "development", "production"}
	validLogFormat = []string{"text", "json"}
)

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "3000"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finboard.db"),

		PlaidClientID:   strings.TrimSpace(getEnv("PLAID_CLIENT_ID", "")),
		PlaidSecret:     strings.TrimSpace(getEnv("PLAID_SECRET", "")),
		PlaidEnv:        strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
		PlaidBaseURL:    getEnv("PLAID_BASE_URL", ""),
		PlaidClientName: getEnv("PLAID_CLIENT_NAME", "Personal Finance App"),
		PlaidTimeout:    getEnvDuration("PLAID_TIMEOUT", 30*time.Second),
		SyncWindowDays:  getEnvInt("SYNC_WINDOW_DAYS", 90),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transactions_synced"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

// PlaidConfigured reports whether both Plaid credentials are present.
// Missing credentials are not a validation error: the link-token endpoint
// reports them per request.
func (c *Config) PlaidConfigured() bool {
	return c.PlaidClientID != "" && c.PlaidSecret != ""
}

// AMQPEnabled reports whether sync events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate returns one error listing every invalid setting.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" && strings.TrimSpace(c.SQLiteDBPath) == "" {
		errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
	}

	if !slices.Contains(validPlaidEnvs, c.PlaidEnv) {
		errs = append(errs, fmt.Sprintf("invalid Plaid environment '%s': must be one of %v", c.PlaidEnv, validPlaidEnvs))
	}
	if c.PlaidBaseURL != "" {
		if u, err := url.Parse(c.PlaidBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid Plaid base URL '%s': must be an http or https URL", c.PlaidBaseURL))
		}
	}
	if c.PlaidTimeout < time.Second || c.PlaidTimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid Plaid timeout %v: must be between 1s and 5m", c.PlaidTimeout))
	}
	if c.SyncWindowDays < 1 || c.SyncWindowDays > 730 {
		errs = append(errs, fmt.Sprintf("invalid sync window %d days: must be between 1 and 730", c.SyncWindowDays))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleSheetName) == "" {
		errs = append(errs, "Google sheet name cannot be empty when a spreadsheet ID is provided")
	}

	if !slices.Contains(validLogFormat, c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
