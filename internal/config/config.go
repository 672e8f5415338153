package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Reminder setting names accepted in REMINDERS.
const (
	ReminderBefore3Days = "before3Days"
	ReminderBefore1Day  = "before1Day"
	ReminderOnDueDate   = "onDueDate"
	ReminderOverdue     = "overdue"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection. Unknown keys fall back to google-sheets.
	DataBackend string

	// Live backends talk to the real services; otherwise both adapters are simulated.
	LiveBackends     bool
	SimulatedLatency time.Duration

	// Local fallback store. Empty keeps bills in memory only.
	FallbackDBPath string

	// Google Sheets
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleSheetName          string

	// OAuth alternative to the service account, see the sheets-auth command.
	GoogleOAuthClientJSON string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string

	// Airtable
	AirtableAPIURL string
	AirtableTable  string

	// Bill lists read from a connected backend are cached this long. Zero disables.
	ListCacheTTL time.Duration

	// AMQP. Empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reminders
	Reminders        []string
	ReminderInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:      getEnv("DATA_BACKEND", "google-sheets"),
		LiveBackends:     getEnvBool("LIVE_BACKENDS", false),
		SimulatedLatency: getEnvDuration("SIMULATED_LATENCY", 0),

		FallbackDBPath: getEnvAllowEmpty("FALLBACK_DB_PATH", "./data/billtrack.db"),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Bills"),

		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),

		AirtableAPIURL: getEnv("AIRTABLE_API_URL", "https://api.airtable.com/v0"),
		AirtableTable:  getEnv("AIRTABLE_TABLE", "Bills"),

		ListCacheTTL: getEnvDuration("LIST_CACHE_TTL", 30*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "billtrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "billtrack.events"),

		Reminders:        getEnvList("REMINDERS", []string{ReminderBefore3Days, ReminderBefore1Day, ReminderOnDueDate, ReminderOverdue}),
		ReminderInterval: getEnvDuration("REMINDER_INTERVAL", time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.ListCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid list cache TTL %v: must not be negative", c.ListCacheTTL))
	}

	if c.SimulatedLatency < 0 || c.SimulatedLatency > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid simulated latency %v: must be between 0 and 1m", c.SimulatedLatency))
	}

	// Fallback database directory must exist or be creatable
	if c.FallbackDBPath != "" {
		dir := filepath.Dir(c.FallbackDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create fallback database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Live spreadsheet access needs service account credentials
	if c.LiveBackends {
		if c.usesOAuth() {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s (run sheets-auth first)", c.GoogleOAuthTokenFile))
			}
		} else if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided when LIVE_BACKENDS is set (or GOOGLE_OAUTH_CLIENT_FILE with GOOGLE_OAUTH_TOKEN_FILE)")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	if strings.TrimSpace(c.GoogleSheetName) == "" {
		errors = append(errors, "Google sheet name cannot be empty")
	}

	if parsedURL, err := url.Parse(c.AirtableAPIURL); err != nil || parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid Airtable API URL '%s'", c.AirtableAPIURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid Airtable API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if strings.TrimSpace(c.AirtableTable) == "" {
		errors = append(errors, "Airtable table name cannot be empty")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for _, r := range c.Reminders {
		switch r {
		case ReminderBefore3Days, ReminderBefore1Day, ReminderOnDueDate, ReminderOverdue:
		default:
			errors = append(errors, fmt.Sprintf("invalid reminder '%s': must be one of %s, %s, %s, %s",
				r, ReminderBefore3Days, ReminderBefore1Day, ReminderOnDueDate, ReminderOverdue))
		}
	}

	if c.ReminderInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reminder interval %v: must be at least 1m", c.ReminderInterval))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "tint":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of text, json, tint", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// usesOAuth reports whether an OAuth client and token replace the service account.
func (c *Config) usesOAuth() bool {
	return c.GoogleOAuthTokenFile != "" && (c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != "")
}

// HasReminder reports whether the named reminder is enabled.
func (c *Config) HasReminder(name string) bool {
	for _, r := range c.Reminders {
		if r == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty treats a variable set to the empty string as a value.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
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

func getEnvList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
