package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Publish modes.
const (
	PublishInline = "inline"
	PublishQueue  = "queue"
)

var validTargets = []string{"file", "s3", "gcs", "sheets"}

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Summary artifact
	SummaryFile    string
	SummaryTitle   string
	CurrencySymbol string

	// Publishing
	PublishMode       string
	PublishTargets    []string
	PublishTimeout    time.Duration
	RepublishSchedule string

	// S3 or S3-compatible host
	S3Bucket          string
	S3Key             string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Google Cloud Storage
	GCSBucket string
	GCSObject string

	// Google Sheets ledger mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Caching
	SummaryCacheTTL  time.Duration
	SummaryCacheSize int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/paytrack.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "paytrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changed"),

		SummaryFile:    getEnv("SUMMARY_FILE", "./docs/index.html"),
		SummaryTitle:   getEnv("SUMMARY_TITLE", "Payment Tracker"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "Rs."),

		PublishMode:       getEnv("PUBLISH_MODE", PublishInline),
		PublishTargets:    getEnvList("PUBLISH_TARGETS", []string{"file"}),
		PublishTimeout:    getEnvDuration("PUBLISH_TIMEOUT", 30*time.Second),
		RepublishSchedule: getEnv("REPUBLISH_SCHEDULE", ""),

		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Key:             getEnv("S3_KEY", "index.html"),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),

		GCSBucket: getEnv("GCS_BUCKET", ""),
		GCSObject: getEnv("GCS_OBJECT", "index.html"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Payments"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		SummaryCacheTTL:  getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 100),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// HasTarget reports whether name is among the configured publish targets.
func (c *Config) HasTarget(name string) bool {
	return slices.Contains(c.PublishTargets, name)
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

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
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

	switch c.PublishMode {
	case PublishInline:
	case PublishQueue:
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP URL is required when publish mode is 'queue'")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid publish mode '%s': must be one of [%s %s]", c.PublishMode, PublishInline, PublishQueue))
	}

	for _, t := range c.PublishTargets {
		if !slices.Contains(validTargets, t) {
			errors = append(errors, fmt.Sprintf("invalid publish target '%s': must be one of %v", t, validTargets))
		}
	}
	if c.HasTarget("file") && c.SummaryFile == "" {
		errors = append(errors, "summary file path is required for the file target")
	}
	if c.HasTarget("s3") && c.S3Bucket == "" {
		errors = append(errors, "S3 bucket is required for the s3 target")
	}
	if c.HasTarget("s3") && (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
		errors = append(errors, "S3 access key id and secret access key must be set together")
	}
	if c.HasTarget("gcs") && c.GCSBucket == "" {
		errors = append(errors, "GCS bucket is required for the gcs target")
	}
	if c.HasTarget("sheets") {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required for the sheets target")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets target")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.PublishTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid publish timeout %v: must be at least 1 second", c.PublishTimeout))
	} else if c.PublishTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid publish timeout %v: must be at most 10 minutes", c.PublishTimeout))
	}

	if c.RepublishSchedule != "" {
		if _, err := cron.ParseStandard(c.RepublishSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid republish schedule '%s': %v", c.RepublishSchedule, err))
		}
	}

	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}
	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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

// getEnvList reads a comma separated list, lower-casing and dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
