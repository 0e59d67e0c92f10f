package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP; empty URL means evaluation runs in-process
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Identity provider tokens
	AuthJWTSecret string
	AuthJWTIssuer string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Achievements and alerts
	BudgetWarningPercent int
	NotificationTTL      time.Duration
	NotificationMaxUsers int
	EvaluationTimeout    time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tesoretto.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tesoretto"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "achievements_evaluate"),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		AuthJWTIssuer: getEnv("AUTH_JWT_ISSUER", ""),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Tesoretto"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		BudgetWarningPercent: getEnvInt("BUDGET_WARNING_PERCENT", 80),
		NotificationTTL:      getEnvDuration("NOTIFICATION_TTL", 10*time.Minute),
		NotificationMaxUsers: getEnvInt("NOTIFICATION_MAX_USERS", 1000),
		EvaluationTimeout:    getEnvDuration("EVALUATION_TIMEOUT", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration for the HTTP server.
func (c *Config) Validate() error {
	errs := c.storageErrors()

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.AMQPURL != "" {
		errs = append(errs, c.amqpErrors()...)
		if c.DataBackend == "memory" {
			errs = append(errs, "AMQP_URL requires the sqlite backend: no worker can evaluate against a memory backend")
		}
	}

	if len(c.AuthJWTSecret) < 16 {
		errs = append(errs, "AUTH_JWT_SECRET must be at least 16 characters")
	}

	if c.GoogleSpreadsheetID != "" {
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.BudgetWarningPercent < 1 || c.BudgetWarningPercent > 99 {
		errs = append(errs, fmt.Sprintf("invalid budget warning percent %d: must be between 1 and 99", c.BudgetWarningPercent))
	}
	if c.NotificationTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid notification TTL %v: must be at least 1 second", c.NotificationTTL))
	}
	if c.NotificationMaxUsers < 1 {
		errs = append(errs, fmt.Sprintf("invalid notification max users %d: must be at least 1", c.NotificationMaxUsers))
	}

	return combine(errs)
}

// ValidateWorker checks the configuration for the achievement worker, which
// needs a broker and a shared store.
func (c *Config) ValidateWorker() error {
	errs := c.storageErrors()
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required for the achievement worker")
	} else {
		errs = append(errs, c.amqpErrors()...)
	}
	if c.DataBackend == "memory" {
		errs = append(errs, "the achievement worker cannot share a memory backend; use sqlite")
	}
	if c.EvaluationTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid evaluation timeout %v: must be at least 1 second", c.EvaluationTimeout))
	}
	return combine(errs)
}

func (c *Config) storageErrors() []string {
	var errs []string
	validBackends := []string{"memory", "sqlite"}
	valid := false
	for _, b := range validBackends {
		if c.DataBackend == b {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	return errs
}

func (c *Config) amqpErrors() []string {
	var errs []string
	if parsed, err := url.Parse(c.AMQPURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
	}
	if c.AMQPExchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

func combine(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
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
