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

// Backends accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Policies accepted by INGEST_POLICY.
const (
	IngestSkip  = "skip"
	IngestAbort = "abort"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Storage
	DataBackend     string
	SQLiteDBPath    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	SeedDataDir     string
	SeedSampleData  bool

	// AMQP (optional; empty URL disables events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	AMQPPrefetch int

	// Export
	ExportPath     string
	ExportSchedule string
	ExportDebounce time.Duration
	// ExportSampleFallback writes the sample respondents when nothing is
	// stored.
	ExportSampleFallback bool

	// Google Sheets export sink (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	SummaryCacheTTL time.Duration
	IngestPolicy    string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:     getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/survey.db"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017/"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "survey_db"),
		MongoCollection: getEnv("MONGO_COLLECTION", "participant_data"),
		SeedDataDir:     getEnv("SEED_DATA_DIR", "./data"),
		SeedSampleData:  getEnvBool("SEED_SAMPLE_DATA", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "survey"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "survey_responses"),
		AMQPPrefetch: getEnvInt("AMQP_PREFETCH", 10),

		ExportPath:     getEnv("EXPORT_PATH", "./data/financial_survey_data.csv"),
		ExportSchedule: getEnv("EXPORT_SCHEDULE", ""),
		ExportDebounce: getEnvDuration("EXPORT_DEBOUNCE", 2*time.Second),

		ExportSampleFallback: getEnvBool("EXPORT_SAMPLE_FALLBACK", false),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Responses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SummaryCacheTTL: getEnvDuration("SUMMARY_CACHE_TTL", 30*time.Second),
		IngestPolicy:    strings.ToLower(getEnv("INGEST_POLICY", IngestSkip)),
	}
}

func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendMongo}
	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendMongo:
		if u, err := url.Parse(c.MongoURI); err != nil || c.MongoURI == "" {
			errs = append(errs, fmt.Sprintf("invalid MongoDB URI '%s'", c.MongoURI))
		} else if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
			errs = append(errs, fmt.Sprintf("invalid MongoDB URI scheme '%s': must be 'mongodb' or 'mongodb+srv'", u.Scheme))
		}
		if c.MongoDatabase == "" || c.MongoCollection == "" {
			errs = append(errs, "MongoDB database and collection names are required when using mongo backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPPrefetch < 1 || c.AMQPPrefetch > 1000 {
			errs = append(errs, fmt.Sprintf("invalid AMQP prefetch %d: must be between 1 and 1000", c.AMQPPrefetch))
		}
	}

	if c.ExportPath == "" {
		errs = append(errs, "export path cannot be empty")
	} else if dir := filepath.Dir(c.ExportPath); dir != "." {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errs = append(errs, fmt.Sprintf("export directory '%s' is not a directory", dir))
		}
	}
	if c.ExportSchedule != "" {
		if _, err := cron.ParseStandard(c.ExportSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("invalid export schedule '%s': %v", c.ExportSchedule, err))
		}
	}
	if c.ExportDebounce < 0 {
		errs = append(errs, fmt.Sprintf("invalid export debounce %v: must not be negative", c.ExportDebounce))
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errs = append(errs, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SummaryCacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}

	if c.IngestPolicy != IngestSkip && c.IngestPolicy != IngestAbort {
		errs = append(errs, fmt.Sprintf("invalid ingest policy '%s': must be '%s' or '%s'", c.IngestPolicy, IngestSkip, IngestAbort))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// GoogleCredentials returns the service account JSON, reading the file when
// no inline JSON is configured.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if c.GoogleServiceAccountJSON != "" {
		return []byte(c.GoogleServiceAccountJSON), nil
	}
	if c.GoogleServiceAccountFile == "" {
		return nil, fmt.Errorf("no Google service account configured")
	}
	b, err := os.ReadFile(c.GoogleServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
