package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // locality timezones on hosts without zoneinfo

	"github.com/STRATINT/citypulse/internal/cloudsql"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Ingestion IngestionConfig
	Auth      AuthConfig
	Sources   []SourceConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig selects and locates the catalog store.
type DatabaseConfig struct {
	Driver     string // postgres, sqlite or memory
	URL        string
	SQLitePath string
}

// IngestionConfig controls the pipeline, its schedule and the lifecycle sweeps.
type IngestionConfig struct {
	Interval          time.Duration
	CutoffAge         time.Duration
	AgingWindow       time.Duration
	ActivityRetention time.Duration // zero keeps the activity log forever
	City              string
	Timezone          string
	Location          *time.Location
	Currency          string
	SourcePacing      time.Duration
	FetchTimeout      time.Duration
	FetchRetries      int
	MaintenanceTime   ClockTime
	SourcesFile       string
	ChromePath        string
	RunOnStart        bool
}

// AuthConfig holds the shared secret used to verify admin tokens.
type AuthConfig struct {
	JWTSecret string
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultSQLitePath = "citypulse.db"

	defaultScrapeInterval  = 60 * time.Minute
	defaultCutoffDays      = 30
	defaultStaleNewDays    = 7
	defaultActivityDays    = 90
	defaultCity            = "Sydney"
	defaultTimezone        = "Australia/Sydney"
	defaultCurrency        = "AUD"
	defaultSourcePacing    = 5 * time.Second
	defaultFetchTimeout    = 30 * time.Second
	defaultMaintenanceTime = "02:00"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	maintenance, _ := parseClock(defaultMaintenanceTime)

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:        os.Getenv("DATABASE_URL"),
			SQLitePath: getEnv("SQLITE_PATH", defaultSQLitePath),
		},
		Ingestion: IngestionConfig{
			Interval:          defaultScrapeInterval,
			CutoffAge:         days(defaultCutoffDays),
			AgingWindow:       days(defaultStaleNewDays),
			ActivityRetention: days(defaultActivityDays),
			City:              getEnv("TARGET_CITY", defaultCity),
			Timezone:          getEnv("TARGET_TIMEZONE", defaultTimezone),
			Currency:          getEnv("DEFAULT_CURRENCY", defaultCurrency),
			SourcePacing:      defaultSourcePacing,
			FetchTimeout:      defaultFetchTimeout,
			MaintenanceTime:   maintenance,
			SourcesFile:       os.Getenv("SOURCES_FILE"),
			ChromePath:        os.Getenv("CHROME_PATH"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if cfg.Database.URL == "" {
		if inst, ok := cloudsql.FromEnv(); ok {
			dsn, err := inst.DSN()
			if err != nil {
				return Config{}, fmt.Errorf("invalid Cloud SQL settings: %w", err)
			}
			cfg.Database.URL = dsn
		}
	}

	driver, err := resolveDriver(os.Getenv("STORE_DRIVER"), cfg.Database.URL)
	if err != nil {
		return Config{}, fmt.Errorf("invalid STORE_DRIVER: %w", err)
	}
	cfg.Database.Driver = driver

	if v := os.Getenv("SCRAPE_INTERVAL_MINUTES"); v != "" {
		minutes, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPE_INTERVAL_MINUTES: %w", err)
		}
		cfg.Ingestion.Interval = time.Duration(minutes) * time.Minute
	}

	if v := os.Getenv("EVENT_CUTOFF_DAYS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EVENT_CUTOFF_DAYS: %w", err)
		}
		cfg.Ingestion.CutoffAge = days(n)
	}

	if v := os.Getenv("STALE_NEW_DAYS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STALE_NEW_DAYS: %w", err)
		}
		cfg.Ingestion.AgingWindow = days(n)
	}

	if v := os.Getenv("SOURCE_PACING_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SOURCE_PACING_SECONDS: %w", err)
		}
		cfg.Ingestion.SourcePacing = d
	}

	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil || d == 0 {
			return Config{}, fmt.Errorf("invalid FETCH_TIMEOUT_SECONDS: must be a positive integer")
		}
		cfg.Ingestion.FetchTimeout = d
	}

	if v := os.Getenv("FETCH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid FETCH_RETRIES: must be a non-negative integer")
		}
		cfg.Ingestion.FetchRetries = n
	}

	if v := os.Getenv("ACTIVITY_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid ACTIVITY_RETENTION_DAYS: must be a non-negative integer")
		}
		cfg.Ingestion.ActivityRetention = days(n)
	}

	if v := os.Getenv("SCRAPE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPE_ON_START: %w", err)
		}
		cfg.Ingestion.RunOnStart = b
	}

	if v := os.Getenv("MAINTENANCE_TIME"); v != "" {
		clock, err := parseClock(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MAINTENANCE_TIME: %w", err)
		}
		cfg.Ingestion.MaintenanceTime = clock
	}

	loc, err := time.LoadLocation(cfg.Ingestion.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TARGET_TIMEZONE: %w", err)
	}
	cfg.Ingestion.Location = loc

	if cfg.Ingestion.SourcesFile != "" {
		sources, err := LoadSources(cfg.Ingestion.SourcesFile)
		if err != nil {
			return Config{}, fmt.Errorf("load SOURCES_FILE: %w", err)
		}
		cfg.Sources = sources
	} else {
		cfg.Sources = DefaultSources()
	}

	return cfg, nil
}

func resolveDriver(raw, databaseURL string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		if databaseURL != "" {
			return DriverPostgres, nil
		}
		return DriverSQLite, nil
	case DriverPostgres, "postgresql":
		if databaseURL == "" {
			return "", fmt.Errorf("postgres requires DATABASE_URL or INSTANCE_CONNECTION_NAME")
		}
		return DriverPostgres, nil
	case DriverSQLite:
		return DriverSQLite, nil
	case DriverMemory:
		return DriverMemory, nil
	default:
		return "", fmt.Errorf("must be one of postgres, sqlite, memory")
	}
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func parseClock(raw string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return ClockTime{}, fmt.Errorf("must be HH:MM")
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
