package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/pc-reservation/internal/timegrid"
)

// Storage backends selectable through RESERVATION_STORAGE.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// DefaultRetentionSchedule runs the stale reservation sweep shortly after local midnight.
const DefaultRetentionSchedule = "5 0 * * *"

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort          int
	Storage           string
	SQLiteDSN         string
	PostgresDSN       string
	TimeZone          string
	Location          *time.Location
	RetentionSchedule string
	SeedComputers     bool
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields and reports every missing or
// invalid entry in a single localized error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          8080,
		Storage:           StorageSQLite,
		SQLiteDSN:         "file:reservations.db",
		TimeZone:          "Asia/Tokyo",
		RetentionSchedule: DefaultRetentionSchedule,
		SeedComputers:     true,
		LogLevel:          "info",
		LogFormat:         "json",
		ShutdownTimeout:   10 * time.Second,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("RESERVATION_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "RESERVATION_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if storage := strings.ToLower(strings.TrimSpace(os.Getenv("RESERVATION_STORAGE"))); storage != "" {
		switch storage {
		case StorageSQLite, StoragePostgres, StorageMemory:
			cfg.Storage = storage
		default:
			invalid = append(invalid, "RESERVATION_STORAGE")
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("RESERVATION_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("RESERVATION_POSTGRES_DSN"))
	if cfg.Storage == StoragePostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "RESERVATION_POSTGRES_DSN")
	}

	if tz := strings.TrimSpace(os.Getenv("RESERVATION_TIMEZONE")); tz != "" {
		cfg.TimeZone = tz
	}
	loc, err := timegrid.LoadLocation(cfg.TimeZone)
	if err != nil {
		invalid = append(invalid, "RESERVATION_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	// An explicitly empty schedule disables the sweep.
	if schedule, ok := os.LookupEnv("RESERVATION_RETENTION_SCHEDULE"); ok {
		schedule = strings.TrimSpace(schedule)
		if schedule != "" {
			if _, err := cron.ParseStandard(schedule); err != nil {
				invalid = append(invalid, "RESERVATION_RETENTION_SCHEDULE")
			}
		}
		cfg.RetentionSchedule = schedule
	}

	if seedValue := strings.TrimSpace(os.Getenv("RESERVATION_SEED_COMPUTERS")); seedValue != "" {
		seed, err := strconv.ParseBool(seedValue)
		if err != nil {
			invalid = append(invalid, "RESERVATION_SEED_COMPUTERS")
		} else {
			cfg.SeedComputers = seed
		}
	}

	if level := strings.ToLower(strings.TrimSpace(os.Getenv("RESERVATION_LOG_LEVEL"))); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			invalid = append(invalid, "RESERVATION_LOG_LEVEL")
		}
	}

	if format := strings.ToLower(strings.TrimSpace(os.Getenv("RESERVATION_LOG_FORMAT"))); format != "" {
		switch format {
		case "json", "text":
			cfg.LogFormat = format
		default:
			invalid = append(invalid, "RESERVATION_LOG_FORMAT")
		}
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("RESERVATION_SHUTDOWN_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "RESERVATION_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
