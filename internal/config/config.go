package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config holds application configuration values.
type Config struct {
	Secret         string
	HTTPPort       string
	DatabaseDriver string
	DatabaseDSN    string
	SeedPath       string
	LogLevel       string
	TxTimeout      time.Duration
	CORSOrigins    []string
}

// Load reads configuration from environment variables with reasonable defaults.
// The caller is expected to have loaded any .env file beforehand.
func Load() (Config, error) {
	cfg := Config{
		Secret:         getEnv("SECRET", "dev_secret"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", DriverSQLite),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		SeedPath:       os.Getenv("SEED_PATH"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		TxTimeout:      10 * time.Second,
		CORSOrigins:    []string{"*"},
	}

	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		return Config{}, fmt.Errorf("invalid HTTP_PORT value %q", cfg.HTTPPort)
	}

	switch cfg.DatabaseDriver {
	case DriverSQLite:
		if cfg.DatabaseDSN == "" {
			cfg.DatabaseDSN = "file:pharmacy.db"
		}
	case DriverPostgres:
		if cfg.DatabaseDSN == "" {
			return Config{}, fmt.Errorf("DATABASE_DSN is required for driver %q", DriverPostgres)
		}
	default:
		return Config{}, fmt.Errorf("invalid DATABASE_DRIVER value %q", cfg.DatabaseDriver)
	}

	if raw := os.Getenv("TX_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid TX_TIMEOUT value %q", raw)
		}
		cfg.TxTimeout = d
	}

	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
