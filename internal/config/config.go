package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                   int
	NatsURL                string
	NatsToken              string
	DatabaseURL            string
	LogLevel               string
	APIToken               string
	DefaultFiscalYearStart time.Month
	CatalogTTL             time.Duration
	TurnTimeout            time.Duration
}

func Load() Config {
	return Config{
		Port:                   envInt("ANALYST_PORT", 8760),
		NatsURL:                envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:              envStr("NATS_TOKEN", ""),
		DatabaseURL:            envStr("DATABASE_URL", ""),
		LogLevel:               envStr("LOG_LEVEL", "info"),
		APIToken:               envStr("ANALYST_API_TOKEN", ""),
		DefaultFiscalYearStart: envMonth("DEFAULT_FISCAL_YEAR_START", time.January),
		CatalogTTL:             envDuration("CATALOG_TTL", 5*time.Minute),
		TurnTimeout:            envDuration("TURN_TIMEOUT", 30*time.Second),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envMonth(key string, fallback time.Month) time.Month {
	n := envInt(key, int(fallback))
	if n < 1 || n > 12 {
		return fallback
	}
	return time.Month(n)
}
