// Package config loads process settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/govalues/money"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config groups everything cmd/finapi needs to wire the service.
type Config struct {
	HTTP        HTTPConfig
	Log         LogConfig
	Ledger      LedgerConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	DevSeed     bool
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// LedgerConfig holds the currency every amount is expressed in and the zone
// used to truncate timestamps to statement days.
type LedgerConfig struct {
	Currency string
	Location *time.Location
}

// RedisConfig enables the Redis idempotency store when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
}

type IdempotencyConfig struct {
	TTL time.Duration
}

// Load reads .env (if present) and then the environment. Env vars win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	shutdown, err := getDuration(v, "SHUTDOWN_TIMEOUT")
	if err != nil {
		return nil, err
	}
	ttl, err := getDuration(v, "IDEMPOTENCY_TTL")
	if err != nil {
		return nil, err
	}

	curr, err := money.ParseCurr(strings.ToUpper(strings.TrimSpace(v.GetString("LEDGER_CURRENCY"))))
	if err != nil {
		return nil, fmt.Errorf("LEDGER_CURRENCY: %w", err)
	}
	loc, err := time.LoadLocation(strings.TrimSpace(v.GetString("LEDGER_TIMEZONE")))
	if err != nil {
		return nil, fmt.Errorf("LEDGER_TIMEZONE: %w", err)
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            v.GetString("HTTP_ADDR"),
			AllowedOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			ShutdownTimeout: shutdown,
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		},
		Ledger: LedgerConfig{
			Currency: curr.Code(),
			Location: loc,
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Idempotency: IdempotencyConfig{TTL: ttl},
		DevSeed:     isTruthy(v.GetString("DEV_SEED")),
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":3333")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LEDGER_CURRENCY", "BRL")
	v.SetDefault("LEDGER_TIMEZONE", "Local")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DEV_SEED", "false")
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
