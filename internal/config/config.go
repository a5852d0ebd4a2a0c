package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hongminglow/vault-be/internal/models"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port                  string
	StoreDriver           string
	DatabaseURL           string
	JWTSecret             string
	JWTIssuer             string
	JWTTTL                time.Duration
	SessionSecret         string
	CookieSecure          bool
	CORSOrigins           []string
	AdminAPIKey           string
	Strategies            []string
	LeaderboardLimit      int
	HistoryWorkerInterval time.Duration
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:                  fallback(os.Getenv("PORT"), "8080"),
		StoreDriver:           strings.ToLower(fallback(os.Getenv("STORE_DRIVER"), DriverPostgres)),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:             strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:             fallback(os.Getenv("JWT_ISSUER"), "vault-backend"),
		JWTTTL:                time.Duration(positiveInt("JWT_TTL_MINUTES", 60)) * time.Minute,
		SessionSecret:         strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		CookieSecure:          boolean("COOKIE_SECURE", false),
		CORSOrigins:           parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*"), []string{"*"}),
		AdminAPIKey:           strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
		Strategies:            parseCSV(os.Getenv("DEFAULT_STRATEGIES"), models.DefaultStrategies),
		LeaderboardLimit:      positiveInt("LEADERBOARD_LIMIT", 100),
		HistoryWorkerInterval: duration("HISTORY_WORKER_INTERVAL", time.Hour),
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = cfg.JWTSecret
	}
	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set; admin endpoints are disabled")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func parseCSV(input string, def []string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}
