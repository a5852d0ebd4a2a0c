package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/vault-be/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/vault")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("JWT_TTL_MINUTES", "")
	t.Setenv("DEFAULT_STRATEGIES", "")
	t.Setenv("LEADERBOARD_LIMIT", "")
	t.Setenv("HISTORY_WORKER_INTERVAL", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("COOKIE_SECURE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 60*time.Minute, cfg.JWTTTL)
	assert.Equal(t, models.DefaultStrategies, cfg.Strategies)
	assert.Equal(t, 100, cfg.LeaderboardLimit)
	assert.Equal(t, time.Hour, cfg.HistoryWorkerInterval)
	assert.Equal(t, "secret", cfg.SessionSecret)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.CookieSecure)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_TTL_MINUTES", "15")
	t.Setenv("DEFAULT_STRATEGIES", " xsgd, lp ,,")
	t.Setenv("LEADERBOARD_LIMIT", "10")
	t.Setenv("HISTORY_WORKER_INTERVAL", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
	assert.Equal(t, []string{"xsgd", "lp"}, cfg.Strategies)
	assert.Equal(t, 10, cfg.LeaderboardLimit)
	assert.Equal(t, 5*time.Minute, cfg.HistoryWorkerInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL_MINUTES", "-3")
	t.Setenv("LEADERBOARD_LIMIT", "lots")
	t.Setenv("HISTORY_WORKER_INTERVAL", "often")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 100, cfg.LeaderboardLimit)
	assert.Equal(t, time.Hour, cfg.HistoryWorkerInterval)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		dbURL  string
		secret string
	}{
		{"postgres without url", "postgres", "", "secret"},
		{"missing secret", "memory", "", ""},
		{"unknown driver", "sqlite", "x", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", tt.driver)
			t.Setenv("DATABASE_URL", tt.dbURL)
			t.Setenv("JWT_SECRET", tt.secret)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
