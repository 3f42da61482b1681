package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 10, cfg.Catalog.DefaultPageSize)
	assert.Equal(t, 100, cfg.Catalog.MaxPageSize)
	assert.Equal(t, "256", cfg.Profile.DefaultCountryCode)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, time.Minute, cfg.RateLimit.AdjustStockWindow)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")
	t.Setenv("RATE_LIMIT_BACKEND", "MEMORY")
	t.Setenv("RATE_LIMIT_ADJUST_STOCK_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_ADJUST_STOCK_WINDOW", "10s")
	t.Setenv("CATALOG_MAX_PAGE_SIZE", "50")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load()

	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 5, cfg.RateLimit.AdjustStockRequests)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.AdjustStockWindow)
	assert.Equal(t, 50, cfg.Catalog.MaxPageSize)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}
