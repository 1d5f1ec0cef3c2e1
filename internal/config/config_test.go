package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadMemoryStore(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_STORE", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SEASON_YEAR", "2026")
	t.Setenv("SWEEP_INTERVAL", "30s")

	c := Load()
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "memory", c.Store)
	assert.Empty(t, c.DBHost)
	assert.Equal(t, 30*time.Second, c.SweepInterval)
	assert.Equal(t, time.Hour, c.AbandonedPaymentAge)
	assert.Equal(t, 2026, c.Season.Season)
	assert.Equal(t, int64(30), c.Season.FixedCostCents)
	assert.InDelta(t, 0.029, c.Season.PercentageRate, 1e-9)
	assert.False(t, c.IsProd())
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_ENABLED", "off")

	c := LoadCacheConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.Equal(t, 5*time.Second, c.TTL)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	o := RedisOptions()
	assert.Equal(t, "cache:6380", o.Addr)
	assert.Equal(t, 2, o.DB)
	assert.Nil(t, o.TLSConfig)
}
