package config

import (
    "context"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
    t.Helper()
    for k, v := range map[string]string{
        "APP_ENV": "test", "APP_PORT": "8080", "DB_USER": "app", "DB_HOST": "localhost",
        "DB_PORT": "3306", "DB_NAME": "showtimes", "JWT_SECRET": "secret",
    } {
        t.Setenv(k, v)
    }
}

func TestLoadDefaults(t *testing.T) {
    setRequired(t)
    cfg := Load()
    assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
    assert.Equal(t, 10*time.Minute, cfg.BookingTTL)
    assert.Equal(t, 30*time.Second, cfg.ExpirySweepInterval)
    assert.Equal(t, 8, cfg.MaxSeatsPerBooking)
    assert.True(t, cfg.ReleaseOnDisconnect)
    assert.Equal(t, "", cfg.WebhookToken)
    assert.False(t, cfg.IsProd())
}

func TestLoadOverrides(t *testing.T) {
    setRequired(t)
    t.Setenv("HOLD_TTL", "90s")
    t.Setenv("BOOKING_TTL", "-1m") // ignored, must be positive
    t.Setenv("RELEASE_ON_DISCONNECT", "off")
    t.Setenv("RABBITMQ_URL", "amqp://u:p@broker:5672/")
    t.Setenv("APP_ENV", "prod")
    cfg := Load()
    assert.Equal(t, 90*time.Second, cfg.HoldTTL)
    assert.Equal(t, 10*time.Minute, cfg.BookingTTL)
    assert.False(t, cfg.ReleaseOnDisconnect)
    assert.Equal(t, "amqp://u:p@broker:5672/", cfg.RabbitURL)
    assert.True(t, cfg.IsProd())
}

func TestLoadRateLimitConfig(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "10")
    t.Setenv("RATE_LIMIT_REFILL_TOKENS", "0")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")
    t.Setenv("RATE_LIMIT_ENABLED", "no")
    c := LoadRateLimitConfig()
    assert.False(t, c.Enabled)
    assert.Equal(t, 10, c.Capacity)
    assert.Equal(t, 1, c.RefillTokens)
    assert.Equal(t, 10*time.Second, c.TTL)
    assert.Equal(t, "user_route", c.KeyStrategy)

    t.Setenv("RATE_LIMIT_BURST", "50")
    assert.Equal(t, 50, LoadRateLimitConfig().Capacity)
}

func TestLoadCacheConfig(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head,,")
    t.Setenv("CACHE_TTL", "garbage")
    c := LoadCacheConfig()
    assert.True(t, c.Enabled)
    assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
    assert.Equal(t, 30*time.Second, c.TTL)
    assert.Equal(t, 1<<20, c.MaxBodyBytes)
}

func TestRedisClient(t *testing.T) {
    t.Setenv("REDIS_ADDR", "ignored:1")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("REDIS_DB", "2")
    rc := LoadRedisConfig()
    assert.Equal(t, "cache:6380", rc.Addr)
    assert.Equal(t, 2, rc.DB)
    assert.False(t, rc.TLS)

    mr := miniredis.RunT(t)
    client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr(), PoolSize: 4})
    require.NoError(t, err)
    defer client.Close()
    require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
    mr.CheckGet(t, "k", "v")

    _, err = NewRedisClient(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
    assert.Error(t, err)
}
