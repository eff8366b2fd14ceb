package config

// Redis backs the seat hold store as well as distributed rate limiting and
// the response cache.  When it cannot be reached at startup the caller
// decides whether to degrade (in-memory holds, no cache, no rate limiting)
// or refuse to start.

import (
    "context"
    "crypto/tls"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig holds the client settings read from REDIS_* variables.
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    PoolSize int
    TLS      bool
}

// LoadRedisConfig reads REDIS_HOST and REDIS_PORT (or the REDIS_ADDR
// shorthand), REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE and REDIS_TLS.
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = host + ":" + port
    }
    return RedisConfig{
        Addr:     addr,
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
        PoolSize: envInt("REDIS_POOL_SIZE", 100),
        TLS:      envBool("REDIS_TLS", false),
    }
}

// NewRedisClient connects and pings within ctx.  On failure the client is
// closed and an error returned.
func NewRedisClient(ctx context.Context, rc RedisConfig) (*redis.Client, error) {
    opts := &redis.Options{
        Addr:         rc.Addr,
        Password:     rc.Password,
        DB:           rc.DB,
        PoolSize:     rc.PoolSize,
        MinIdleConns: 10,
        DialTimeout:  5 * time.Second,
        ReadTimeout:  3 * time.Second,
        WriteTimeout: 3 * time.Second,
    }
    if rc.TLS {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(opts)

    pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(pingCtx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("ping redis %s: %w", rc.Addr, err)
    }
    return client, nil
}
