package config

import "time"

// RateLimitConfig configures the Redis token bucket placed in front of the
// hold and booking endpoints.  Seat pickers click quickly, so the default
// bucket is generous and keyed per user and route.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // bucket size; RATE_LIMIT_BURST overrides
    RefillTokens   int           // tokens added every RefillInterval
    RefillInterval time.Duration
    TTL            time.Duration // idle buckets expire after this
    KeyStrategy    string        // ip, user, route, ip_route, user_route or all
    Prefix         string
    Debug          bool // echo the bucket key in X-RateLimit-Key
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.
func LoadRateLimitConfig() RateLimitConfig {
    c := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_BURST", envInt("RATE_LIMIT_CAPACITY", 120)),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 2),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    return c.normalized()
}

// normalized clamps values the limiter script cannot work with.  Buckets
// must outlive a few refill intervals or they reset to full capacity.
func (c RateLimitConfig) normalized() RateLimitConfig {
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    if min := 5 * c.RefillInterval; c.TTL < min {
        c.TTL = min
    }
    return c
}
