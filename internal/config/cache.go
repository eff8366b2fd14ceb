package config

import "time"

// CacheConfig defines settings for the response cache middleware.  The
// cache only fronts slow-changing reads such as room layouts; seat maps and
// bookings are never cached because hold state changes by the second.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool // upper-case HTTP methods eligible for caching
    TTL          time.Duration
    KeyStrategy  string // route, method_route, method_route_query or route_query
    Prefix       string
    MaxBodyBytes int // larger responses are served but not stored
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    c := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      envSet("CACHE_METHODS", "GET"),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
    if c.TTL <= 0 {
        c.TTL = 30 * time.Second
    }
    return c
}
