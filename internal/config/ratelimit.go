package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig parameterizes the Redis token bucket.  Capacity tokens
// are available at once and RefillTokens come back every RefillInterval.
// The auth endpoints get their own, tighter bucket (AuthCapacity and
// AuthRefillInterval) because they are the brute-force target.
type RateLimitConfig struct {
    Enabled            bool
    Capacity           int
    RefillTokens       int
    RefillInterval     time.Duration
    AuthCapacity       int
    AuthRefillInterval time.Duration
    TTL                time.Duration
    KeyStrategy        string // "ip", "ip_route" or "ip_user_route"
    Prefix             string
    Debug              bool
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:            envBool("RATE_LIMIT_ENABLED", true),
        Capacity:           envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:       envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval:     envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        AuthCapacity:       envInt("RATE_LIMIT_AUTH_CAPACITY", 10),
        AuthRefillInterval: envDur("RATE_LIMIT_AUTH_REFILL_INTERVAL", 6*time.Second),
        TTL:                envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:        envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
        Prefix:             envStr("RATE_LIMIT_PREFIX", "donors-rl"),
        Debug:              envBool("RATE_LIMIT_DEBUG", false),
    }
    if def.Capacity < 1 {
        def.Capacity = 1
    }
    if def.AuthCapacity < 1 {
        def.AuthCapacity = 1
    }
    if def.RefillTokens < 1 {
        def.RefillTokens = 1
    }
    if def.RefillInterval <= 0 {
        def.RefillInterval = time.Second
    }
    if def.AuthRefillInterval <= 0 {
        def.AuthRefillInterval = def.RefillInterval
    }
    slowest := def.RefillInterval
    if def.AuthRefillInterval > slowest {
        slowest = def.AuthRefillInterval
    }
    if minTTL := 5 * slowest; def.TTL < minTTL {
        def.TTL = minTTL
    }
    return def
}

// Auth returns a copy tuned for the login and register endpoints.
func (c RateLimitConfig) Auth() RateLimitConfig {
    c.Capacity = c.AuthCapacity
    c.RefillTokens = 1
    c.RefillInterval = c.AuthRefillInterval
    c.Prefix += ":auth"
    return c
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch os.Getenv(k) {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}
