package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
    t.Setenv("ADMIN_JWT_SECRET", "s3cret")
    t.Setenv("BACKEND_URL", "")
    t.Setenv("BACKEND_ANON_KEY", "")
    t.Setenv("DATA_DRIVER", "")

    c := Load()
    assert.Equal(t, DriverREST, c.DataDriver)
    assert.Equal(t, 24*time.Hour, c.AdminSessionTTL)
    assert.Equal(t, 5, c.AdminMaxAttempts)
    assert.Equal(t, "profile-pictures", c.StorageBucket)
    assert.False(t, c.BackendConfigured())
}

func TestLoadOverrides(t *testing.T) {
    t.Setenv("ADMIN_JWT_SECRET", "s3cret")
    t.Setenv("BACKEND_URL", "https://proj.example.co")
    t.Setenv("BACKEND_ANON_KEY", "anon")
    t.Setenv("ADMIN_SESSION_TTL", "2h")
    t.Setenv("ADMIN_MAX_LOGIN_ATTEMPTS", "3")
    t.Setenv("EVENTS_ENABLED", "yes")

    c := Load()
    assert.True(t, c.BackendConfigured())
    assert.Equal(t, 2*time.Hour, c.AdminSessionTTL)
    assert.Equal(t, 3, c.AdminMaxAttempts)
    assert.True(t, c.EventsEnabled)
}

func TestRateLimitConfig(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    c := LoadRateLimitConfig()
    assert.Equal(t, 1, c.Capacity)
    assert.GreaterOrEqual(t, c.TTL, 5*c.AuthRefillInterval)

    a := c.Auth()
    assert.Equal(t, c.AuthCapacity, a.Capacity)
    assert.Equal(t, "donors-rl:auth", a.Prefix)
}

func TestEnvHelpers(t *testing.T) {
    t.Setenv("X_BOOL", "off")
    t.Setenv("X_INT", "nope")
    t.Setenv("X_DUR", "90s")
    assert.False(t, envBool("X_BOOL", true))
    assert.Equal(t, 7, envInt("X_INT", 7))
    assert.Equal(t, 90*time.Second, envDur("X_DUR", time.Second))
    assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, parseMethods("get, head,"))
}

func TestDevelopment(t *testing.T) {
    assert.True(t, Config{Env: "development"}.Development())
    assert.False(t, Config{Env: "production"}.Development())
}
