package service

import (
    "sync"
    "time"
)

// LoginGuard counts failed admin logins per client key.  After
// MaxAttempts consecutive failures the key is locked for LockDuration;
// a successful login clears the counter.  State is per process.
type LoginGuard struct {
    MaxAttempts  int
    LockDuration time.Duration

    mu      sync.Mutex
    entries map[string]*guardEntry
}

type guardEntry struct {
    failures    int
    lockedUntil time.Time
    lastSeen    time.Time
}

func NewLoginGuard(maxAttempts int, lock time.Duration) *LoginGuard {
    if maxAttempts < 1 {
        maxAttempts = 5
    }
    if lock <= 0 {
        lock = 15 * time.Minute
    }
    return &LoginGuard{MaxAttempts: maxAttempts, LockDuration: lock, entries: map[string]*guardEntry{}}
}

// Locked reports whether key may not try now, and for how long.
func (g *LoginGuard) Locked(key string, now time.Time) (bool, time.Duration) {
    g.mu.Lock()
    defer g.mu.Unlock()
    e, ok := g.entries[key]
    if !ok || !now.Before(e.lockedUntil) {
        return false, 0
    }
    return true, e.lockedUntil.Sub(now)
}

// Fail records a failed attempt and returns the attempts left before the
// lock, 0 when the key just got locked.
func (g *LoginGuard) Fail(key string, now time.Time) int {
    g.mu.Lock()
    defer g.mu.Unlock()
    g.sweep(now)
    e, ok := g.entries[key]
    if !ok {
        e = &guardEntry{}
        g.entries[key] = e
    }
    if !e.lockedUntil.IsZero() && !now.Before(e.lockedUntil) {
        // lock expired: start a fresh round
        e.failures = 0
        e.lockedUntil = time.Time{}
    }
    e.failures++
    e.lastSeen = now
    if e.failures >= g.MaxAttempts {
        e.lockedUntil = now.Add(g.LockDuration)
        return 0
    }
    return g.MaxAttempts - e.failures
}

// Succeed forgets key.
func (g *LoginGuard) Succeed(key string) {
    g.mu.Lock()
    delete(g.entries, key)
    g.mu.Unlock()
}

// sweep drops idle, unlocked entries so the map does not grow without bound.
func (g *LoginGuard) sweep(now time.Time) {
    if len(g.entries) < 1024 {
        return
    }
    for k, e := range g.entries {
        if !now.Before(e.lockedUntil) && now.Sub(e.lastSeen) > g.LockDuration {
            delete(g.entries, k)
        }
    }
}
