package model

import "time"

// Admin is the identity returned by the verify_admin procedure.  Admin
// credentials live beside, not inside, the backend's user accounts.
type Admin struct {
    ID    string `json:"id"`
    Email string `json:"email"`
    Name  string `json:"name"`
    Role  string `json:"role"`
}

// AdminSession is what an admin holds after logging in.  It expires a
// fixed period (24h by default) after LoginAt.
type AdminSession struct {
    Admin
    LoginAt   time.Time `json:"login_at"`
    ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s AdminSession) Expired(now time.Time) bool {
    return !now.Before(s.ExpiresAt)
}
