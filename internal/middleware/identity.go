package middleware

// identity.go holds the context keys set by the auth middlewares and the
// accessors handlers use to read them back.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/donor-registry/internal/backend"
    "github.com/iliyamo/donor-registry/internal/model"
)

const (
    adminSessionKey = "admin_session"
    userKey         = "user"
)

// AdminSession returns the session stored by AdminAuth.
func AdminSession(c echo.Context) (model.AdminSession, bool) {
    s, ok := c.Get(adminSessionKey).(model.AdminSession)
    return s, ok
}

// CurrentUser returns the account stored by UserAuth.
func CurrentUser(c echo.Context) (*backend.User, bool) {
    u, ok := c.Get(userKey).(*backend.User)
    return u, ok && u != nil
}

// currentUserID returns the authenticated subject or "anon".
func currentUserID(c echo.Context) string {
    if s, ok := c.Get("user_id").(string); ok && s != "" {
        return s
    }
    return "anon"
}
