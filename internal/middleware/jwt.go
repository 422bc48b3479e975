package middleware

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/donor-registry/internal/utils"
)

// AdminAuth validates the admin session token (Bearer header) and stores
// the session under "admin_session", the admin id under "user_id" and the
// role under "role".  now is injectable for tests; nil means time.Now.
func AdminAuth(secret string, now func() time.Time) echo.MiddlewareFunc {
    if now == nil {
        now = time.Now
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearerToken(c)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            sess, err := utils.ParseAdminSession(secret, raw, now())
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Admin session expired, please log in again"})
            }
            c.Set(adminSessionKey, sess)
            c.Set("user_id", sess.ID)
            c.Set("role", sess.Role)
            return next(c)
        }
    }
}

func bearerToken(c echo.Context) (string, bool) {
    auth := c.Request().Header.Get("Authorization")
    if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
        return "", false
    }
    raw := strings.TrimSpace(auth[7:])
    return raw, raw != ""
}
