package middleware

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/iliyamo/donor-registry/internal/backend"
)

// UserResolver resolves a backend access token to its account.
type UserResolver interface {
    GetUser(ctx context.Context, accessToken string) (*backend.User, error)
}

// UserAuth authenticates donors with their backend access token.  On
// success the account is stored under "user", its id under "user_id", and
// the request context carries the token so row calls run as that user.
func UserAuth(users UserResolver) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearerToken(c)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            req := c.Request()
            u, err := users.GetUser(req.Context(), raw)
            if err != nil {
                var apiErr *backend.APIError
                switch {
                case errors.Is(err, backend.ErrNotConfigured):
                    return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Failed to verify session: " + err.Error()})
                case errors.As(err, &apiErr) && apiErr.Status < 500:
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Session expired, please log in again"})
                default:
                    zerolog.Ctx(req.Context()).Error().Err(err).Msg("resolve user session")
                    return c.JSON(http.StatusBadGateway, echo.Map{"error": "Failed to verify session: " + err.Error()})
                }
            }
            c.Set(userKey, u)
            c.Set("user_id", u.ID)
            c.Set("role", "donor")
            c.SetRequest(req.WithContext(backend.WithAccessToken(req.Context(), raw)))
            return next(c)
        }
    }
}
