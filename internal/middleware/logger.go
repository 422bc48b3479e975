package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger assigns a request id (reusing a sane inbound X-Request-ID),
// attaches a child logger to the request context and writes one line per
// request.  Handlers fetch the logger with zerolog.Ctx.
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            rid := req.Header.Get(requestIDHeader)
            if _, err := uuid.Parse(rid); err != nil {
                rid = uuid.NewString()
            }
            c.Set("request_id", rid)
            c.Response().Header().Set(requestIDHeader, rid)

            l := base.With().Str("request_id", rid).Logger()
            c.SetRequest(req.WithContext(l.WithContext(req.Context())))

            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            status := c.Response().Status

            ev := l.Info()
            switch {
            case status >= 500:
                ev = l.Error()
            case status >= 400:
                ev = l.Warn()
            }
            ev.Str("method", req.Method).
                Str("route", c.Path()).
                Str("path", req.URL.Path).
                Int("status", status).
                Dur("latency", time.Since(start)).
                Str("ip", c.RealIP()).
                Err(err).
                Msg("request")
            return nil
        }
    }
}
