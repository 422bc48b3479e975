package handler // declare the package name; contains HTTP handlers

import (
    "net/http"          // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health returns the liveness endpoint used by load balancers and
// monitoring systems.  The service keeps serving when the hosted backend is
// not configured (public pages fall back to their defaults), so the body
// reports that state instead of failing the check.
func Health(backendConfigured func() bool) echo.HandlerFunc {
    return func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{ // always 200 while the process is up
            "status":             "ok",
            "backend_configured": backendConfigured(),
        })
    }
}
