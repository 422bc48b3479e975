package router

// This file registers the admin dashboard routes.  Login is the only
// unauthenticated admin endpoint; everything else needs an admin session
// token issued by it.

import (
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/donor-registry/internal/handler"
    "github.com/iliyamo/donor-registry/internal/middleware"
)

// RegisterAdmin mounts the admin API under /v1/admin.  now is the clock
// used to check session expiry.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, d *handler.AdminDonorHandler, ct *handler.ContentHandler, secret string, now func() time.Time, authLimit echo.MiddlewareFunc) {
    e.POST("/v1/admin/login", a.Login, authLimit)

    g := e.Group(
        "/v1/admin",
        middleware.AdminAuth(secret, now),
        middleware.RequireRole("admin"),
    )
    g.GET("/session", a.Session)
    g.POST("/logout", a.Logout)
    g.GET("/stats", a.Stats)

    // ---- Donors ----
    g.GET("/donors", d.List)
    g.POST("/donors", d.Create)
    g.GET("/donors/:id", d.Get)
    g.PUT("/donors/:id", d.Update)
    g.PATCH("/donors/:id", d.Update) // alias for clients that use PATCH
    g.DELETE("/donors/:id", d.Delete)
    g.POST("/donors/:id/picture", d.UploadPicture)
    g.POST("/donors/:id/donations", d.RecordDonation)

    // ---- Content ----
    g.PUT("/content/hero", ct.SaveHero)
    g.PUT("/content/guidelines", ct.SaveGuidelines)

    // ---- Feed ----
    g.GET("/notifications", a.ListNotifications)
    g.PATCH("/notifications/:id/read", a.MarkNotificationRead)
    g.GET("/blood-requests", a.BloodRequests)
}
