package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/handler"
	"github.com/iliyamo/donor-registry/internal/middleware"
)

// RegisterProfile registers the self-service routes of a signed-in donor.
// UserAuth resolves the bearer token against the auth service and forwards
// it, so row access runs as that donor.
func RegisterProfile(e *echo.Echo, p *handler.ProfileHandler, users middleware.UserResolver) {
	g := e.Group("/v1/profile", middleware.UserAuth(users), middleware.RequireRole("donor"))
	g.GET("", p.Get)
	g.PUT("", p.Update)
	g.PATCH("", p.Update)
	g.DELETE("", p.Delete)
	g.POST("/picture", p.UploadPicture)
	g.POST("/donations", p.RecordDonation)
}
