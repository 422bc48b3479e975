package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/donor-registry/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/donor-registry/internal/middleware" // import middleware for sessions, caching and metrics
)

// RegisterRoutes registers the operational endpoints: the health check used
// by load balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, backendConfigured func() bool, m *middleware.Metrics) {
	e.GET("/healthz", handler.Health(backendConfigured))
	if m != nil {
		e.GET("/metrics", m.Handler())
	}
}

// RegisterAuth registers the donor account routes.  Sign up and sign in go
// through authLimit, the tighter rate limit bucket; /v1/me needs a donor
// access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, users middleware.UserResolver, authLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, authLimit)
	g.POST("/login", a.Login, authLimit)
	g.POST("/refresh", a.Refresh)
	// logout revokes the bearer token itself, so no session middleware here
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.UserAuth(users))
}

// RegisterPublic registers unauthenticated endpoints: the donor directory,
// the eligibility calculator, landing page content and blood requests.
// Directory and content responses are cached in Redis under their group so
// writes can invalidate them.
func RegisterPublic(e *echo.Echo, d *handler.DonorHandler, ct *handler.ContentHandler, br *handler.BloodRequestHandler, cache *middleware.Cache) {
	donors := cache.Middleware(middleware.CacheGroupDonors)
	e.GET("/v1/donors", d.List, donors)
	e.GET("/v1/donors/:id", d.Get, donors)
	e.GET("/v1/eligibility", d.Eligibility)

	content := cache.Middleware(middleware.CacheGroupContent)
	e.GET("/v1/content/hero", ct.GetHero, content)
	e.GET("/v1/content/guidelines", ct.GetGuidelines, content)

	e.GET("/v1/blood-requests", br.Open)
	e.POST("/v1/blood-requests", br.Create)
}
