package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/ticket-booking-core/internal/handler"
	"github.com/iliyamo/ticket-booking-core/internal/middleware"
	"github.com/iliyamo/ticket-booking-core/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, deps map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health(deps))
}

// RegisterAuth registers the authentication routes.  Register, login and
// refresh need no session; logout accepts either a refresh token or a
// bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.AccessVerifier) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalJWT(v))
	g.GET("/sessions", a.Sessions, middleware.JWTAuth(v))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(v))
}

// RegisterBookings registers the seat map and booking routes.  limit, when
// non-nil, throttles the public seat map.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, v middleware.AccessVerifier, limit echo.MiddlewareFunc) {
	var seatMW []echo.MiddlewareFunc
	if limit != nil {
		seatMW = append(seatMW, limit)
	}
	e.GET("/v1/events/:id/seats", b.ListSeats, seatMW...)

	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(v))
	g.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	g.POST("/events/:id/bookings", b.Create)
	g.GET("/bookings/:reference", b.Get)
	g.DELETE("/bookings/:reference", b.Cancel)
}
