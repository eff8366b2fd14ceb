package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// CustomerHandlers groups the handlers behind customer endpoints.
type CustomerHandlers struct {
	Holds    *handler.HoldHandler
	Bookings *handler.BookingHandler
	WS       *handler.WSHandler
}

// RegisterCustomer registers endpoints under /v1 that require a valid JWT.
// Both roles may hold seats and book.  Hold and booking writes share the
// rate limiter; the websocket and reads do not.
func RegisterCustomer(e *echo.Echo, h CustomerHandlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleOwner),
	)
	g.GET("/ws/showtimes/:id", h.WS.Serve)

	g.POST("/showtimes/:id/holds", h.Holds.Acquire, limiter)
	g.DELETE("/showtimes/:id/holds/:seat", h.Holds.Release, limiter)

	g.POST("/bookings", h.Bookings.Create, limiter)
	g.GET("/bookings/:id", h.Bookings.Get)
	g.DELETE("/bookings/:id", h.Bookings.Cancel)
	g.GET("/my-bookings", h.Bookings.List)
}
