package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"    // showtime handlers
	"github.com/iliyamo/showtime-booking/internal/middleware" // JWT + role middlewares
)

// RegisterOwner registers OWNER-scoped endpoints under /v1.
// All routes require a valid JWT and OWNER role.
func RegisterOwner(e *echo.Echo, s *handler.ShowtimeHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleOwner),
	)

	// ---- Rooms ----
	g.POST("/rooms", s.CreateRoom)

	// ---- Showtimes ----
	// Seats are generated from the room layout at creation time.
	g.POST("/showtimes", s.CreateShowtime)
}
