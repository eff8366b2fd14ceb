package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"
)

// RegisterRoutes registers routes that need no authentication: the health
// check and the payment provider webhook, which authenticates with its own
// shared token.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, payments *handler.PaymentHandler) {
	e.GET("/healthz", health.Health)
	e.POST("/v1/payments/webhook", payments.Webhook)
}

// RegisterPublic registers unauthenticated browse endpoints.  Room layouts
// change rarely and go through the response cache; seat maps change with
// every hold and are always read live.
func RegisterPublic(e *echo.Echo, s *handler.ShowtimeHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/rooms/:id", s.GetRoom, cache)
	e.GET("/v1/showtimes/:id/seats", s.SeatMap)
}
