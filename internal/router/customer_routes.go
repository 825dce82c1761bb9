package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All
// routes require a valid JWT and the CUSTOMER role; extra middleware (the
// shared rate limiter) runs after authentication so it can key on the
// user.  booking, when non-nil, guards reservation creation only.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string, booking echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer),
	}
	g := e.Group("/v1", append(mws, extra...)...)

	var create []echo.MiddlewareFunc
	if booking != nil {
		create = append(create, booking)
	}
	g.POST("/reservations", h.CreateReservation, create...)
	g.GET("/reservations/:id", h.GetReservation)
	g.POST("/reservations/:id/checkout", h.Checkout)
	g.POST("/reservations/:id/cancel", h.CancelReservation)
	g.DELETE("/reservations/:id", h.CancelReservation)
	g.GET("/my-reservations", h.ListMyReservations)
}
