package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/handler"
)

// RegisterOwnerReservations lets owners list the bookings of showings in
// their theatres.  Kept apart from the catalog writes in RegisterOwner.
func RegisterOwnerReservations(e *echo.Echo, o *handler.OwnerHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	g := ownerGroup(e, jwtSecret, extra)
	g.GET("/showings/:id/reservations", o.ListShowingReservations)
}
