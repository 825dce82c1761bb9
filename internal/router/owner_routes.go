package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
)

// RegisterOwner registers OWNER-scoped catalog writes under /v1.
// All routes require a valid JWT and OWNER role.
func RegisterOwner(e *echo.Echo, o *handler.OwnerHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	g := ownerGroup(e, jwtSecret, extra)

	// ---- Seats ----
	g.POST("/seats", o.CreateSeat)
	g.PUT("/seats/:id", o.UpdateSeat)
	g.PATCH("/seats/:id", o.UpdateSeat) // alias for clients that use PATCH
	g.DELETE("/seats/:id", o.DeleteSeat)

	// ---- Showings ----
	g.POST("/showings", o.CreateShowing)
	g.DELETE("/showings/:id", o.DeleteShowing)
}

func ownerGroup(e *echo.Echo, jwtSecret string, extra []echo.MiddlewareFunc) *echo.Group {
	mws := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleOwner),
	}
	return e.Group("/v1", append(mws, extra...)...)
}
