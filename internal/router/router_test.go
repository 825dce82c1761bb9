package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/service"
	"github.com/iliyamo/cinema-ticketing/internal/utils"
)

const secret = "router-secret"

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	return newServerWithBooking(t, nil)
}

func newServerWithBooking(t *testing.T, booking echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	// Route registration never calls into the services.
	var (
		reservations *service.ReservationService
		showings     *service.ShowingService
		seats        *service.SeatService
	)
	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	RegisterRoutes(e, db)
	RegisterPublic(e, handler.NewPublicHandler(repository.NewShowingRepo(db), repository.NewSeatMapRepo(db)), nil)
	owner := handler.NewOwnerHandler(showings, seats, reservations)
	RegisterCustomer(e, handler.NewCustomerHandler(reservations, nil), secret, booking)
	RegisterOwner(e, owner, secret)
	RegisterOwnerReservations(e, owner, secret)
	return e
}

func TestRoutesRegistered(t *testing.T) {
	e := newServer(t)
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /v1/showings/:id/seat-map",
		"POST /v1/reservations",
		"GET /v1/reservations/:id",
		"POST /v1/reservations/:id/checkout",
		"POST /v1/reservations/:id/cancel",
		"DELETE /v1/reservations/:id",
		"GET /v1/my-reservations",
		"POST /v1/showings",
		"DELETE /v1/showings/:id",
		"GET /v1/showings/:id/reservations",
		"POST /v1/seats",
		"PATCH /v1/seats/:id",
		"PUT /v1/seats/:id",
		"DELETE /v1/seats/:id",
	} {
		if !have[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestRoutesEnforceRoles(t *testing.T) {
	e := newServer(t)
	customer, _ := utils.NewAccessToken(secret, 42, middleware.RoleCustomer, time.Minute)
	owner, _ := utils.NewAccessToken(secret, 500, middleware.RoleOwner, time.Minute)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"booking needs a token", http.MethodPost, "/v1/reservations", "", http.StatusUnauthorized},
		{"owners cannot book", http.MethodPost, "/v1/reservations", owner.Token, http.StatusForbidden},
		{"customers cannot create showings", http.MethodPost, "/v1/showings", customer.Token, http.StatusForbidden},
		{"customers cannot list showing bookings", http.MethodGet, "/v1/showings/7/reservations", customer.Token, http.StatusForbidden},
		{"bad id rejected before the service", http.MethodGet, "/v1/reservations/x", customer.Token, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBookingLimiterGuardsCreateOnly(t *testing.T) {
	calls := 0
	deny := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			calls++
			return c.NoContent(http.StatusTooManyRequests)
		}
	}
	e := newServerWithBooking(t, deny)
	customer, _ := utils.NewAccessToken(secret, 42, middleware.RoleCustomer, time.Minute)

	do := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+customer.Token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := do(http.MethodPost, "/v1/reservations"); code != http.StatusTooManyRequests || calls != 1 {
		t.Fatalf("create = %d after %d limiter call(s)", code, calls)
	}
	if code := do(http.MethodGet, "/v1/reservations/abc"); code != http.StatusBadRequest || calls != 1 {
		t.Errorf("get = %d; booking limiter ran %d time(s)", code, calls)
	}

	// Anonymous callers are rejected before the booking bucket is charged.
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || calls != 1 {
		t.Errorf("anonymous create = %d, limiter calls %d", rec.Code, calls)
	}
}
