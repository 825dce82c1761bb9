// Package apperr defines the booking error taxonomy.  Every error that
// leaves the service layer is an *AppError carrying a stable machine code
// and the HTTP status the boundary layer should answer with.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeSeatAlreadyReserved     Code = "SEAT_ALREADY_RESERVED"
	CodeInvalidReservationType  Code = "INVALID_RESERVATION_TYPE"
	CodeUnauthorizedBooking     Code = "UNAUTHORIZED_BOOKING"
	CodeReservationExpired      Code = "RESERVATION_EXPIRED"
	CodeInvalidReservationState Code = "INVALID_RESERVATION_STATE"
	CodeSourceNotFound          Code = "SOURCE_NOT_FOUND"
	CodeInconsistentSourceData  Code = "INCONSISTENT_SOURCE_DATA"
	CodeReservationNotFound     Code = "RESERVATION_NOT_FOUND"
	CodeValidation              Code = "VALIDATION"
	CodeConflict                Code = "CONFLICT"
	CodeForbidden               Code = "FORBIDDEN"
	CodeInternal                Code = "INTERNAL"
	CodeRateLimited             Code = "RATE_LIMITED"
)

// AppError represents an application error with context.
type AppError struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Cause      error          `json:"-"`
	Fields     map[string]any `json:"fields,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithField attaches a structured detail returned to the client.
func (e *AppError) WithField(key string, value any) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// ToJSON converts the error to the response body shape.
func (e *AppError) ToJSON() map[string]any {
	body := map[string]any{
		"error":   e.Message,
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	return body
}

func newErr(code Code, status int, msg string) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: status}
}

// SeatAlreadyReserved reports that at least one requested seat is no longer
// available. The caller must pick seats again.
func SeatAlreadyReserved(seatMapIDs []uint64) *AppError {
	e := newErr(CodeSeatAlreadyReserved, http.StatusConflict, "seat no longer available")
	if len(seatMapIDs) > 0 {
		e.WithField("seat_map_ids", seatMapIDs)
	}
	return e
}

// CapacityExhausted is the general-admission flavour of SeatAlreadyReserved.
func CapacityExhausted(requested uint32) *AppError {
	return newErr(CodeSeatAlreadyReserved, http.StatusConflict, "not enough general admission places left").
		WithField("requested", requested)
}

func InvalidReservationType(msg string) *AppError {
	return newErr(CodeInvalidReservationType, http.StatusBadRequest, msg)
}

func UnauthorizedBooking() *AppError {
	return newErr(CodeUnauthorizedBooking, http.StatusForbidden, "reservation belongs to another user")
}

func ReservationExpired() *AppError {
	return newErr(CodeReservationExpired, http.StatusGone, "reservation hold has expired")
}

// InvalidReservationState names the transition that was attempted.
func InvalidReservationState(from, to string) *AppError {
	return newErr(CodeInvalidReservationState, http.StatusConflict,
		fmt.Sprintf("cannot move reservation from %s to %s", from, to)).
		WithField("from", from).WithField("to", to)
}

// NotBookable rejects a booking for a showing that is inactive or not
// SCHEDULED/RUNNING.
func NotBookable(status string) *AppError {
	return newErr(CodeInvalidReservationState, http.StatusConflict, "showing is not open for booking").
		WithField("showing_status", status)
}

func SourceNotFound(what string) *AppError {
	return newErr(CodeSourceNotFound, http.StatusNotFound, what+" not found")
}

// InconsistentSourceData marks catalog data that failed snapshot validation.
// It is a server fault.
func InconsistentSourceData(cause error) *AppError {
	return newErr(CodeInconsistentSourceData, http.StatusInternalServerError, "catalog data failed snapshot validation").
		WithCause(cause)
}

func ReservationNotFound() *AppError {
	return newErr(CodeReservationNotFound, http.StatusNotFound, "reservation not found")
}

func Validation(msg string) *AppError {
	return newErr(CodeValidation, http.StatusBadRequest, msg)
}

func Conflict(msg string) *AppError {
	return newErr(CodeConflict, http.StatusConflict, msg)
}

func Forbidden(msg string) *AppError {
	return newErr(CodeForbidden, http.StatusForbidden, msg)
}

// RateLimited reports an exhausted request budget; the client may retry
// after retryAfter seconds.
func RateLimited(retryAfter int) *AppError {
	return newErr(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded").WithField("retry_after", retryAfter)
}

func Internal(msg string, cause error) *AppError {
	return newErr(CodeInternal, http.StatusInternalServerError, msg).WithCause(cause)
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

// HTTPStatus maps any error to a status code, defaulting to 500.
func HTTPStatus(err error) int {
	if ae, ok := As(err); ok && ae.HTTPStatus != 0 {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}
