package handler // handler defines the HTTP handlers of the booking API

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
)

// getUserID extracts the user_id set by JWTAuth and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return id, nil
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// respondError writes err as a coded JSON body.  Anything that is not an
// AppError is reported as an internal error without leaking its text.
func respondError(c echo.Context, err error) error {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal("internal error", err)
	}
	if ae.HTTPStatus >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), ae)
	}
	return c.JSON(ae.HTTPStatus, ae.ToJSON())
}

// RequestValidator plugs validator/v10 into echo's c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator returns a validator using `validate` struct tags.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.  Failures come back as VALIDATION
// errors naming the first offending field.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var fe validator.ValidationErrors
	if errors.As(err, &fe) && len(fe) > 0 {
		return apperr.Validation("invalid " + fe[0].Field()).WithField("rule", fe[0].Tag())
	}
	return apperr.Validation(err.Error())
}

// bindAndValidate decodes the JSON body into dst and runs its validate tags.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Validation(err.Error())
	}
	return nil
}
