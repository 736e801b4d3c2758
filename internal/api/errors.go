package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"storefront-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// respondError maps domain errors to status codes. Unclassified errors are
// logged and reported without detail.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, entity.ErrItemNotFound),
		errors.Is(err, entity.ErrOrderNotFound),
		errors.Is(err, entity.ErrCustomerNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, entity.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, entity.ErrDuplicateRequest),
		errors.Is(err, entity.ErrDuplicateCustomer),
		errors.Is(err, entity.ErrOutOfStock):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, entity.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	logger.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// bindAndValidate binds the JSON body into out and validates it, writing a
// 400 on failure. ok is false when the handler should return.
func bindAndValidate(c echo.Context, out interface{}) (ok bool, err error) {
	if err := c.Bind(out); err != nil {
		return false, c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}
	if err := c.Validate(out); err != nil {
		return false, c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
	}
	return true, nil
}

type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New()}
}

func (r *requestValidator) Validate(i interface{}) error {
	return r.v.Struct(i)
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Namespace()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
