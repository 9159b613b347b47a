package apiv1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ManuelReschke/ClipPass/internal/pkg/apperror"
	"github.com/ManuelReschke/ClipPass/internal/pkg/usercontext"
)

// ErrorHandler renders every error returned by a handler as the JSON error
// body. Unclassified errors are logged and reported as 500.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return c.Status(appErr.Status()).JSON(ErrorResponse{
				Error:   string(appErr.Kind),
				Message: appErr.Message,
				Fields:  appErr.Fields,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorResponse{
				Error:   errorCode(fe.Code),
				Message: fe.Message,
			})
		}

		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Interface("request_id", c.Locals(usercontext.KeyRequestID)).
			Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_server_error",
			Message: "Internal server error",
		})
	}
}

// errorCode turns a status code into the snake_case error code.
func errorCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
