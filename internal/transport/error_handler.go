package transport

import (
	"errors"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler maps errors that escape a handler onto the API's uniform
// failure envelope. Validation and exhaustion are caller-visible conditions,
// not server faults.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrValidation):
			code = fiber.StatusBadRequest
		case errors.Is(err, domain.ErrExhausted):
			code = fiber.StatusBadRequest
		case errors.Is(err, domain.ErrNotFound):
			code = fiber.StatusNotFound
		default:
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
}
