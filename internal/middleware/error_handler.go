package middleware

import (
	"fmt"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler writes every error as the JSON error envelope.
// Outside production the cause and field details are included; in production
// unexpected errors only ever return the generic 500 message.
func ErrorHandler(production bool, log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		ae := apperr.Normalize(err)

		if !ae.IsOperational() {
			log.Error("Unexpected error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Any("request_id", c.Locals("requestid")),
				zap.Error(err),
			)
		}

		body := fiber.Map{"status": ae.Status(), "message": ae.Message}
		if len(ae.Details) > 0 {
			body["details"] = ae.Details
		}
		if !production {
			body["code"] = ae.Code
			body["error"] = err.Error()
			if !ae.IsOperational() {
				body["message"] = err.Error()
			}
		}
		return c.Status(ae.StatusCode).JSON(body)
	}
}

// NotFound is mounted last and catches every unknown route
func NotFound(c *fiber.Ctx) error {
	return apperr.NotFound(fmt.Sprintf("Can't find %s on this server!", c.OriginalURL()))
}
