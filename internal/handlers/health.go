package handlers

import (
	"context"
	"time"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

// Health reports whether the database answers a ping
func Health(ping func(ctx context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			return apperr.Wrap(apperr.New("UNAVAILABLE", fiber.StatusServiceUnavailable, "Database unavailable"), err)
		}
		return c.JSON(fiber.Map{"status": "success", "time": time.Now().UTC()})
	}
}
