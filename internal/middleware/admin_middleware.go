package middleware

import (
	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/models"
	"github.com/gofiber/fiber/v2"
)

// RestrictTo lets only the given roles through; it must run after Protect
func RestrictTo(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return apperr.Unauthorized("You are not logged in! Please log in to get access.")
		}
		if !models.IsAllowed(user.Role, roles...) {
			return apperr.Forbidden("You do not have permission to perform this action")
		}
		return c.Next()
	}
}
