package middleware

import (
	"context"
	"strings"

	"github.com/arzan03/natours/internal/models"
	"github.com/gofiber/fiber/v2"
)

const (
	// TokenCookie carries the token for browser clients
	TokenCookie = "jwt"

	userKey = "user"
)

// Authenticator resolves the principal for a raw token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Protect requires a valid token, from the Authorization header or the jwt cookie,
// and stores the principal for later handlers
func Protect(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.Authenticate(c.UserContext(), tokenFrom(c))
		if err != nil {
			return err
		}
		c.Locals(userKey, user)
		return c.Next()
	}
}

// CurrentUser returns the principal set by Protect, or nil
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}

func tokenFrom(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie := c.Cookies(TokenCookie); cookie != "" && cookie != LoggedOutCookie {
		return cookie
	}
	return ""
}

// LoggedOutCookie replaces the token on logout
const LoggedOutCookie = "loggedout"
