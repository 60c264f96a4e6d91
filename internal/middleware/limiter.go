package middleware

import (
	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit caps requests per client IP over a sliding window
func RateLimit(cfg config.RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               cfg.Max,
		Expiration:        cfg.Window,
		LimiterMiddleware: limiter.SlidingWindow{},
		LimitReached: func(*fiber.Ctx) error {
			return apperr.TooManyRequests("Too many requests from this IP, please try again in an hour!")
		},
	})
}
