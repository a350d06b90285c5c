package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// IngestRateLimit limits transcript submissions per system key. The key is
// taken from the :key route parameter or the system_key form field. A max of
// zero disables the limit.
func IngestRateLimit(max int, expiration time.Duration) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if key := c.Params("key"); key != "" {
				return fmt.Sprintf("ingest:system:%s", key)
			}
			if key := c.FormValue("system_key"); key != "" {
				return fmt.Sprintf("ingest:system:%s", key)
			}
			// Otherwise by IP
			return fmt.Sprintf("ingest:ip:%s", c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Ingest rate limit exceeded for this system. Please slow down.",
				"code":  fiber.StatusTooManyRequests,
			})
		},
	})
}
