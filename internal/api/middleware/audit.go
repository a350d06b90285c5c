package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

// IngestAudit tags each transcript submission with a request id and logs
// its outcome per system
func IngestAudit(logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)
		c.Locals("request_id", requestID)

		startTime := time.Now()
		err := c.Next()

		systemKey := c.Params("key")
		if systemKey == "" {
			systemKey = c.FormValue("system_key")
		}

		// The error handler has not run yet, so the status comes from err
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
		}

		entry := logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"system":      systemKey,
			"path":        c.Path(),
			"status":      status,
			"duration_ms": time.Since(startTime).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Warn("Transcript rejected")
		} else {
			entry.Info("Transcript accepted")
		}

		return err
	}
}
