package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/services"
	"github.com/dmytrogajewski/ett-summary/internal/transcription"
)

// NewApp creates the fiber application with the shared middleware
func NewApp(cfg config.ServerConfig, log *logrus.Logger) *fiber.App {
	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 25
	}

	app := fiber.New(fiber.Config{
		AppName:               "summaryd",
		ErrorHandler:          ErrorHandler(log),
		BodyLimit:             bodyLimit * 1024 * 1024,
		DisableStartupMessage: true,
		// Params and form values outlive the handler as map keys.
		Immutable: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: log.Writer(),
	}))

	return app
}

// StatusFor maps service errors to HTTP status codes
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var transcriptionErr *transcription.TranscriptionError
	var summarizationErr *services.SummarizationError
	var persistenceErr *services.PersistenceError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, services.ErrUnknownSystem):
		return fiber.StatusBadRequest
	case errors.As(err, &transcriptionErr):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &summarizationErr):
		return fiber.StatusBadGateway
	case errors.As(err, &persistenceErr):
		return fiber.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every handler error as {"error", "code"}
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusFor(err)
		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
				"status": code,
			}).Error("Request failed")
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
			"code":  code,
		})
	}
}
