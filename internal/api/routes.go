package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/dmytrogajewski/ett-summary/internal/api/handlers"
	"github.com/dmytrogajewski/ett-summary/internal/api/middleware"
)

// Routes bundles everything SetupRoutes mounts
type Routes struct {
	Summaries       *handlers.SummaryHandler
	Status          *handlers.StatusHandler
	Hub             *Hub
	UploadRateLimit int
	Logger          *logrus.Logger
}

// SetupRoutes configures all routes
func SetupRoutes(app *fiber.App, r Routes) {
	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	audit := middleware.IngestAudit(logger)
	ingestLimit := middleware.IngestRateLimit(r.UploadRateLimit, time.Minute)

	// Audio upload
	app.Post("/upload", audit, ingestLimit, r.Summaries.Upload)

	api := app.Group("/api/v1")

	api.Get("/health", r.Status.Health)
	api.Get("/metrics", r.Status.Metrics)

	// Systems and their summaries
	api.Get("/systems", r.Summaries.ListSystems)
	api.Get("/systems/:key/summary", r.Summaries.GetSummary)
	api.Post("/systems/:key/transcripts", audit, ingestLimit, r.Summaries.PostTranscript)

	// Live summary feed
	if r.Hub != nil {
		app.Use("/ws", r.Hub.Upgrade)
		app.Get("/ws/summaries", websocket.New(r.Hub.Serve))
	}
}
