package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmytrogajewski/ett-summary/internal/metrics"
)

type StatusHandler struct {
	service   string
	version   string
	systems   int
	metrics   *metrics.Collector
	startedAt time.Time
}

func NewStatusHandler(service, version string, systems int, collector *metrics.Collector) *StatusHandler {
	return &StatusHandler{
		service:   service,
		version:   version,
		systems:   systems,
		metrics:   collector,
		startedAt: time.Now(),
	}
}

// Health handles GET /api/v1/health
func (h *StatusHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "healthy",
		"service":        h.service,
		"version":        h.version,
		"systems":        h.systems,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Metrics handles GET /api/v1/metrics
func (h *StatusHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
