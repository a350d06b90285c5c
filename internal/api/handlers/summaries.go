package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/dmytrogajewski/ett-summary/internal/models"
	"github.com/dmytrogajewski/ett-summary/internal/services"
	"github.com/dmytrogajewski/ett-summary/internal/transcription"
)

// SummaryService is the part of the session manager the handlers use
type SummaryService interface {
	HandleTranscript(ctx context.Context, systemKey, text string) (models.SummaryState, error)
	Summary(systemKey string) (models.SummaryState, error)
	Summaries() []models.SummaryState
}

// SummaryResponse is returned by every endpoint that reports a summary
type SummaryResponse struct {
	SystemKey      string     `json:"system_key"`
	Summary        string     `json:"summary"`
	Version        int64      `json:"version"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	Transcription  string     `json:"transcription,omitempty"`
}

type SummaryHandler struct {
	summaries   SummaryService
	transcriber transcription.Transcriber
	logger      *logrus.Logger
}

func NewSummaryHandler(summaries SummaryService, transcriber transcription.Transcriber, logger *logrus.Logger) *SummaryHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SummaryHandler{
		summaries:   summaries,
		transcriber: transcriber,
		logger:      logger,
	}
}

// Upload handles POST /upload with multipart fields system_key and file
func (h *SummaryHandler) Upload(c *fiber.Ctx) error {
	systemKey := strings.TrimSpace(c.FormValue("system_key"))
	if systemKey == "" {
		return fiber.NewError(fiber.StatusBadRequest, "system_key is required")
	}

	// Reject unknown systems before paying for transcription
	if _, err := h.summaries.Summary(systemKey); err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	file, err := header.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to read uploaded file")
	}
	defer file.Close()

	text, err := h.transcriber.Transcribe(c.UserContext(), header.Filename, file)
	if err != nil {
		h.logger.WithError(err).WithField("system", systemKey).Warn("Transcription failed")
		return err
	}

	state, err := h.summaries.HandleTranscript(c.UserContext(), systemKey, text)
	if err != nil {
		return err
	}

	resp := toResponse(state)
	resp.Transcription = text
	return c.JSON(resp)
}

// PostTranscript handles POST /api/v1/systems/:key/transcripts
func (h *SummaryHandler) PostTranscript(c *fiber.Ctx) error {
	systemKey := c.Params("key")

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.summaries.HandleTranscript(c.UserContext(), systemKey, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(toResponse(state))
}

// GetSummary handles GET /api/v1/systems/:key/summary
func (h *SummaryHandler) GetSummary(c *fiber.Ctx) error {
	state, err := h.summaries.Summary(c.Params("key"))
	if errors.Is(err, services.ErrUnknownSystem) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(toResponse(state))
}

// ListSystems handles GET /api/v1/systems
func (h *SummaryHandler) ListSystems(c *fiber.Ctx) error {
	states := h.summaries.Summaries()
	systems := make([]SummaryResponse, 0, len(states))
	for _, s := range states {
		systems = append(systems, toResponse(s))
	}
	return c.JSON(fiber.Map{
		"systems": systems,
		"count":   len(systems),
	})
}

func toResponse(s models.SummaryState) SummaryResponse {
	resp := SummaryResponse{
		SystemKey: s.SystemKey,
		Summary:   s.SummaryText,
		Version:   s.Version,
	}
	if !s.LastActivityAt.IsZero() {
		t := s.LastActivityAt
		resp.LastActivityAt = &t
	}
	return resp
}
