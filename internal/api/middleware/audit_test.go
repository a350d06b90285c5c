package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestAudit(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	app := fiber.New()
	app.Post("/systems/:key/transcripts", IngestAudit(logger), func(c *fiber.Ctx) error {
		if c.Params("key") == "broken" {
			return fiber.NewError(fiber.StatusBadGateway, "provider down")
		}
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("POST", "/systems/payments/transcripts", strings.NewReader(`{}`))
	req.Header.Set(RequestIDHeader, "req-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.Header.Get(RequestIDHeader))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "payments", entry.Data["system"])
	assert.Equal(t, "req-1", entry.Data["request_id"])

	resp, err = app.Test(httptest.NewRequest("POST", "/systems/broken/transcripts", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
