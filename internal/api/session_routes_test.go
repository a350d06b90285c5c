package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmytrogajewski/ett-summary/internal/api/handlers"
	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/metrics"
	"github.com/dmytrogajewski/ett-summary/internal/repository/memory"
	"github.com/dmytrogajewski/ett-summary/internal/services"
	"github.com/dmytrogajewski/ett-summary/internal/systems"
)

// countingProvider answers with the number of calls made so far
type countingProvider struct {
	calls int
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Complete(_ context.Context, _, _ string) (string, error) {
	p.calls++
	return fmt.Sprintf("summary #%d", p.calls), nil
}

func newManagerApp(t *testing.T, keys ...string) (*fiber.App, *services.SessionManager) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()

	cfgs := make([]config.SystemConfig, 0, len(keys))
	for _, k := range keys {
		cfgs = append(cfgs, config.SystemConfig{
			Key:           k,
			InitialPrompt: "Summarize: {transcription}",
			UpdatePrompt:  "{summary} + {transcription}",
		})
	}
	registry, err := systems.NewRegistry(cfgs)
	require.NoError(t, err)

	manager, err := services.NewSessionManager(services.SessionManagerConfig{
		Registry: registry,
		Store:    memory.NewStore(),
		Provider: &countingProvider{},
		Model:    "test-model",
		Logger:   logger,
	})
	require.NoError(t, err)
	require.NoError(t, manager.Rehydrate(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	app := NewApp(config.ServerConfig{BodyLimitMB: 1}, logger)
	SetupRoutes(app, Routes{
		Summaries: handlers.NewSummaryHandler(manager, &stubTranscriber{}, logger),
		Status:    handlers.NewStatusHandler("summaryd", "test", len(keys), metrics.NewCollector()),
		Hub:       NewHub(logger),
		Logger:    logger,
	})
	return app, manager
}

func postTranscript(t *testing.T, app *fiber.App, key, text string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/systems/"+key+"/transcripts",
		strings.NewReader(`{"text":"`+text+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestTranscriptRoute_StateSurvivesLaterRequests(t *testing.T) {
	app, manager := newManagerApp(t, "payments", "search")

	versions := map[string]int64{}
	steps := []struct {
		key  string
		code int
	}{
		{key: "payments", code: fiber.StatusOK},
		{key: "search", code: fiber.StatusOK},
		{key: "XXXXXXXX", code: fiber.StatusBadRequest},
		{key: "payments", code: fiber.StatusOK},
		{key: "XXXXXXXX", code: fiber.StatusBadRequest},
		{key: "search", code: fiber.StatusOK},
		{key: "payments", code: fiber.StatusOK},
	}

	for i, step := range steps {
		require.Equal(t, step.code, postTranscript(t, app, step.key, fmt.Sprintf("event %d", i)), "step %d", i)
		if step.code == fiber.StatusOK {
			versions[step.key]++
		}
		for _, key := range []string{"payments", "search"} {
			state, err := manager.Summary(key)
			require.NoError(t, err)
			assert.Equal(t, versions[key], state.Version, "step %d system %s", i, key)
			assert.Equal(t, key, state.SystemKey)
		}
	}

	for i := 0; i < 20; i++ {
		postTranscript(t, app, "XXXXXXXX", "noise")
	}

	state, err := manager.Summary("payments")
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.Version)
	assert.NotEmpty(t, state.SummaryText)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/systems/payments/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(3), decode(t, resp)["version"])
}
