package services

import (
	"context"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmytrogajewski/ett-summary/internal/repository/memory"
)

func newTestReaper(env *testEnv, threshold, interval time.Duration) *InactivityReaper {
	logger, _ := logtest.NewNullLogger()
	return NewInactivityReaper(env.manager, env.store, threshold, interval, logger)
}

func TestScanOnce_ClearsOnlyIdleSystems(t *testing.T) {
	env := newTestEnv(t, newTestRegistry(t, initialPrompt, updatePrompt, "payments", "search", "billing"), memory.NewStore())
	ctx := context.Background()
	reaper := newTestReaper(env, time.Hour, time.Minute)

	_, err := env.manager.HandleTranscript(ctx, "payments", "server down")
	require.NoError(t, err)
	env.clock.Advance(30 * time.Minute)
	_, err = env.manager.HandleTranscript(ctx, "search", "index lag")
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)
	cleared, err := reaper.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"payments"}, cleared)

	payments, _ := env.manager.Summary("payments")
	search, _ := env.manager.Summary("search")
	assert.True(t, payments.Empty())
	assert.False(t, search.Empty())

	stored, err := env.store.Load(ctx, "payments")
	require.NoError(t, err)
	assert.Empty(t, stored.SummaryText)
	assert.Equal(t, int64(1), stored.Version)

	assert.Equal(t, int64(1), env.metrics.Snapshot().Clears["payments"])
}

// Scenario: a system goes quiet, is cleared, and the next transcript starts
// a fresh summary.
func TestScanOnce_NextTranscriptStartsFresh(t *testing.T) {
	env := newTestEnv(t, newTestRegistry(t, initialPrompt, updatePrompt, "payments"), memory.NewStore())
	ctx := context.Background()
	reaper := newTestReaper(env, time.Hour, time.Minute)

	_, err := env.manager.HandleTranscript(ctx, "payments", "Server down at 10am")
	require.NoError(t, err)
	_, err = env.manager.HandleTranscript(ctx, "payments", "Restored at 10:30")
	require.NoError(t, err)

	env.clock.Advance(61 * time.Minute)
	cleared, err := reaper.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"payments"}, cleared)

	state, err := env.manager.HandleTranscript(ctx, "payments", "Disk full on db-2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.Version)

	prompts := env.provider.Prompts()
	assert.Equal(t, "Summarize this transcription: Disk full on db-2", prompts[len(prompts)-1])
}

func TestScanOnce_SkipsEmptyAndBusySystems(t *testing.T) {
	env := newTestEnv(t, newTestRegistry(t, "{transcription}", "{summary}|{transcription}", "payments", "search"), memory.NewStore())
	ctx := context.Background()
	reaper := newTestReaper(env, time.Hour, time.Minute)

	_, err := env.manager.HandleTranscript(ctx, "payments", "a")
	require.NoError(t, err)
	env.clock.Advance(2 * time.Hour)

	unlock, ok := env.manager.locks.TryLock("payments")
	require.True(t, ok)

	cleared, err := reaper.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, cleared)

	unlock()
	cleared, err = reaper.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"payments"}, cleared)
}

func TestReaper_StartAndStop(t *testing.T) {
	env := newTestEnv(t, newTestRegistry(t, initialPrompt, updatePrompt, "payments"), memory.NewStore())
	ctx := context.Background()

	_, err := env.manager.HandleTranscript(ctx, "payments", "server down")
	require.NoError(t, err)
	env.clock.Advance(2 * time.Hour)

	reaper := newTestReaper(env, time.Hour, 5*time.Millisecond)
	reaper.Start(ctx)
	defer reaper.Stop()

	assert.Eventually(t, func() bool {
		state, _ := env.manager.Summary("payments")
		return state.Empty()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReaper_StopsOnContextCancel(t *testing.T) {
	env := newTestEnv(t, newTestRegistry(t, initialPrompt, updatePrompt, "payments"), memory.NewStore())
	ctx, cancel := context.WithCancel(context.Background())

	reaper := newTestReaper(env, time.Hour, time.Millisecond)
	reaper.Start(ctx)
	cancel()

	select {
	case <-reaper.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
	reaper.Stop()
}
