package services

import (
	"context"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/metrics"
	"github.com/dmytrogajewski/ett-summary/internal/models"
	"github.com/dmytrogajewski/ett-summary/internal/repository"
	"github.com/dmytrogajewski/ett-summary/internal/systems"
)

const (
	initialPrompt = "Summarize this transcription: {transcription}"
	updatePrompt  = "Here is text summary:\n{summary}\nPlease update this summary with new information from this transcription:\n{transcription}"
)

// fakeProvider echoes the prompt unless respond is set
type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
	respond func(ctx context.Context, prompt string) (string, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, prompt, model string) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	respond := p.respond
	p.mu.Unlock()

	if respond == nil {
		return prompt, nil
	}
	return respond(ctx, prompt)
}

func (p *fakeProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.SummaryEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event models.SummaryEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []models.SummaryEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.SummaryEvent(nil), n.events...)
}

// failingStore rejects writes while fail is set
type failingStore struct {
	repository.SummaryRepository
	mu   sync.Mutex
	fail error
}

func (s *failingStore) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *failingStore) Upsert(ctx context.Context, state models.SummaryState) error {
	s.mu.Lock()
	err := s.fail
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.SummaryRepository.Upsert(ctx, state)
}

func newTestRegistry(t *testing.T, initial, update string, keys ...string) *systems.Registry {
	t.Helper()
	cfgs := make([]config.SystemConfig, 0, len(keys))
	for _, k := range keys {
		cfgs = append(cfgs, config.SystemConfig{Key: k, InitialPrompt: initial, UpdatePrompt: update})
	}
	registry, err := systems.NewRegistry(cfgs)
	require.NoError(t, err)
	return registry
}

type testEnv struct {
	manager  *SessionManager
	provider *fakeProvider
	store    repository.SummaryRepository
	clock    *fakeClock
	notifier *recordingNotifier
	metrics  *metrics.Collector
}

func newTestEnv(t *testing.T, registry *systems.Registry, store repository.SummaryRepository) *testEnv {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	env := &testEnv{
		provider: &fakeProvider{},
		store:    store,
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		metrics:  metrics.NewCollector(),
	}

	manager, err := NewSessionManager(SessionManagerConfig{
		Registry:  registry,
		Store:     store,
		Provider:  env.provider,
		Model:     "test-model",
		Notifiers: []Notifier{env.notifier},
		Logger:    logger,
		Metrics:   env.metrics,
		Now:       env.clock.Now,
	})
	require.NoError(t, err)
	require.NoError(t, manager.Rehydrate(context.Background()))
	env.manager = manager
	return env
}

func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.manager.Shutdown(ctx))
}
