package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmytrogajewski/ett-summary/internal/metrics"
	"github.com/dmytrogajewski/ett-summary/internal/models"
	"github.com/dmytrogajewski/ett-summary/internal/providers"
	"github.com/dmytrogajewski/ett-summary/internal/repository"
	"github.com/dmytrogajewski/ett-summary/internal/systems"
)

// Notifier receives committed summary events. Calls happen off the request
// path and never affect the stored state.
type Notifier interface {
	Notify(ctx context.Context, event models.SummaryEvent)
}

// SessionManagerConfig holds the dependencies of a SessionManager
type SessionManagerConfig struct {
	Registry  *systems.Registry
	Store     repository.SummaryRepository
	Provider  providers.Provider
	Model     string
	Notifiers []Notifier
	Logger    *logrus.Logger
	Metrics   *metrics.Collector
	// Now defaults to time.Now
	Now func() time.Time
}

// SessionManager owns the running summary of every system. Updates for one
// system are serialized; different systems proceed concurrently.
type SessionManager struct {
	registry  *systems.Registry
	store     repository.SummaryRepository
	provider  providers.Provider
	model     string
	notifiers []Notifier
	logger    *logrus.Logger
	metrics   *metrics.Collector
	now       func() time.Time
	locks     *keyLocks

	mu     sync.RWMutex
	states map[string]models.SummaryState

	notifyMu sync.Mutex
	tails    map[string]chan struct{}
	inflight sync.WaitGroup
}

// NewSessionManager creates a session manager. Call Rehydrate before
// serving requests.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if cfg.Registry == nil {
		return nil, errors.New("session manager: registry is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("session manager: store is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("session manager: provider is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &SessionManager{
		registry:  cfg.Registry,
		store:     cfg.Store,
		provider:  cfg.Provider,
		model:     cfg.Model,
		notifiers: cfg.Notifiers,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		locks:     newKeyLocks(cfg.Registry.Keys()),
		states:    make(map[string]models.SummaryState),
		tails:     make(map[string]chan struct{}),
	}, nil
}

// AddNotifier registers a notifier. It must be called before serving.
func (m *SessionManager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Rehydrate seeds a record for every configured system and loads the stored
// states into memory. Records of systems no longer configured are ignored.
func (m *SessionManager) Rehydrate(ctx context.Context) error {
	now := m.now()
	for _, key := range m.registry.Keys() {
		if err := m.store.Ensure(ctx, key, now); err != nil {
			return &PersistenceError{SystemKey: key, Op: "seed", Err: err}
		}
	}

	states, err := m.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load summary states: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, s := range states {
		if !m.registry.Has(s.SystemKey) {
			m.logger.WithField("system", s.SystemKey).Warn("Ignoring stored state of unconfigured system")
			continue
		}
		m.states[s.SystemKey] = s
		loaded++
	}

	m.logger.WithField("systems", loaded).Info("Summary states rehydrated")
	return nil
}

// HandleTranscript folds one transcript into the running summary of a system
// and returns the committed state. Whitespace-only text changes nothing.
func (m *SessionManager) HandleTranscript(ctx context.Context, systemKey, text string) (models.SummaryState, error) {
	sys, ok := m.registry.Get(systemKey)
	if !ok {
		return models.SummaryState{}, unknownSystem(systemKey)
	}
	// The caller's string may alias a reused request buffer; map keys must not.
	systemKey = sys.Key

	text = strings.TrimSpace(text)
	if text == "" {
		return m.snapshot(systemKey), nil
	}

	unlock, err := m.locks.Lock(ctx, systemKey)
	if err != nil {
		return models.SummaryState{}, err
	}
	defer unlock()

	current := m.snapshot(systemKey)
	prompt := sys.BuildPrompt(current.SummaryText, text)

	log := m.logger.WithFields(logrus.Fields{
		"system":  systemKey,
		"version": current.Version,
	})

	start := time.Now()
	result, err := m.provider.Complete(ctx, prompt, m.model)
	m.metrics.RecordProviderCall(systemKey, err == nil, time.Since(start))
	if err != nil {
		log.WithError(err).Warn("Summarization failed, keeping previous summary")
		return models.SummaryState{}, &SummarizationError{SystemKey: systemKey, Err: err}
	}

	next := current
	next.SummaryText = result
	next.LastActivityAt = m.now()
	next.Version++

	if err := m.store.Upsert(ctx, next); err != nil {
		log.WithError(err).Error("Failed to persist summary")
		return models.SummaryState{}, &PersistenceError{SystemKey: systemKey, Op: "upsert", Err: err}
	}

	m.mu.Lock()
	m.states[systemKey] = next
	m.mu.Unlock()

	log.WithField("version", next.Version).Info("Summary updated")
	m.publish(models.SummaryEvent{Type: models.SummaryUpdated, State: next})

	return next, nil
}

// Summary returns a copy of the current state of a system
func (m *SessionManager) Summary(systemKey string) (models.SummaryState, error) {
	if !m.registry.Has(systemKey) {
		return models.SummaryState{}, unknownSystem(systemKey)
	}
	return m.snapshot(systemKey), nil
}

// Summaries returns copies of all states ordered by system key
func (m *SessionManager) Summaries() []models.SummaryState {
	keys := m.registry.Keys()
	out := make([]models.SummaryState, 0, len(keys))
	for _, key := range keys {
		out = append(out, m.snapshot(key))
	}
	return out
}

// ClearIfIdle clears the summary of a system that has been idle for longer
// than threshold. A system with an update in flight is skipped and reported
// as not cleared.
func (m *SessionManager) ClearIfIdle(ctx context.Context, systemKey string, threshold time.Duration) (bool, error) {
	sys, ok := m.registry.Get(systemKey)
	if !ok {
		return false, unknownSystem(systemKey)
	}
	systemKey = sys.Key

	unlock, ok := m.locks.TryLock(systemKey)
	if !ok {
		m.logger.WithField("system", systemKey).Debug("Update in flight, skipping clear")
		return false, nil
	}
	defer unlock()

	// The state may have changed between the scan and the lock
	current := m.snapshot(systemKey)
	if current.Empty() || current.IdleFor(m.now()) <= threshold {
		return false, nil
	}

	if err := m.store.Clear(ctx, systemKey); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, &PersistenceError{SystemKey: systemKey, Op: "clear", Err: err}
	}

	next := current
	next.SummaryText = ""

	m.mu.Lock()
	m.states[systemKey] = next
	m.mu.Unlock()

	m.metrics.RecordClear(systemKey)
	m.logger.WithFields(logrus.Fields{
		"system": systemKey,
		"idle":   current.IdleFor(m.now()).Round(time.Second),
	}).Info("Summary cleared after inactivity")
	m.publish(models.SummaryEvent{Type: models.SummaryCleared, State: next})

	return true, nil
}

// Shutdown waits for in-flight notifications to finish or ctx to end
func (m *SessionManager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SessionManager) snapshot(systemKey string) models.SummaryState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.states[systemKey]; ok {
		return s
	}
	return models.SummaryState{SystemKey: systemKey}
}

// publish hands the event to every notifier in the background. Events of one
// system are delivered in commit order; callers hold the key lock.
func (m *SessionManager) publish(event models.SummaryEvent) {
	if len(m.notifiers) == 0 {
		return
	}

	key := event.State.SystemKey
	done := make(chan struct{})

	m.notifyMu.Lock()
	prev := m.tails[key]
	m.tails[key] = done
	m.notifyMu.Unlock()

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer close(done)

		if prev != nil {
			<-prev
		}
		for _, n := range m.notifiers {
			n.Notify(context.Background(), event)
		}
	}()
}
