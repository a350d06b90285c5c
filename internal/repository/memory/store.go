package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmytrogajewski/ett-summary/internal/models"
	"github.com/dmytrogajewski/ett-summary/internal/repository"
)

// Store is a volatile SummaryRepository kept in a process local map. It is
// safe for concurrent access and suited to tests or ephemeral deployments.
// Values are copied in and out so callers never share state with the store.
type Store struct {
	mu     sync.RWMutex
	states map[string]models.SummaryState
}

var _ repository.SummaryRepository = (*Store)(nil)

// NewStore constructs an empty in-memory store
func NewStore() *Store {
	return &Store{states: make(map[string]models.SummaryState)}
}

func (s *Store) Load(_ context.Context, systemKey string) (*models.SummaryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[systemKey]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &state, nil
}

func (s *Store) Upsert(_ context.Context, state models.SummaryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.SystemKey] = state
	return nil
}

func (s *Store) Clear(_ context.Context, systemKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[systemKey]
	if !ok {
		return repository.ErrNotFound
	}
	state.SummaryText = ""
	s.states[systemKey] = state
	return nil
}

func (s *Store) ListAll(_ context.Context) ([]models.SummaryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]models.SummaryState, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].SystemKey < states[j].SystemKey })
	return states, nil
}

func (s *Store) Ensure(_ context.Context, systemKey string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[systemKey]; !ok {
		s.states[systemKey] = models.SummaryState{SystemKey: systemKey, LastActivityAt: now}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
