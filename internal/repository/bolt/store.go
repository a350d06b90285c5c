package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dmytrogajewski/ett-summary/internal/models"
	"github.com/dmytrogajewski/ett-summary/internal/repository"
)

const bucketSummaries = "summaries"

// Store persists summary state in a BoltDB file, one key per system
type Store struct {
	db *bolt.DB
}

var _ repository.SummaryRepository = (*Store)(nil)

// stateEntry is the on-disk record
type stateEntry struct {
	Summary      string    `json:"summary"`
	LastReceived time.Time `json:"last_received"`
	Version      int64     `json:"version"`
}

// NewStore opens (or creates) the database file at path
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open summary store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSummaries))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(_ context.Context, systemKey string) (*models.SummaryState, error) {
	var state *models.SummaryState
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketSummaries)).Get([]byte(systemKey))
		if data == nil {
			return repository.ErrNotFound
		}

		decoded, err := decodeState(systemKey, data)
		if err != nil {
			return err
		}
		state = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) Upsert(_ context.Context, state models.SummaryState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putState(tx.Bucket([]byte(bucketSummaries)), state)
	})
}

func (s *Store) Clear(_ context.Context, systemKey string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketSummaries))
		data := bucket.Get([]byte(systemKey))
		if data == nil {
			return repository.ErrNotFound
		}

		state, err := decodeState(systemKey, data)
		if err != nil {
			return err
		}
		state.SummaryText = ""
		return putState(bucket, state)
	})
}

func (s *Store) ListAll(_ context.Context) ([]models.SummaryState, error) {
	var states []models.SummaryState
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSummaries)).ForEach(func(k, v []byte) error {
			state, err := decodeState(string(k), v)
			if err != nil {
				return err
			}
			states = append(states, state)
			return nil
		})
	})
	return states, err
}

func (s *Store) Ensure(_ context.Context, systemKey string, now time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketSummaries))
		if bucket.Get([]byte(systemKey)) != nil {
			return nil
		}
		return putState(bucket, models.SummaryState{SystemKey: systemKey, LastActivityAt: now})
	})
}

func putState(bucket *bolt.Bucket, state models.SummaryState) error {
	data, err := json.Marshal(stateEntry{
		Summary:      state.SummaryText,
		LastReceived: state.LastActivityAt,
		Version:      state.Version,
	})
	if err != nil {
		return err
	}
	return bucket.Put([]byte(state.SystemKey), data)
}

func decodeState(systemKey string, data []byte) (models.SummaryState, error) {
	var entry stateEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.SummaryState{}, fmt.Errorf("corrupt record for %s: %w", systemKey, err)
	}
	return models.SummaryState{
		SystemKey:      systemKey,
		SummaryText:    entry.Summary,
		LastActivityAt: entry.LastReceived,
		Version:        entry.Version,
	}, nil
}
