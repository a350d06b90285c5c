package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dmytrogajewski/ett-summary/internal/models"
)

// ErrNotFound is returned when no state exists for a system key
var ErrNotFound = errors.New("summary state not found")

// SummaryRepository defines durable per-system summary storage. Every
// operation is atomic for a single record.
type SummaryRepository interface {
	// Load returns the stored state or ErrNotFound
	Load(ctx context.Context, systemKey string) (*models.SummaryState, error)

	// Upsert writes the full record, last writer wins
	Upsert(ctx context.Context, state models.SummaryState) error

	// Clear empties the summary text and leaves activity time and version
	// untouched. Returns ErrNotFound for unknown keys.
	Clear(ctx context.Context, systemKey string) error

	// ListAll returns every stored record
	ListAll(ctx context.Context) ([]models.SummaryState, error)

	// Ensure creates an empty record when none exists yet
	Ensure(ctx context.Context, systemKey string, now time.Time) error

	Close() error
}
