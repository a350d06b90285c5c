package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dmytrogajewski/ett-summary/internal/models"
	"github.com/dmytrogajewski/ett-summary/internal/repository"
)

// summaryRepository implements repository.SummaryRepository on the state table
type summaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new PostgreSQL summary repository
func NewSummaryRepository(db *sqlx.DB) repository.SummaryRepository {
	return &summaryRepository{db: db}
}

// Load retrieves the state for a system
func (r *summaryRepository) Load(ctx context.Context, systemKey string) (*models.SummaryState, error) {
	query := `
		SELECT system_key, summary, last_received, version
		FROM state
		WHERE system_key = $1
	`

	var state models.SummaryState
	err := r.db.GetContext(ctx, &state, query, systemKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load summary state: %w", err)
	}

	return &state, nil
}

// Upsert writes the full record for a system
func (r *summaryRepository) Upsert(ctx context.Context, state models.SummaryState) error {
	query := `
		INSERT INTO state (system_key, summary, last_received, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (system_key) DO UPDATE
		SET summary = EXCLUDED.summary,
		    last_received = EXCLUDED.last_received,
		    version = EXCLUDED.version
	`

	_, err := r.db.ExecContext(ctx, query, state.SystemKey, state.SummaryText, state.LastActivityAt, state.Version)
	if err != nil {
		return fmt.Errorf("failed to upsert summary state: %w", err)
	}

	return nil
}

// Clear empties the summary for a system
func (r *summaryRepository) Clear(ctx context.Context, systemKey string) error {
	query := `UPDATE state SET summary = '' WHERE system_key = $1`

	result, err := r.db.ExecContext(ctx, query, systemKey)
	if err != nil {
		return fmt.Errorf("failed to clear summary state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListAll retrieves every stored state
func (r *summaryRepository) ListAll(ctx context.Context) ([]models.SummaryState, error) {
	query := `
		SELECT system_key, summary, last_received, version
		FROM state
		ORDER BY system_key
	`

	var states []models.SummaryState
	if err := r.db.SelectContext(ctx, &states, query); err != nil {
		return nil, fmt.Errorf("failed to list summary states: %w", err)
	}

	return states, nil
}

// Ensure inserts an empty record unless one exists
func (r *summaryRepository) Ensure(ctx context.Context, systemKey string, now time.Time) error {
	query := `
		INSERT INTO state (system_key, summary, last_received, version)
		VALUES ($1, '', $2, 0)
		ON CONFLICT (system_key) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, systemKey, now); err != nil {
		return fmt.Errorf("failed to initialize summary state: %w", err)
	}

	return nil
}

// Close closes the underlying connection pool
func (r *summaryRepository) Close() error {
	return r.db.Close()
}
