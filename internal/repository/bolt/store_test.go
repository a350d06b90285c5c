package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmytrogajewski/ett-summary/internal/models"
	"github.com/dmytrogajewski/ett-summary/internal/repository"
	"github.com/dmytrogajewski/ett-summary/internal/repository/repositorytest"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path)
	require.NoError(t, err)
	return store
}

func TestStore_Contract(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repository.SummaryRepository {
		store := openTestStore(t, filepath.Join(t.TempDir(), "summaries.db"))
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "summaries.db")

	state := models.SummaryState{
		SystemKey:      "default",
		SummaryText:    "Incident ongoing",
		LastActivityAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Version:        7,
	}

	store := openTestStore(t, path)
	require.NoError(t, store.Upsert(ctx, state))
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "default")
	require.NoError(t, err)
	repositorytest.AssertState(t, state, *loaded)
}
