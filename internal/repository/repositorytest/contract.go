// Package repositorytest holds the behavior every SummaryRepository must
// share, run against each backend from its own tests.
package repositorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmytrogajewski/ett-summary/internal/models"
	"github.com/dmytrogajewski/ett-summary/internal/repository"
)

// Factory returns a fresh, empty repository for one subtest
type Factory func(t *testing.T) repository.SummaryRepository

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// AssertState compares two states field by field, times by instant
func AssertState(t *testing.T, expected, actual models.SummaryState) {
	t.Helper()
	assert.Equal(t, expected.SystemKey, actual.SystemKey)
	assert.Equal(t, expected.SummaryText, actual.SummaryText)
	assert.Equal(t, expected.Version, actual.Version)
	assert.True(t, expected.LastActivityAt.Equal(actual.LastActivityAt),
		"last activity: expected %s, got %s", expected.LastActivityAt, actual.LastActivityAt)
}

// Run exercises the SummaryRepository contract
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Load(ctx, "default")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("UpsertThenLoad", func(t *testing.T) {
		store := newStore(t)
		state := models.SummaryState{
			SystemKey:      "default",
			SummaryText:    "Incident: server down at 10am",
			LastActivityAt: baseTime,
			Version:        1,
		}
		require.NoError(t, store.Upsert(ctx, state))

		loaded, err := store.Load(ctx, "default")
		require.NoError(t, err)
		AssertState(t, state, *loaded)
	})

	t.Run("UpsertIsLastWriterWins", func(t *testing.T) {
		store := newStore(t)
		first := models.SummaryState{SystemKey: "default", SummaryText: "one", LastActivityAt: baseTime, Version: 1}
		second := models.SummaryState{SystemKey: "default", SummaryText: "two", LastActivityAt: baseTime.Add(time.Minute), Version: 2}
		require.NoError(t, store.Upsert(ctx, first))
		require.NoError(t, store.Upsert(ctx, second))
		require.NoError(t, store.Upsert(ctx, second))

		loaded, err := store.Load(ctx, "default")
		require.NoError(t, err)
		AssertState(t, second, *loaded)
	})

	t.Run("ClearKeepsActivityAndVersion", func(t *testing.T) {
		store := newStore(t)
		state := models.SummaryState{SystemKey: "default", SummaryText: "ongoing", LastActivityAt: baseTime, Version: 4}
		require.NoError(t, store.Upsert(ctx, state))
		require.NoError(t, store.Clear(ctx, "default"))

		loaded, err := store.Load(ctx, "default")
		require.NoError(t, err)
		state.SummaryText = ""
		AssertState(t, state, *loaded)
	})

	t.Run("ClearMissing", func(t *testing.T) {
		store := newStore(t)
		assert.ErrorIs(t, store.Clear(ctx, "nope"), repository.ErrNotFound)
	})

	t.Run("EnsureDoesNotOverwrite", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Ensure(ctx, "fresh", baseTime))
		fresh, err := store.Load(ctx, "fresh")
		require.NoError(t, err)
		AssertState(t, models.SummaryState{SystemKey: "fresh", LastActivityAt: baseTime}, *fresh)

		existing := models.SummaryState{SystemKey: "default", SummaryText: "keep", LastActivityAt: baseTime, Version: 2}
		require.NoError(t, store.Upsert(ctx, existing))
		require.NoError(t, store.Ensure(ctx, "default", baseTime.Add(time.Hour)))
		loaded, err := store.Load(ctx, "default")
		require.NoError(t, err)
		AssertState(t, existing, *loaded)
	})

	t.Run("ListAll", func(t *testing.T) {
		store := newStore(t)
		for i, key := range []string{"a", "b", "c"} {
			require.NoError(t, store.Upsert(ctx, models.SummaryState{
				SystemKey:      key,
				SummaryText:    "s-" + key,
				LastActivityAt: baseTime,
				Version:        int64(i),
			}))
		}

		states, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, states, 3)
		keys := make([]string, 0, len(states))
		for _, s := range states {
			keys = append(keys, s.SystemKey)
		}
		assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
	})

	t.Run("ConcurrentUpsertsForDifferentKeys", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("sys-%d", i)
				assert.NoError(t, store.Upsert(ctx, models.SummaryState{
					SystemKey:      key,
					SummaryText:    key,
					LastActivityAt: baseTime,
					Version:        int64(i),
				}))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 20; i++ {
			key := fmt.Sprintf("sys-%d", i)
			loaded, err := store.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, key, loaded.SummaryText)
			assert.Equal(t, int64(i), loaded.Version)
		}
	})
}
