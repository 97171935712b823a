// Package dbtest holds the behaviour every quota.Repository must share.
package dbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/fineprint/internal/domain/quota"
)

// RunQuotaRepository exercises repo against the quota.Repository contract.
// newUser must return an ID not used before in the backing store.
func RunQuotaRepository(t *testing.T, repo quota.Repository, newUser func() string) {
	ctx := context.Background()

	t.Run("get unknown", func(t *testing.T) {
		_, err := repo.Get(ctx, newUser())
		assert.ErrorIs(t, err, quota.ErrNotFound)
	})

	t.Run("ensure creates once", func(t *testing.T) {
		id := newUser()
		rec, err := repo.Ensure(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, quota.Record{UserID: id}, *rec)

		_, err = repo.Increment(ctx, id, "2026-03-10")
		require.NoError(t, err)

		rec, err = repo.Ensure(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.ScansUsedToday)
	})

	t.Run("increment rolls over by day", func(t *testing.T) {
		id := newUser()
		rec, err := repo.Increment(ctx, id, "2026-03-10")
		require.NoError(t, err)
		assert.Equal(t, 1, rec.ScansUsedToday)
		assert.Equal(t, "2026-03-10", rec.LastScanDate)

		rec, err = repo.Increment(ctx, id, "2026-03-10")
		require.NoError(t, err)
		assert.Equal(t, 2, rec.ScansUsedToday)

		rec, err = repo.Increment(ctx, id, "2026-03-11")
		require.NoError(t, err)
		assert.Equal(t, 1, rec.ScansUsedToday)
		assert.Equal(t, "2026-03-11", rec.LastScanDate)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, *rec, *got)
	})

	t.Run("reset and paid", func(t *testing.T) {
		id := newUser()
		_, err := repo.Increment(ctx, id, "2026-03-10")
		require.NoError(t, err)

		require.NoError(t, repo.Reset(ctx, id))
		require.NoError(t, repo.Reset(ctx, id))
		require.NoError(t, repo.SetPaid(ctx, id, true))
		require.NoError(t, repo.SetPaid(ctx, id, true))

		rec, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.ScansUsedToday)
		assert.True(t, rec.Paid)
	})

	t.Run("reset unknown", func(t *testing.T) {
		assert.ErrorIs(t, repo.Reset(ctx, newUser()), quota.ErrNotFound)
		assert.ErrorIs(t, repo.SetPaid(ctx, newUser(), true), quota.ErrNotFound)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		id := newUser()
		_, err := repo.Ensure(ctx, id)
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Increment(ctx, id, "2026-03-10"); err != nil {
					errs <- fmt.Errorf("increment: %w", err)
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		rec, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, n, rec.ScansUsedToday)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

// Sequence returns a newUser func yielding prefix-1, prefix-2, ...
func Sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
