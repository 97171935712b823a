package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/fineprint/internal/application"
	domain "github.com/bryanwahyu/fineprint/internal/domain/quota"
	"github.com/bryanwahyu/fineprint/internal/infra/db/memory"
)

func newTestService(t *testing.T, limit int) (*Service, *application.FixedClock) {
	t.Helper()
	clock := &application.FixedClock{T: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	return &Service{
		Repo:     memory.NewQuotaRepository(),
		Policy:   domain.Policy{DailyFreeLimit: limit, UnlimitedPrefixes: []string{"admin_"}},
		Clock:    clock,
		Location: time.UTC,
	}, clock
}

func TestService_FreeTierDailyLimit(t *testing.T) {
	svc, clock := newTestService(t, 1)
	ctx := context.Background()

	ok, err := svc.CanScan(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	remaining, err := svc.RecordScan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	ok, err = svc.CanScan(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	// next calendar day
	clock.Advance(24 * time.Hour)
	ok, err = svc.CanScan(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_CheckReturnsLimitError(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	require.NoError(t, svc.Check(ctx, "u1"))
	_, err := svc.RecordScan(ctx, "u1")
	require.NoError(t, err)

	err = svc.Check(ctx, "u1")
	var le *domain.LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 1, le.Limit)
	assert.Equal(t, "u1", le.UserID)
}

func TestService_CanScanCreatesRecord(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	_, _, err := svc.Status(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.CanScan(ctx, "u1")
	require.NoError(t, err)

	rec, remaining, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ScansUsedToday)
	assert.Equal(t, 1, remaining)
}

func TestService_UnlimitedPrefix(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		remaining, err := svc.RecordScan(ctx, "admin_ops")
		require.NoError(t, err)
		assert.Equal(t, domain.Unlimited, remaining)
	}
	require.NoError(t, svc.Check(ctx, "admin_ops"))
}

func TestService_ResetAndPaid(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Reset(ctx, "ghost"), domain.ErrNotFound)

	_, err := svc.RecordScan(ctx, "u1")
	require.NoError(t, err)
	require.Error(t, svc.Check(ctx, "u1"))

	require.NoError(t, svc.Reset(ctx, "u1"))
	require.NoError(t, svc.Check(ctx, "u1"))

	_, err = svc.RecordScan(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, svc.SetPaid(ctx, "u1", true))
	require.NoError(t, svc.Check(ctx, "u1"))

	rec, remaining, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rec.Paid)
	assert.Equal(t, domain.Unlimited, remaining)
}

func TestService_ConcurrentRecordsDoNotLoseIncrements(t *testing.T) {
	svc, _ := newTestService(t, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.RecordScan(ctx, "u1")
		}()
	}
	wg.Wait()

	rec, remaining, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, rec.ScansUsedToday)
	assert.Equal(t, 50, remaining)
}
