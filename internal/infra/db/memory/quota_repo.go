// Package memory is an in-process quota.Repository for tests and
// single-instance runs without a database file.
package memory

import (
	"context"
	"sync"

	"github.com/bryanwahyu/fineprint/internal/domain/quota"
)

type QuotaRepository struct {
	mu    sync.Mutex
	users map[string]quota.Record
}

func NewQuotaRepository() *QuotaRepository {
	return &QuotaRepository{users: map[string]quota.Record{}}
}

func (r *QuotaRepository) Ensure(_ context.Context, userID string) (*quota.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		rec = quota.Record{UserID: userID}
		r.users[userID] = rec
	}
	return &rec, nil
}

func (r *QuotaRepository) Get(_ context.Context, userID string) (*quota.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return nil, quota.ErrNotFound
	}
	return &rec, nil
}

func (r *QuotaRepository) Increment(_ context.Context, userID, day string) (*quota.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.users[userID]
	rec.UserID = userID
	if rec.LastScanDate == day {
		rec.ScansUsedToday++
	} else {
		rec.ScansUsedToday = 1
		rec.LastScanDate = day
	}
	r.users[userID] = rec
	return &rec, nil
}

func (r *QuotaRepository) Reset(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return quota.ErrNotFound
	}
	rec.ScansUsedToday = 0
	r.users[userID] = rec
	return nil
}

func (r *QuotaRepository) SetPaid(_ context.Context, userID string, paid bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.users[userID]
	if !ok {
		return quota.ErrNotFound
	}
	rec.Paid = paid
	r.users[userID] = rec
	return nil
}

func (r *QuotaRepository) Ping(context.Context) error { return nil }

func (r *QuotaRepository) Close() error { return nil }
