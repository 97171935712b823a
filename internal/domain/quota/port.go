package quota

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Repository.Get for unknown users.
var ErrNotFound = errors.New("quota record not found")

// Repository persists one Record per user. Increment must be atomic per user.
type Repository interface {
	// Ensure returns the record for userID, creating an empty one if absent.
	Ensure(ctx context.Context, userID string) (*Record, error)
	Get(ctx context.Context, userID string) (*Record, error)
	// Increment bumps the counter for day, restarting it at 1 when the stored
	// date differs, and returns the updated record.
	Increment(ctx context.Context, userID, day string) (*Record, error)
	Reset(ctx context.Context, userID string) error
	SetPaid(ctx context.Context, userID string, paid bool) error
	Ping(ctx context.Context) error
	Close() error
}
