package postgres

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/fineprint/internal/domain/quota"
)

type QuotaRepository struct{ db *sql.DB }

func NewQuotaRepository(db *sql.DB) *QuotaRepository { return &QuotaRepository{db: db} }

const migration = `
CREATE TABLE IF NOT EXISTS users (
  user_id          TEXT PRIMARY KEY,
  is_paid          BOOLEAN     NOT NULL DEFAULT FALSE,
  daily_scan_count INTEGER     NOT NULL DEFAULT 0,
  last_scan_date   VARCHAR(10) NOT NULL DEFAULT '',
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (r *QuotaRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "postgres: migrate")
}

func (r *QuotaRepository) Close() error { return r.db.Close() }

func (r *QuotaRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *QuotaRepository) Ensure(ctx context.Context, userID string) (*quota.Record, error) {
	const q = `INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, userID); err != nil {
		return nil, eris.Wrapf(err, "postgres: ensure user %s", userID)
	}
	return r.Get(ctx, userID)
}

func (r *QuotaRepository) Get(ctx context.Context, userID string) (*quota.Record, error) {
	const q = `
SELECT user_id, is_paid, daily_scan_count, last_scan_date
FROM users WHERE user_id = $1`
	var rec quota.Record
	err := r.db.QueryRowContext(ctx, q, userID).
		Scan(&rec.UserID, &rec.Paid, &rec.ScansUsedToday, &rec.LastScanDate)
	if err == sql.ErrNoRows {
		return nil, quota.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get user %s", userID)
	}
	return &rec, nil
}

// Increment is a single upsert, atomic per row.
func (r *QuotaRepository) Increment(ctx context.Context, userID, day string) (*quota.Record, error) {
	const q = `
INSERT INTO users (user_id, daily_scan_count, last_scan_date) VALUES ($1, 1, $2)
ON CONFLICT (user_id) DO UPDATE SET
  daily_scan_count = CASE WHEN users.last_scan_date = EXCLUDED.last_scan_date
    THEN users.daily_scan_count + 1 ELSE 1 END,
  last_scan_date = EXCLUDED.last_scan_date
RETURNING user_id, is_paid, daily_scan_count, last_scan_date`
	var rec quota.Record
	err := r.db.QueryRowContext(ctx, q, userID, day).
		Scan(&rec.UserID, &rec.Paid, &rec.ScansUsedToday, &rec.LastScanDate)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: increment user %s", userID)
	}
	return &rec, nil
}

func (r *QuotaRepository) Reset(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET daily_scan_count = 0 WHERE user_id = $1`, userID)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset user %s", userID)
	}
	return rowsAffected(res)
}

func (r *QuotaRepository) SetPaid(ctx context.Context, userID string, paid bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_paid = $1 WHERE user_id = $2`, paid, userID)
	if err != nil {
		return eris.Wrapf(err, "postgres: set paid %s", userID)
	}
	return rowsAffected(res)
}

func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "postgres: rows affected")
	}
	if n == 0 {
		return quota.ErrNotFound
	}
	return nil
}
