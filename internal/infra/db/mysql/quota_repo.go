package mysql

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
  user_id          VARCHAR(191) NOT NULL PRIMARY KEY,
  is_paid          TINYINT(1)   NOT NULL DEFAULT 0,
  daily_scan_count INT          NOT NULL DEFAULT 0,
  last_scan_date   VARCHAR(10)  NOT NULL DEFAULT '',
  created_at       TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

func (r *QuotaRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "mysql: migrate")
}

func (r *QuotaRepository) Close() error { return r.db.Close() }

func (r *QuotaRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// Ensure inserts an empty record if missing, then reads it back
func (r *QuotaRepository) Ensure(ctx context.Context, userID string) (*quota.Record, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT IGNORE INTO users (user_id) VALUES (?)`, userID); err != nil {
		return nil, eris.Wrapf(err, "mysql: ensure user %s", userID)
	}
	return r.Get(ctx, userID)
}

func (r *QuotaRepository) Get(ctx context.Context, userID string) (*quota.Record, error) {
	return get(ctx, r.db, userID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryer, userID string) (*quota.Record, error) {
	const stmt = `
SELECT user_id, is_paid, daily_scan_count, last_scan_date
FROM users WHERE user_id = ?`
	var rec quota.Record
	err := q.QueryRowContext(ctx, stmt, userID).
		Scan(&rec.UserID, &rec.Paid, &rec.ScansUsedToday, &rec.LastScanDate)
	if err == sql.ErrNoRows {
		return nil, quota.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "mysql: get user %s", userID)
	}
	return &rec, nil
}

// Increment upserts and reads back inside one transaction; the row lock taken
// by the upsert serializes concurrent scans of the same user.
func (r *QuotaRepository) Increment(ctx context.Context, userID, day string) (*quota.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "mysql: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	// daily_scan_count is assigned first so it still sees the old last_scan_date
	const upsert = `
INSERT INTO users (user_id, daily_scan_count, last_scan_date) VALUES (?, 1, ?)
ON DUPLICATE KEY UPDATE
  daily_scan_count = IF(last_scan_date = VALUES(last_scan_date), daily_scan_count + 1, 1),
  last_scan_date   = VALUES(last_scan_date)`
	if _, err := tx.ExecContext(ctx, upsert, userID, day); err != nil {
		return nil, eris.Wrapf(err, "mysql: increment user %s", userID)
	}
	rec, err := get(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "mysql: commit")
	}
	return rec, nil
}

func (r *QuotaRepository) Reset(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET daily_scan_count = 0 WHERE user_id = ?`, userID)
	if err != nil {
		return eris.Wrapf(err, "mysql: reset user %s", userID)
	}
	return r.exists(ctx, res, userID)
}

func (r *QuotaRepository) SetPaid(ctx context.Context, userID string, paid bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_paid = ? WHERE user_id = ?`, paid, userID)
	if err != nil {
		return eris.Wrapf(err, "mysql: set paid %s", userID)
	}
	return r.exists(ctx, res, userID)
}

// MySQL reports 0 affected rows when the new value equals the old one, so a
// zero count is confirmed with a lookup before reporting ErrNotFound.
func (r *QuotaRepository) exists(ctx context.Context, res sql.Result, userID string) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err := r.Get(ctx, userID)
	return err
}
