package sqlite

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/fineprint/internal/domain/quota"
)

// QuotaRepository implements quota.Repository using modernc.org/sqlite.
type QuotaRepository struct {
	db *sql.DB
}

// Open opens a SQLite database at dsn and configures WAL mode.
func Open(dsn string) (*QuotaRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// one connection so the pragmas below hold for every statement
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &QuotaRepository{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS users (
	user_id          TEXT PRIMARY KEY,
	is_paid          INTEGER NOT NULL DEFAULT 0,
	daily_scan_count INTEGER NOT NULL DEFAULT 0,
	last_scan_date   TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (r *QuotaRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (r *QuotaRepository) Close() error {
	return r.db.Close()
}

func (r *QuotaRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *QuotaRepository) Ensure(ctx context.Context, userID string) (*quota.Record, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id) VALUES (?) ON CONFLICT(user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: ensure user %s", userID)
	}
	return r.Get(ctx, userID)
}

func (r *QuotaRepository) Get(ctx context.Context, userID string) (*quota.Record, error) {
	var rec quota.Record
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, is_paid, daily_scan_count, last_scan_date FROM users WHERE user_id = ?`, userID,
	).Scan(&rec.UserID, &rec.Paid, &rec.ScansUsedToday, &rec.LastScanDate)
	if err == sql.ErrNoRows {
		return nil, quota.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get user %s", userID)
	}
	return &rec, nil
}

// Increment is a single upsert statement, so concurrent scans of the same user
// never lose an update.
func (r *QuotaRepository) Increment(ctx context.Context, userID, day string) (*quota.Record, error) {
	var rec quota.Record
	err := r.db.QueryRowContext(ctx, `
INSERT INTO users (user_id, daily_scan_count, last_scan_date) VALUES (?, 1, ?)
ON CONFLICT(user_id) DO UPDATE SET
	daily_scan_count = CASE WHEN users.last_scan_date = excluded.last_scan_date
		THEN users.daily_scan_count + 1 ELSE 1 END,
	last_scan_date = excluded.last_scan_date
RETURNING user_id, is_paid, daily_scan_count, last_scan_date`,
		userID, day,
	).Scan(&rec.UserID, &rec.Paid, &rec.ScansUsedToday, &rec.LastScanDate)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: increment user %s", userID)
	}
	return &rec, nil
}

func (r *QuotaRepository) Reset(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET daily_scan_count = 0 WHERE user_id = ?`, userID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset user %s", userID)
	}
	return rowsAffected(res)
}

func (r *QuotaRepository) SetPaid(ctx context.Context, userID string, paid bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_paid = ? WHERE user_id = ?`, paid, userID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set paid %s", userID)
	}
	return rowsAffected(res)
}

func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return quota.ErrNotFound
	}
	return nil
}
