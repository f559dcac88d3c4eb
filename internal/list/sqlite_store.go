package list

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps lists in a sqlite file: one row per list plus one row
// per attached job.
type SQLiteRepository struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	pool.SetMaxOpenConns(1) // sqlite wants a single writer
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	if err := migrate(pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate lists db: %w", err)
	}
	return &SQLiteRepository{db: pool}, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS lists (
  name TEXT PRIMARY KEY,
  id TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS list_jobs (
  list_name TEXT NOT NULL REFERENCES lists(name) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  job_id TEXT NOT NULL,
  found INTEGER NOT NULL DEFAULT 0,
  attached_at TEXT NOT NULL,
  PRIMARY KEY (list_name, job_id)
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Get(ctx context.Context, name string) (*List, error) {
	var l List
	var created, updated string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM lists WHERE name = ?;`, name,
	).Scan(&l.ID, &l.Name, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	l.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	l.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	rows, err := r.db.QueryContext(ctx, `
SELECT job_id, found, attached_at
FROM list_jobs
WHERE list_name = ?
ORDER BY position ASC;`, name)
	if err != nil {
		return nil, fmt.Errorf("get list jobs: %w", err)
	}
	defer rows.Close()

	l.Contributions = []Contribution{}
	for rows.Next() {
		var c Contribution
		var attached string
		if err := rows.Scan(&c.JobID, &c.Found, &attached); err != nil {
			return nil, err
		}
		c.AttachedAt, _ = time.Parse(time.RFC3339Nano, attached)
		l.Contributions = append(l.Contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	l.recompute(l.UpdatedAt)
	return &l, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, l *List) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO lists(name, id, created_at, updated_at)
VALUES(?,?,?,?)
ON CONFLICT(name) DO UPDATE SET
  updated_at = excluded.updated_at;`,
		l.Name, l.ID, l.CreatedAt.UTC().Format(time.RFC3339Nano), l.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert list: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM list_jobs WHERE list_name = ?;`, l.Name); err != nil {
		return fmt.Errorf("clear list jobs: %w", err)
	}
	for i, c := range l.Contributions {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO list_jobs(list_name, position, job_id, found, attached_at)
VALUES(?,?,?,?,?);`,
			l.Name, i, c.JobID, c.Found, c.AttachedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert list job: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM list_jobs WHERE list_name = ?;`, name); err != nil {
		return fmt.Errorf("delete list jobs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE name = ?;`, name)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) All(ctx context.Context) ([]*List, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM lists ORDER BY name ASC;`)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*List, 0, len(names))
	for _, n := range names {
		l, err := r.Get(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
