package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/psantana5/callstats/pkg/callstats"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with '?' placeholders and rebound per dialect.
type sqlStore struct {
	db       *sql.DB
	dollarPH bool
}

func (s *sqlStore) bind(query string) string {
	if !s.dollarPH {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	mode TEXT NOT NULL,
	workers INTEGER NOT NULL,
	started_at_ns BIGINT NOT NULL,
	duration_ns BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_entries (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	time_ns BIGINT NOT NULL,
	count BIGINT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ns);
`

func (s *sqlStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores or replaces run
func (s *sqlStore) SaveRun(ctx context.Context, run *Run) error {
	if err := validate(run); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM run_entries WHERE run_id = ?`), run.ID); err != nil {
		return fmt.Errorf("failed to clear entries of run %s: %w", run.ID, err)
	}
	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM runs WHERE id = ?`), run.ID); err != nil {
		return fmt.Errorf("failed to clear run %s: %w", run.ID, err)
	}

	_, err = tx.ExecContext(ctx, s.bind(`
		INSERT INTO runs (id, name, mode, workers, started_at_ns, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?)
	`), run.ID, run.Name, run.Mode, run.Workers, run.StartedAt.UnixNano(), int64(run.Duration))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	insert := s.bind(`INSERT INTO run_entries (run_id, position, name, time_ns, count) VALUES (?, ?, ?, ?, ?)`)
	for i, e := range run.Entries {
		if _, err := tx.ExecContext(ctx, insert, run.ID, i, e.Name, int64(e.Time), e.Count); err != nil {
			return fmt.Errorf("failed to insert entry %s of run %s: %w", e.Name, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run with id
func (s *sqlStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`
		SELECT id, name, mode, workers, started_at_ns, duration_ns FROM runs WHERE id = ?
	`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	if err := s.loadEntries(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first
func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, name, mode, workers, started_at_ns, duration_ns FROM runs ORDER BY started_at_ns DESC, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	rows.Close()

	for _, run := range runs {
		if err := s.loadEntries(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// DeleteRun removes the run with id
func (s *sqlStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM runs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM run_entries WHERE run_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete entries of run %s: %w", id, err)
	}
	return tx.Commit()
}

// Close closes the database
func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run        Run
		startedAt  int64
		durationNs int64
	)
	if err := sc.Scan(&run.ID, &run.Name, &run.Mode, &run.Workers, &startedAt, &durationNs); err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(0, startedAt).UTC()
	run.Duration = time.Duration(durationNs)
	return &run, nil
}

func (s *sqlStore) loadEntries(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, s.bind(`
		SELECT name, time_ns, count FROM run_entries WHERE run_id = ? ORDER BY position
	`), run.ID)
	if err != nil {
		return fmt.Errorf("failed to read entries of run %s: %w", run.ID, err)
	}
	defer rows.Close()

	run.Entries = callstats.Snapshot{}
	for rows.Next() {
		var (
			e      callstats.Entry
			timeNs int64
		)
		if err := rows.Scan(&e.Name, &timeNs, &e.Count); err != nil {
			return fmt.Errorf("failed to scan entry of run %s: %w", run.ID, err)
		}
		e.Time = time.Duration(timeNs)
		run.Entries = append(run.Entries, e)
	}
	return rows.Err()
}
