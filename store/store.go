// Package store keeps evaluated results and failed jobs in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"osupp/ruleset"
)

type Store struct {
	db *sql.DB
}

// Record is one payload produced by a session.
type Record struct {
	ID      int64
	Job     string
	Beatmap string
	// Title labels the beatmap, "Artist - Title [Version]".
	Title   string
	Ruleset ruleset.ID
	Mods    string
	Kind    string
	// Seq orders the payloads of one beatmap within a job.
	Seq int
	// Request is the performance request as JSON, empty for other kinds.
	Request []byte
	Payload []byte
	Created time.Time
}

type Failure struct {
	Job     string
	Beatmap string
	Reason  string
	Created time.Time
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// writes from the batch workers queue on one connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY,
			job TEXT NOT NULL,
			beatmap TEXT NOT NULL,
			title TEXT NOT NULL,
			ruleset INTEGER NOT NULL,
			mods TEXT NOT NULL,
			kind TEXT NOT NULL,
			seq INTEGER NOT NULL,
			request BLOB,
			payload BLOB NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS failures (
			id INTEGER PRIMARY KEY,
			job TEXT NOT NULL,
			beatmap TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_job ON results(job, beatmap, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_failures_job ON failures(job);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveResults stores the records of one beatmap in a single transaction.
func (s *Store) SaveResults(ctx context.Context, recs []Record) (err error) {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (job, beatmap, title, ruleset, mods, kind, seq, request, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range recs {
		if _, err = stmt.ExecContext(ctx,
			r.Job, r.Beatmap, r.Title, int(r.Ruleset), r.Mods, r.Kind, r.Seq, r.Request, r.Payload, now,
		); err != nil {
			return fmt.Errorf("store: insert %s/%s #%d: %w", r.Job, r.Beatmap, r.Seq, err)
		}
	}
	return tx.Commit()
}

// Results lists the records of a job by beatmap and sequence.
func (s *Store) Results(ctx context.Context, job string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job, beatmap, title, ruleset, mods, kind, seq, request, payload, created_at
		 FROM results WHERE job = ? ORDER BY beatmap, seq, id`, job)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			rs      int
			created string
		)
		if err := rows.Scan(&r.ID, &r.Job, &r.Beatmap, &r.Title, &rs, &r.Mods, &r.Kind, &r.Seq, &r.Request, &r.Payload, &created); err != nil {
			return nil, err
		}
		r.Ruleset = ruleset.ID(rs)
		r.Created, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Fail records why a beatmap of a job could not be evaluated.
func (s *Store) Fail(ctx context.Context, job, beatmap, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (job, beatmap, reason, created_at) VALUES (?, ?, ?, ?)`,
		job, beatmap, reason, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: fail %s/%s: %w", job, beatmap, err)
	}
	return nil
}

func (s *Store) Failures(ctx context.Context, job string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job, beatmap, reason, created_at FROM failures WHERE job = ? ORDER BY id`, job)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var (
			f       Failure
			created string
		)
		if err := rows.Scan(&f.Job, &f.Beatmap, &f.Reason, &created); err != nil {
			return nil, err
		}
		f.Created, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, f)
	}
	return out, rows.Err()
}
