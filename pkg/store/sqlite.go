// Package store implements the Persistence Layer (C6): a dated, idempotent
// tabular store (modernc.org/sqlite, pure-Go and cgo-free) plus a file store
// under feeds/raw/processed directory trees.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/score"
)

const schema = `
CREATE TABLE IF NOT EXISTS raw_candidates (
	date TEXT NOT NULL,
	ecosystem TEXT NOT NULL,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	created_at TEXT NOT NULL,
	raw_json TEXT NOT NULL,
	PRIMARY KEY (date, ecosystem, name)
);
CREATE TABLE IF NOT EXISTS scored_candidates (
	date TEXT NOT NULL,
	ecosystem TEXT NOT NULL,
	name TEXT NOT NULL,
	total REAL NOT NULL,
	newness REAL NOT NULL,
	breakdown_json TEXT NOT NULL,
	scored_at TEXT NOT NULL,
	PRIMARY KEY (date, ecosystem, name)
);
CREATE TABLE IF NOT EXISTS watchlist (
	date TEXT NOT NULL,
	ecosystem TEXT NOT NULL,
	name TEXT NOT NULL,
	not_found_reason TEXT NOT NULL,
	first_seen_at TEXT NOT NULL,
	PRIMARY KEY (date, ecosystem, name)
);
`

// TabularStore is the sqlite-backed implementation of the dated tabular
// store keyed by (date, ecosystem, name).
type TabularStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlite database at path and applies
// the schema.
func Open(path string) (*TabularStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite store")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "applying sqlite schema")
	}
	return &TabularStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *TabularStore) Close() error { return s.db.Close() }

// PutRawCandidates idempotently replaces every raw candidate row for
// (date, ecosystem): a second insert for the same date replaces the prior
// rows atomically.
func (s *TabularStore) PutRawCandidates(ctx context.Context, date string, eco ecosystem.Ecosystem, candidates []candidate.PackageCandidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM raw_candidates WHERE date = ? AND ecosystem = ?`, date, string(eco)); err != nil {
		return errors.Wrap(err, "clearing prior raw candidates")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_candidates (date, ecosystem, name, version, created_at, raw_json) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range candidates {
		raw, err := json.Marshal(c.RawMetadata)
		if err != nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx, date, string(c.Ecosystem), c.Name, c.Version, c.CreatedAt.Format(time.RFC3339), string(raw)); err != nil {
			return errors.Wrap(err, "inserting raw candidate")
		}
	}
	return tx.Commit()
}

// PutScored idempotently replaces every scored-candidate row for
// (date, ecosystem).
func (s *TabularStore) PutScored(ctx context.Context, date string, eco ecosystem.Ecosystem, scored []score.ScoredCandidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scored_candidates WHERE date = ? AND ecosystem = ?`, date, string(eco)); err != nil {
		return errors.Wrap(err, "clearing prior scored candidates")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scored_candidates (date, ecosystem, name, total, newness, breakdown_json, scored_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sc := range scored {
		bj, err := json.Marshal(sc.Breakdown)
		if err != nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx, date, string(sc.Ecosystem), sc.Name, sc.Total, sc.Breakdown.Newness, string(bj), sc.ScoredAt.Format(time.RFC3339)); err != nil {
			return errors.Wrap(err, "inserting scored candidate")
		}
	}
	return tx.Commit()
}

// PutWatchlist idempotently replaces every watchlist row for
// (date, ecosystem).
func (s *TabularStore) PutWatchlist(ctx context.Context, date string, eco ecosystem.Ecosystem, entries []score.WatchlistEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watchlist WHERE date = ? AND ecosystem = ?`, date, string(eco)); err != nil {
		return errors.Wrap(err, "clearing prior watchlist")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO watchlist (date, ecosystem, name, not_found_reason, first_seen_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, date, e.Ecosystem, e.Name, string(e.NotFoundReason), e.FirstSeenAt.Format(time.RFC3339)); err != nil {
			return errors.Wrap(err, "inserting watchlist entry")
		}
	}
	return tx.Commit()
}

// ScoredForDate returns every scored row for date ordered by total
// descending.
func (s *TabularStore) ScoredForDate(ctx context.Context, date string) ([]score.ScoredCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ecosystem, name, total, breakdown_json, scored_at FROM scored_candidates WHERE date = ? ORDER BY total DESC`, date)
	if err != nil {
		return nil, errors.Wrap(err, "querying scored candidates")
	}
	defer rows.Close()

	var out []score.ScoredCandidate
	for rows.Next() {
		var eco, name, scoredAt string
		var total float64
		var breakdownJSON string
		if err := rows.Scan(&eco, &name, &total, &breakdownJSON, &scoredAt); err != nil {
			return nil, errors.Wrap(err, "scanning scored candidate row")
		}
		var b score.Breakdown
		if err := json.Unmarshal([]byte(breakdownJSON), &b); err != nil {
			continue
		}
		t, _ := time.Parse(time.RFC3339, scoredAt)
		sc := score.ScoredCandidate{
			PackageCandidate: candidate.PackageCandidate{Ecosystem: ecosystem.Ecosystem(eco), Name: name},
			Breakdown:        b,
			Total:            total,
			ScoredAt:         t,
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Retain deletes rows and (via the caller's file-store companion) file
// directories older than retentionDays, promoting the original
// implementation's cleanup routine to a first-class, policy-driven
// operation.
func (s *TabularStore) Retain(ctx context.Context, retentionDays int, now time.Time) error {
	cutoff := now.AddDate(0, 0, -retentionDays).Format("2006-01-02")
	for _, table := range []string{"raw_candidates", "scored_candidates", "watchlist"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE date < ?`, cutoff); err != nil {
			return errors.Wrapf(err, "retaining %s", table)
		}
	}
	return nil
}
