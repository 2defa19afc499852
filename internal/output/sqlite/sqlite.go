// Package sqlite stores training records in a local SQLite database so past
// runs can be listed and inspected after the process exits.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crimson-sun/factcheck/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	ts INTEGER NOT NULL,
	epoch REAL NOT NULL,
	step INTEGER NOT NULL,
	metrics TEXT,
	checkpoint TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, id);
`

// Run summarises one training run.
type Run struct {
	RunID        string
	StartedAt    time.Time
	LastAt       time.Time
	Steps        int
	Records      int
	Finished     bool    // a summary record was written
	BestEvalLoss float64 // NaN when the run never evaluated
	TrainLoss    float64 // from the summary record; NaN if unfinished
}

// Store is an output.Output backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite output: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite output: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite output: failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Write appends one record.
func (s *Store) Write(ctx context.Context, rec model.Record) error {
	var metrics []byte
	if len(rec.Metrics) > 0 {
		var err error
		if metrics, err = json.Marshal(rec.Metrics); err != nil {
			return fmt.Errorf("sqlite output: marshal metrics: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (run_id, kind, ts, epoch, step, metrics, checkpoint)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		string(rec.Kind),
		rec.Timestamp.UnixNano(),
		rec.Epoch,
		rec.Step,
		nullString(string(metrics)),
		nullString(rec.Checkpoint),
	)
	if err != nil {
		return fmt.Errorf("sqlite output: failed to save record: %w", err)
	}
	return nil
}

// Runs lists every run, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id,
		       MIN(ts),
		       MAX(ts),
		       MAX(step),
		       COUNT(*),
		       MAX(kind = 'summary'),
		       MIN(CASE WHEN kind = 'eval' THEN json_extract(metrics, '$.eval_loss') END),
		       MAX(CASE WHEN kind = 'summary' THEN json_extract(metrics, '$.train_loss') END)
		FROM records
		GROUP BY run_id
		ORDER BY MIN(ts) DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite output: failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			start, end int64
			bestEval   sql.NullFloat64
			trainLoss  sql.NullFloat64
		)
		if err := rows.Scan(&r.RunID, &start, &end, &r.Steps, &r.Records, &r.Finished, &bestEval, &trainLoss); err != nil {
			return nil, fmt.Errorf("sqlite output: failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, start).UTC()
		r.LastAt = time.Unix(0, end).UTC()
		r.BestEvalLoss = nullFloat(bestEval)
		r.TrainLoss = nullFloat(trainLoss)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite output: %w", err)
	}
	return runs, nil
}

// History returns the records of one run in write order.
func (s *Store) History(ctx context.Context, runID string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, kind, ts, epoch, step, metrics, checkpoint
		FROM records
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite output: failed to query history: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var (
			rec        model.Record
			kind       string
			ts         int64
			metrics    sql.NullString
			checkpoint sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &kind, &ts, &rec.Epoch, &rec.Step, &metrics, &checkpoint); err != nil {
			return nil, fmt.Errorf("sqlite output: failed to scan record: %w", err)
		}
		rec.Kind = model.RecordKind(kind)
		rec.Timestamp = time.Unix(0, ts).UTC()
		rec.Checkpoint = checkpoint.String
		if metrics.Valid {
			if err := json.Unmarshal([]byte(metrics.String), &rec.Metrics); err != nil {
				return nil, fmt.Errorf("sqlite output: corrupt metrics for run %s: %w", runID, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite output: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
