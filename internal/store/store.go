// Package store keeps a SQLite ledger of evaluation runs so that accuracy
// can be compared across runs and configurations.
package store

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/emilybillow27-sudo/genopredict/evaluate"
	"github.com/emilybillow27-sudo/genopredict/pkg/errors"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, kind)
)`, `
CREATE TABLE IF NOT EXISTS pairs (
	run_id          TEXT NOT NULL,
	protocol        TEXT NOT NULL,
	focal_env       TEXT NOT NULL,
	fallback        INTEGER NOT NULL,
	train_obs       INTEGER NOT NULL,
	test_accessions INTEGER NOT NULL,
	scored          INTEGER NOT NULL,
	pearson_r       REAL,
	rmse            REAL,
	lambda          REAL,
	solve_fallback  INTEGER NOT NULL,
	error           TEXT,
	duration_ms     INTEGER NOT NULL,
	PRIMARY KEY (run_id, protocol, focal_env)
)`, `
CREATE TABLE IF NOT EXISTS predictions (
	run_id         TEXT NOT NULL,
	protocol       TEXT NOT NULL,
	focal_env      TEXT NOT NULL,
	accession_id   TEXT NOT NULL,
	value          REAL,
	PRIMARY KEY (run_id, protocol, focal_env, accession_id)
)`, `
CREATE TABLE IF NOT EXISTS cv1_folds (
	run_id    TEXT NOT NULL,
	fold      INTEGER NOT NULL,
	pearson_r REAL,
	error     TEXT,
	PRIMARY KEY (run_id, fold)
)`,
}

// Store is a SQLite-backed run ledger. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates the ledger at path. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "genopredict.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errors.Wrap(err, "create ledger directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "create ledger schema")
		}
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// RecordReport stores a run, its pairs and their predictions. Recording the
// same run id twice replaces the earlier rows.
func (s *Store) RecordReport(ctx context.Context, r *evaluate.Report) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO runs(run_id, kind, started_at, duration_ms) VALUES(?,?,?,?)`,
			r.RunID, string(r.Kind), r.Started.UTC().Format(time.RFC3339Nano), r.Duration.Milliseconds(),
		); err != nil {
			return errors.Wrap(err, "insert run")
		}
		for _, p := range r.Pairs {
			var fallback, trainObs, tests int
			if p.Partition != nil {
				fallback = boolInt(p.Partition.Fallback)
				trainObs = len(p.Partition.Train)
				tests = len(p.Partition.TestAccessions)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO pairs(run_id, protocol, focal_env, fallback, train_obs, test_accessions,
					scored, pearson_r, rmse, lambda, solve_fallback, error, duration_ms)
				VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				r.RunID, string(p.Protocol), p.FocalEnv, fallback, trainObs, tests,
				p.Scores.N, nullable(p.Scores.PearsonR), nullable(p.Scores.RMSE), nullable(p.Diagnostics.Lambda),
				boolInt(p.Diagnostics.Fallback), nullString(p.Err), p.Duration.Milliseconds(),
			); err != nil {
				return errors.Wrapf(err, "insert pair %s/%s", p.Protocol, p.FocalEnv)
			}
			for _, pred := range p.Predictions {
				if _, err := tx.ExecContext(ctx,
					`INSERT OR REPLACE INTO predictions(run_id, protocol, focal_env, accession_id, value) VALUES(?,?,?,?,?)`,
					r.RunID, string(p.Protocol), p.FocalEnv, pred.AccessionID, nullable(pred.Value),
				); err != nil {
					return errors.Wrap(err, "insert prediction")
				}
			}
		}
		return nil
	})
}

// RecordCV1 stores per-fold accuracy of a CV1 run.
func (s *Store) RecordCV1(ctx context.Context, res *evaluate.CV1Result) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for i, r := range res.FoldPearson {
			var foldErr error
			if i < len(res.FoldErrors) {
				foldErr = res.FoldErrors[i]
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO cv1_folds(run_id, fold, pearson_r, error) VALUES(?,?,?,?)`,
				res.RunID, i, nullable(r), nullString(foldErr),
			); err != nil {
				return errors.Wrapf(err, "insert fold %d", i)
			}
		}
		return nil
	})
}

// PairSummary is one stored pair.
type PairSummary struct {
	RunID    string
	Protocol string
	FocalEnv string
	Fallback bool
	Scored   int
	// PearsonR is NaN when it was undefined.
	PearsonR float64
	RMSE     float64
	Error    string
}

// Pairs returns the stored pairs of runID ordered by focal environment and
// protocol.
func (s *Store) Pairs(ctx context.Context, runID string) ([]PairSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, protocol, focal_env, fallback, scored, pearson_r, rmse, error
		FROM pairs WHERE run_id = ? ORDER BY focal_env, protocol`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "select pairs")
	}
	defer func() { _ = rows.Close() }()

	var out []PairSummary
	for rows.Next() {
		var (
			ps        PairSummary
			fallback  int
			r, rmse   sql.NullFloat64
			errString sql.NullString
		)
		if err := rows.Scan(&ps.RunID, &ps.Protocol, &ps.FocalEnv, &fallback, &ps.Scored, &r, &rmse, &errString); err != nil {
			return nil, errors.Wrap(err, "scan pair")
		}
		ps.Fallback = fallback != 0
		ps.PearsonR = orNaN(r)
		ps.RMSE = orNaN(rmse)
		ps.Error = errString.String
		out = append(out, ps)
	}
	return out, errors.Wrap(rows.Err(), "iterate pairs")
}

// Predictions returns the stored predictions of one pair keyed by
// accession; a missing prediction is NaN.
func (s *Store) Predictions(ctx context.Context, runID, protocol, focalEnv string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT accession_id, value FROM predictions WHERE run_id = ? AND protocol = ? AND focal_env = ?`,
		runID, protocol, focalEnv)
	if err != nil {
		return nil, errors.Wrap(err, "select predictions")
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			id string
			v  sql.NullFloat64
		)
		if err := rows.Scan(&id, &v); err != nil {
			return nil, errors.Wrap(err, "scan prediction")
		}
		out[id] = orNaN(v)
	}
	return out, errors.Wrap(rows.Err(), "iterate predictions")
}

// FoldPearson returns the stored per-fold Pearson r of a CV1 run.
func (s *Store) FoldPearson(ctx context.Context, runID string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pearson_r FROM cv1_folds WHERE run_id = ? ORDER BY fold`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "select folds")
	}
	defer func() { _ = rows.Close() }()

	var out []float64
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan fold")
		}
		out = append(out, orNaN(v))
	}
	return out, errors.Wrap(rows.Err(), "iterate folds")
}

// Runs returns every stored run id, newest first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, MAX(started_at) AS started FROM runs GROUP BY run_id ORDER BY started DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select runs")
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id, started string
		if err := rows.Scan(&id, &started); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		out = append(out, id)
	}
	return out, errors.Wrap(rows.Err(), "iterate runs")
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
