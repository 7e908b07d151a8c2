// Package store persists NDCG reports from evaluation runs in SQLite or
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/ndcg"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("evaluation run not found")

// Run is one persisted evaluation.
type Run struct {
	ID         int64           `json:"id"`
	Experiment string          `json:"experiment"`
	Params     map[string]any  `json:"params,omitempty"`
	Queries    int             `json:"queries"`
	Limit      int             `json:"ndcg_limit"`
	CreatedAt  time.Time       `json:"created_at"`
	Report     []ndcg.RankNDCG `json:"report"`
}

// ReportStore saves and loads evaluation runs.
type ReportStore interface {
	Save(ctx context.Context, run Run) (int64, error)
	Get(ctx context.Context, id int64) (Run, error)
	// List returns the runs of experiment, newest first, without reports.
	// An empty experiment lists every run.
	List(ctx context.Context, experiment string) ([]Run, error)
	Close() error
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// sqlStore implements ReportStore over database/sql. Queries are written
// with '?' placeholders and rebound for postgres.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	inTx    func(ctx context.Context, fn func(tx *sql.Tx) error) error
	close   func() error
}

func (s *sqlStore) q(query string) string {
	if s.dialect != dialectPostgres {
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

func (s *sqlStore) Save(ctx context.Context, run Run) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	params := run.Params
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("marshal params: %w", err)
	}

	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.q(`
			INSERT INTO eval_runs (experiment, params, queries, ndcg_limit, created_at)
			VALUES (?, ?, ?, ?, ?) RETURNING id`),
			run.Experiment, string(paramsJSON), run.Queries, run.Limit, run.CreatedAt.UnixNano(),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, r := range run.Report {
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO eval_ndcg (run_id, cutoff, ndcg) VALUES (?, ?, ?)`),
				id, r.Rank, r.NDCG); err != nil {
				return fmt.Errorf("insert ndcg@%d: %w", r.Rank, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *sqlStore) Get(ctx context.Context, id int64) (Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, s.q(`
		SELECT id, experiment, params, queries, ndcg_limit, created_at
		FROM eval_runs WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return run, fmt.Errorf("query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT cutoff, ndcg FROM eval_ndcg WHERE run_id = ? ORDER BY cutoff`), id)
	if err != nil {
		return run, fmt.Errorf("query ndcg: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r ndcg.RankNDCG
		if err := rows.Scan(&r.Rank, &r.NDCG); err != nil {
			return run, fmt.Errorf("scan ndcg: %w", err)
		}
		run.Report = append(run.Report, r)
	}
	return run, rows.Err()
}

func (s *sqlStore) List(ctx context.Context, experiment string) ([]Run, error) {
	query := `SELECT id, experiment, params, queries, ndcg_limit, created_at FROM eval_runs`
	var args []any
	if experiment != "" {
		query += ` WHERE experiment = ?`
		args = append(args, experiment)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		params    []byte
		createdAt int64
	)
	if err := row.Scan(&run.ID, &run.Experiment, &params, &run.Queries, &run.Limit, &createdAt); err != nil {
		return run, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &run.Params); err != nil {
			return run, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	return run, nil
}

// Nop discards every run. It backs the "none" driver.
type Nop struct{}

func (Nop) Save(context.Context, Run) (int64, error) { return 0, nil }

func (Nop) Get(_ context.Context, id int64) (Run, error) {
	return Run{}, fmt.Errorf("run %d: %w", id, ErrNotFound)
}

func (Nop) List(context.Context, string) ([]Run, error) { return nil, nil }

func (Nop) Close() error { return nil }
