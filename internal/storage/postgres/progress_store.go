// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/scrollprobe/internal/store"
)

// Schema creates the tables used by ProgressStore.
const Schema = `
CREATE TABLE IF NOT EXISTS probe_runs (
	id            UUID PRIMARY KEY,
	source        TEXT NOT NULL DEFAULT '',
	elements      INTEGER NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	error_message TEXT
);
CREATE TABLE IF NOT EXISTS progress_samples (
	run_id      UUID NOT NULL REFERENCES probe_runs (id) ON DELETE CASCADE,
	element     TEXT NOT NULL,
	frame       BIGINT NOT NULL,
	scroll_y    DOUBLE PRECISION NOT NULL,
	progress    DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS progress_samples_run_element_idx
	ON progress_samples (run_id, element, recorded_at);
`

var sampleColumns = []string{"run_id", "element", "frame", "scroll_y", "progress", "recorded_at"}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool used by ProgressStore; pgxmock pools
// satisfy it as well.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// ProgressStore implements store.ProgressRepository using Postgres.
type ProgressStore struct {
	pool pool
}

var _ store.ProgressRepository = (*ProgressStore)(nil)

// NewProgressStore connects a pool using cfg.
func NewProgressStore(ctx context.Context, cfg Config) (*ProgressStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ProgressStore{pool: p}, nil
}

// NewProgressStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProgressStoreWithPool(p pool) (*ProgressStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &ProgressStore{pool: p}, nil
}

// Close closes the underlying connection pool.
func (s *ProgressStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *ProgressStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates missing tables and indexes.
func (s *ProgressStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertRunStart inserts the run row or refreshes its metadata. started_at
// keeps its first value.
func (s *ProgressStore) UpsertRunStart(
	ctx context.Context,
	runID uuid.UUID,
	source string,
	elements int,
	startedAt time.Time,
) error {
	const query = `
		INSERT INTO probe_runs (id, source, elements, started_at, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET source = EXCLUDED.source,
			elements = EXCLUDED.elements,
			status = EXCLUDED.status,
			finished_at = NULL,
			error_message = NULL;
	`
	_, err := s.pool.Exec(ctx, query, runID, source, elements, startedAt, string(store.RunRunning))
	if err != nil {
		return fmt.Errorf("failed to upsert run start: %w", err)
	}
	return nil
}

// CompleteRun marks a run as finished with a status and optional error message.
func (s *ProgressStore) CompleteRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	const query = `
		UPDATE probe_runs
		SET finished_at = $1, status = $2, error_message = $3
		WHERE id = $4;
	`
	tag, err := s.pool.Exec(ctx, query, finishedAt, string(status), errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: %w", runID, store.ErrNotFound)
	}
	return nil
}

// InsertSamples bulk-loads samples with COPY.
func (s *ProgressStore) InsertSamples(ctx context.Context, samples []store.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	src := pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
		sm := samples[i]
		return []any{sm.RunID, sm.Element, sm.Frame, sm.ScrollY, sm.Progress, sm.RecordedAt}, nil
	})
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"progress_samples"}, sampleColumns, src)
	if err != nil {
		return fmt.Errorf("failed to copy samples: %w", err)
	}
	if n != int64(len(samples)) {
		return fmt.Errorf("copied %d of %d samples", n, len(samples))
	}
	return nil
}

const runColumns = `id::text, source, elements, started_at, finished_at, status, error_message`

// GetRun retrieves a single run by its ID.
func (s *ProgressStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM probe_runs WHERE id = $1;`
	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first, with optional status filtering.
func (s *ProgressStore) ListRuns(
	ctx context.Context,
	status *store.RunStatus,
	limit,
	offset int,
) ([]store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM probe_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;`
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}
	rows, err := s.pool.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListRunElements aggregates the samples of a run per element.
func (s *ProgressStore) ListRunElements(
	ctx context.Context,
	runID uuid.UUID,
	limit,
	offset int,
) ([]store.ElementSummary, error) {
	const query = `
		SELECT element,
			count(*),
			min(progress),
			max(progress),
			(array_agg(progress ORDER BY recorded_at DESC))[1],
			max(recorded_at)
		FROM progress_samples
		WHERE run_id = $1
		GROUP BY element
		ORDER BY element
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list run elements: %w", err)
	}
	defer rows.Close()

	out := []store.ElementSummary{}
	for rows.Next() {
		sum := store.ElementSummary{RunID: runID}
		if err := rows.Scan(
			&sum.Element,
			&sum.Samples,
			&sum.MinProgress,
			&sum.MaxProgress,
			&sum.LastProgress,
			&sum.LastUpdate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan element row: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run elements: %w", err)
	}
	return out, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		id     string
		status string
	)
	if err := row.Scan(
		&id,
		&run.Source,
		&run.Elements,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.ErrorMessage,
	); err != nil {
		return store.Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return store.Run{}, fmt.Errorf("parse run id: %w", err)
	}
	run.ID = parsed
	run.Status = store.RunStatus(status)
	return run, nil
}
