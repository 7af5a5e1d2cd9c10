package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createRunsTable = `CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY,
	job_title   TEXT NOT NULL,
	step        TEXT NOT NULL,
	progress    INTEGER NOT NULL,
	report      JSONB NOT NULL,
	result      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const upsertReport = `INSERT INTO pipeline_runs (id, job_title, step, progress, report)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET step = $3, progress = $4, report = $5, updated_at = NOW()`

const upsertResult = `INSERT INTO pipeline_runs (id, job_title, step, progress, report, result)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET step = $3, progress = $4, report = $5, result = $6, updated_at = NOW()`

const selectRun = `SELECT report, result, created_at, updated_at FROM pipeline_runs WHERE id = $1`

// querier is the part of pgxpool.Pool used by the store.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a RunStore backed by one PostgreSQL table.
type PostgresStore struct {
	db   querier
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool, verifies the connection and creates the runs
// table when missing.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, storageError("failed to connect to database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageError("failed to ping database", err)
	}

	store := &PostgresStore{db: pool, pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (p *PostgresStore) migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createRunsTable); err != nil {
		return storageError("failed to create pipeline_runs table", err)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) SaveReport(ctx context.Context, report pipeline.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return storageError("failed to marshal run report", err)
	}

	_, err = p.db.Exec(ctx, upsertReport,
		report.RunID, report.JobTitle, string(report.Step), report.Progress, reportJSON)
	if err != nil {
		return storageError(fmt.Sprintf("failed to save report of run %s", report.RunID), err)
	}
	return nil
}

func (p *PostgresStore) SaveResult(ctx context.Context, state pipeline.State) error {
	report := state.Report()
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return storageError("failed to marshal run report", err)
	}
	resultJSON, err := json.Marshal(state)
	if err != nil {
		return storageError("failed to marshal run result", err)
	}

	_, err = p.db.Exec(ctx, upsertResult,
		state.RunID, state.JobTitle, string(report.Step), report.Progress, reportJSON, resultJSON)
	if err != nil {
		return storageError(fmt.Sprintf("failed to save result of run %s", state.RunID), err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (RunRecord, error) {
	var (
		reportJSON []byte
		resultJSON []byte
		createdAt  time.Time
		updatedAt  time.Time
	)
	err := p.db.QueryRow(ctx, selectRun, id).Scan(&reportJSON, &resultJSON, &createdAt, &updatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return RunRecord{}, NotFound(id)
	}
	if err != nil {
		return RunRecord{}, storageError(fmt.Sprintf("failed to load run %s", id), err)
	}

	rec := RunRecord{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt}
	if err := json.Unmarshal(reportJSON, &rec.Report); err != nil {
		return RunRecord{}, storageError(fmt.Sprintf("stored report of run %s is corrupt", id), err)
	}
	if len(resultJSON) > 0 {
		var state pipeline.State
		if err := json.Unmarshal(resultJSON, &state); err != nil {
			return RunRecord{}, storageError(fmt.Sprintf("stored result of run %s is corrupt", id), err)
		}
		rec.Result = &state
	}
	return rec, nil
}
