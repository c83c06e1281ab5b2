// Package db provides the optional PostgreSQL run history for pipeline cycles.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaDDL string

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: p}, nil
}

// NewWithPool wraps an existing pool (primarily for testing).
func NewWithPool(p pool) (*DB, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &DB{pool: p}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the run history tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// StartRun records the beginning of a cycle
func (db *DB) StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, status, started_at)
		 VALUES ($1, $2, $3)`,
		runID, StatusRunning, startedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun stores the final counts and status of a cycle
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, counts RunCounts, runErr error) error {
	status := StatusCompleted
	var errMsg *string
	if runErr != nil {
		status = StatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	_, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs
		 SET status = $1, completed_at = NOW(), archived = $2, discovered = $3,
		     short_discarded = $4, clusters = $5, inserted = $6, duplicates = $7,
		     failed = $8, error_message = $9
		 WHERE id = $10`,
		status, counts.Archived, counts.Discovered, counts.ShortDiscarded, counts.Clusters,
		counts.Inserted, counts.Duplicates, counts.Failed, errMsg, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// RecordOutcome stores the outcome of one cluster
func (db *DB) RecordOutcome(ctx context.Context, runID uuid.UUID, o ClusterOutcome) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO cluster_outcomes (run_id, outcome, category, record_id, urls, reason)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, o.Outcome, nullable(o.Category), nullable(o.RecordID), o.URLs, nullable(o.Reason),
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// ListRuns retrieves recent runs, newest first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, archived, discovered, short_discarded,
		        clusters, inserted, duplicates, failed, error_message
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		c := &run.Counts
		if err := rows.Scan(&run.ID, &run.Status, &run.StartedAt, &run.CompletedAt,
			&c.Archived, &c.Discovered, &c.ShortDiscarded, &c.Clusters,
			&c.Inserted, &c.Duplicates, &c.Failed, &run.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
