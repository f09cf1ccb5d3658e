// internal/runstore/store.go
package runstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store archives runs and their per-scene records in PostgreSQL. Archiving
// is strictly optional; a run proceeds unchanged when no store is wired.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("runstore")}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	task        TEXT NOT NULL,
	backend     TEXT NOT NULL,
	selector    TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	succeeded   BOOLEAN NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_scenes (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	sequence         INTEGER NOT NULL,
	scene            TEXT NOT NULL,
	url              TEXT NOT NULL DEFAULT '',
	raw_elements     INTEGER NOT NULL,
	kept_elements    INTEGER NOT NULL,
	excluded_by_role INTEGER NOT NULL,
	excluded_by_text INTEGER NOT NULL,
	excluded_inert   INTEGER NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL,
	outcome          TEXT NOT NULL,
	detail           TEXT NOT NULL DEFAULT '',
	observed_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, sequence)
);`

// EnsureSchema creates the archive tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create archive schema: %w", err)
	}
	return nil
}

// SaveRun persists a run and its scenes in one transaction.
func (s *Store) SaveRun(ctx context.Context, run schemas.RunRecord, scenes []schemas.SceneRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, task, backend, selector, started_at, finished_at, succeeded,
			prompt_tokens, completion_tokens, total_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`, run.ID, run.Task, run.Backend, run.Selector, run.StartedAt, run.FinishedAt, run.Succeeded,
		run.Usage.PromptTokens, run.Usage.CompletionTokens, run.Usage.TotalTokens)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, scene := range scenes {
		_, err = tx.Exec(ctx, `
			INSERT INTO run_scenes (run_id, sequence, scene, url, raw_elements, kept_elements,
				excluded_by_role, excluded_by_text, excluded_inert,
				prompt_tokens, completion_tokens, total_tokens, outcome, detail, observed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
		`, run.ID, scene.Sequence, scene.Scene, scene.URL, scene.RawElements, scene.KeptElements,
			scene.ExcludedByRole, scene.ExcludedByText, scene.ExcludedInert,
			scene.Usage.PromptTokens, scene.Usage.CompletionTokens, scene.Usage.TotalTokens,
			string(scene.Outcome), scene.Detail, scene.ObservedAt)
		if err != nil {
			return fmt.Errorf("failed to insert scene %d: %w", scene.Sequence, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("Run archived", zap.String("run_id", run.ID), zap.Int("scenes", len(scenes)))
	return nil
}

// GetRun loads one archived run with its scenes in sequence order.
func (s *Store) GetRun(ctx context.Context, id string) (schemas.RunRecord, []schemas.SceneRecord, error) {
	var run schemas.RunRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, task, backend, selector, started_at, finished_at, succeeded,
			prompt_tokens, completion_tokens, total_tokens
		FROM runs WHERE id = $1;
	`, id).Scan(&run.ID, &run.Task, &run.Backend, &run.Selector, &run.StartedAt, &run.FinishedAt,
		&run.Succeeded, &run.Usage.PromptTokens, &run.Usage.CompletionTokens, &run.Usage.TotalTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schemas.RunRecord{}, nil, fmt.Errorf("run %q not found", id)
		}
		return schemas.RunRecord{}, nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT sequence, scene, url, raw_elements, kept_elements,
			excluded_by_role, excluded_by_text, excluded_inert,
			prompt_tokens, completion_tokens, total_tokens, outcome, detail, observed_at
		FROM run_scenes WHERE run_id = $1 ORDER BY sequence;
	`, id)
	if err != nil {
		return schemas.RunRecord{}, nil, err
	}
	defer rows.Close()

	var scenes []schemas.SceneRecord
	for rows.Next() {
		scene := schemas.SceneRecord{RunID: id}
		var outcome string
		if err := rows.Scan(&scene.Sequence, &scene.Scene, &scene.URL, &scene.RawElements, &scene.KeptElements,
			&scene.ExcludedByRole, &scene.ExcludedByText, &scene.ExcludedInert,
			&scene.Usage.PromptTokens, &scene.Usage.CompletionTokens, &scene.Usage.TotalTokens,
			&outcome, &scene.Detail, &scene.ObservedAt); err != nil {
			return schemas.RunRecord{}, nil, err
		}
		scene.Outcome = schemas.SceneOutcome(outcome)
		scenes = append(scenes, scene)
	}
	if err := rows.Err(); err != nil {
		return schemas.RunRecord{}, nil, err
	}

	return run, scenes, nil
}
