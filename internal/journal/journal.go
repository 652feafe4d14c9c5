// Package journal keeps a PostgreSQL record of runs and their outcomes.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/chat"
)

// DBPool abstracts *pgxpool.Pool so the journal can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS askbatch_runs (
            id          TEXT PRIMARY KEY,
            source      TEXT NOT NULL,
            total       INTEGER NOT NULL,
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ,
            attempted   INTEGER,
            aborted     BOOLEAN
        );
    `
	sqlCreateOutcomes = `
        CREATE TABLE IF NOT EXISTS askbatch_outcomes (
            run_id         TEXT NOT NULL REFERENCES askbatch_runs (id),
            question_index INTEGER NOT NULL,
            source_row     INTEGER NOT NULL,
            question       TEXT NOT NULL,
            answer         TEXT NOT NULL,
            failure        TEXT NOT NULL,
            recorded_at    TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (run_id, question_index)
        );
    `
	sqlStartRun = `
        INSERT INTO askbatch_runs (id, source, total, started_at)
        VALUES ($1, $2, $3, $4);
    `
	sqlRecordOutcome = `
        INSERT INTO askbatch_outcomes (run_id, question_index, source_row, question, answer, failure, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id, question_index) DO UPDATE SET
            answer = EXCLUDED.answer,
            failure = EXCLUDED.failure,
            recorded_at = EXCLUDED.recorded_at;
    `
	sqlFinishRun = `
        UPDATE askbatch_runs SET finished_at = $2, attempted = $3, aborted = $4
        WHERE id = $1;
    `
)

// Journal writes run and outcome rows. It implements chat.Recorder.
type Journal struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

var _ chat.Recorder = (*Journal)(nil)

// New creates a journal and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Journal, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Journal{
		pool: pool,
		log:  logger.Named("journal"),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureSchema creates the journal tables if they do not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{sqlCreateRuns, sqlCreateOutcomes} {
		if _, err := j.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create journal schema: %w", err)
		}
	}
	return nil
}

// StartRun records the start of a run over total questions read from source.
func (j *Journal) StartRun(ctx context.Context, runID, source string, total int) error {
	if _, err := j.pool.Exec(ctx, sqlStartRun, runID, source, total, j.now()); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	j.log.Debug("Run started.", zap.String("run_id", runID), zap.Int("total", total))
	return nil
}

// Record stores one outcome. Recording the same question twice keeps the
// latest outcome.
func (j *Journal) Record(ctx context.Context, runID string, q chat.Question, o chat.Outcome) error {
	_, err := j.pool.Exec(ctx, sqlRecordOutcome,
		runID, q.Index, q.Row, q.Text, o.Text, o.Failure.String(), j.now())
	if err != nil {
		return fmt.Errorf("failed to record outcome of question %d: %w", q.Index, err)
	}
	return nil
}

// FinishRun records how the run ended.
func (j *Journal) FinishRun(ctx context.Context, runID string, attempted int, aborted bool) error {
	tag, err := j.pool.Exec(ctx, sqlFinishRun, runID, j.now(), attempted, aborted)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("run %s was never started", runID)
	}
	return nil
}
