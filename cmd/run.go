package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/askbatch/internal/batch"
	"github.com/xkilldash9x/askbatch/internal/browser"
	"github.com/xkilldash9x/askbatch/internal/chat"
	"github.com/xkilldash9x/askbatch/internal/config"
	"github.com/xkilldash9x/askbatch/internal/journal"
	"github.com/xkilldash9x/askbatch/internal/report"
	"github.com/xkilldash9x/askbatch/internal/retry"
)

const shutdownTimeout = 15 * time.Second

// Collaborators are function variables so tests can run the batch flow
// against a scripted surface and without a database.
var (
	openSurface    = openBrowserSurface
	connectJournal = connectPostgresJournal
)

// openBrowserSurface launches Chrome and opens the chat page. The returned
// function shuts the browser down.
func openBrowserSurface(ctx context.Context, cfg *config.Config, logger *zap.Logger) (chat.Surface, func(context.Context) error, error) {
	manager, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, nil, err
	}
	page, err := manager.Open(ctx, cfg.Surface)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = manager.Shutdown(shutdownCtx)
		return nil, nil, err
	}
	return page, manager.Shutdown, nil
}

// runJournal is the part of the journal the batch flow uses.
type runJournal interface {
	chat.Recorder
	StartRun(ctx context.Context, runID, source string, total int) error
	FinishRun(ctx context.Context, runID string, attempted int, aborted bool) error
}

// connectPostgresJournal opens the pool and prepares the journal tables.
func connectPostgresJournal(ctx context.Context, url string, logger *zap.Logger) (runJournal, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	j, err := journal.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := j.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return j, pool.Close, nil
}

// runBatch loads the questions, asks them and writes the answers back. The
// table is saved whatever way the run ends, so partial results survive an
// abort or an interrupt.
func runBatch(ctx context.Context, cfg *config.Config, out io.Writer, summaryFormat string, logger *zap.Logger) error {
	store, err := batch.Open(cfg.Batch.Path, batch.Options{Sheet: cfg.Batch.Sheet})
	if err != nil {
		return err
	}
	table, err := store.Load()
	if err != nil {
		return err
	}
	questions, err := table.Questions(cfg.Batch.QuestionColumn)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		logger.Info("No questions found; nothing to do.",
			zap.String("path", store.Path()), zap.Int("column", cfg.Batch.QuestionColumn))
		return nil
	}
	logger.Info("Questions loaded.", zap.String("path", store.Path()), zap.Int("count", len(questions)))

	runID := uuid.New().String()
	var recorders []chat.Recorder
	if cfg.Batch.Checkpoint {
		recorders = append(recorders, batch.NewCheckpoint(store, table, cfg.Batch.OutputColumn, logger))
	}

	var jrnl runJournal
	if cfg.Database.URL != "" {
		j, closeJournal, err := connectJournal(ctx, cfg.Database.URL, logger)
		if err != nil {
			return err
		}
		defer closeJournal()
		if err := j.StartRun(ctx, runID, store.Path(), len(questions)); err != nil {
			return err
		}
		jrnl = j
		recorders = append(recorders, j)
	}

	surface, shutdown, err := openSurface(ctx, cfg, logger)
	if err != nil {
		if jrnl != nil {
			// Close the journal entry so the run does not appear to be in progress.
			finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if ferr := jrnl.FinishRun(finishCtx, runID, 0, false); ferr != nil {
				logger.Warn("Failed to record run end.", zap.Error(ferr))
			}
		}
		return fmt.Errorf("failed to open chat surface: %w", err)
	}

	runner := chat.NewRunner(surface, chat.Options{
		Input: retry.Policy{MaxAttempts: cfg.Session.InputAttempts, Interval: cfg.Session.InputInterval},
		Response: retry.Policy{
			MaxAttempts: retry.Attempts(cfg.Session.ResponseTimeout, cfg.Session.ResponseInterval),
			Interval:    cfg.Session.ResponseInterval,
		},
		StablePolls:      cfg.Session.StablePolls,
		Settle:           cfg.Session.SettleInterval,
		IgnorePriorTurns: cfg.Session.IgnorePriorTurns,
		Recorders:        recorders,
		RunID:            runID,
	}, logger)

	started := time.Now()
	res, runErr := runner.Run(ctx, questions)
	finished := time.Now()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := table.Apply(cfg.Batch.OutputColumn, questions, res.Outcomes); err != nil {
		errs = append(errs, fmt.Errorf("failed to apply outcomes: %w", err))
	} else if err := store.Save(table); err != nil {
		errs = append(errs, fmt.Errorf("failed to save outcomes: %w", err))
	} else {
		logger.Info("Outcomes saved.", zap.String("path", store.Path()), zap.Int("written", res.Attempted()))
	}

	// The run context may be canceled already; the bookkeeping still has to happen.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	var cleanup errgroup.Group
	if jrnl != nil {
		cleanup.Go(func() error {
			if err := jrnl.FinishRun(cleanupCtx, runID, res.Attempted(), res.Aborted); err != nil {
				logger.Warn("Failed to record run end.", zap.Error(err))
			}
			return nil
		})
	}
	cleanup.Go(func() error {
		if err := shutdown(cleanupCtx); err != nil {
			logger.Warn("Error during browser shutdown.", zap.Error(err))
		}
		return nil
	})
	_ = cleanup.Wait()

	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	summary := report.Summarize(res, len(questions), interrupted, started, finished)
	if err := summary.Write(out, summaryFormat); err != nil {
		errs = append(errs, fmt.Errorf("failed to write summary: %w", err))
	}

	return errors.Join(errs...)
}
