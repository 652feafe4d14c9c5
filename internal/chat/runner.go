package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/retry"
)

// Recorder is notified of every outcome as soon as it is produced, so that a
// crash or interrupt loses at most the question in flight.
type Recorder interface {
	Record(ctx context.Context, runID string, q Question, o Outcome) error
}

// Options configures a Runner.
type Options struct {
	// Input bounds the wait for an input control before each question.
	Input retry.Policy
	// Response bounds the wait for a reply after each submission.
	Response retry.Policy
	// StablePolls is how many consecutive polls must agree on a reply.
	StablePolls int
	// Settle is the pause after each recorded question, letting the page go idle.
	Settle time.Duration
	// IgnorePriorTurns restricts reply detection to turns rendered after submission.
	IgnorePriorTurns bool
	Recorders        []Recorder
	// RunID identifies the run in logs and recorders. A random one is used if empty.
	RunID string
}

// Runner is the session loop. It processes questions strictly in order with
// one submission in flight, since the chat surface holds a single
// conversation and overlapping submissions would interleave replies.
type Runner struct {
	surface Surface
	locator *Locator
	poller  *Poller
	opts    Options
	runID   string
	logger  *zap.Logger
}

// NewRunner creates a Runner that owns surface for the duration of Run.
func NewRunner(surface Surface, opts Options, logger *zap.Logger) *Runner {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	log := logger.Named("runner").With(zap.String("run_id", runID))
	return &Runner{
		surface: surface,
		locator: NewLocator(surface, opts.Input, log),
		poller:  NewPoller(surface, opts.Response, opts.StablePolls, log),
		opts:    opts,
		runID:   runID,
		logger:  log,
	}
}

// RunID returns the identifier used for this runner's results.
func (r *Runner) RunID() string { return r.runID }

// Run asks every question in order. The returned Result always holds the
// outcomes recorded so far, also when an error is returned:
//   - ErrNoInputControl: the surface never offered an input; the failing
//     question is recorded and the remaining ones are not attempted.
//   - a context error: the run was interrupted; the question in flight is
//     not recorded.
func (r *Runner) Run(ctx context.Context, questions []Question) (Result, error) {
	res := Result{RunID: r.runID, Outcomes: make([]Outcome, 0, len(questions))}
	r.logger.Info("Starting run.", zap.Int("questions", len(questions)))

	for i, q := range questions {
		log := r.logger.With(zap.Int("question", q.Index), zap.Int("total", len(questions)))
		log.Info("Asking question.", zap.String("state", string(StatePending)), zap.String("text", preview(q.Text)))

		outcome, err := r.ask(ctx, log, q)
		if err != nil {
			log.Warn("Run interrupted.", zap.Error(err))
			return res, err
		}

		res.Outcomes = append(res.Outcomes, outcome)
		r.record(ctx, log, q, outcome)

		if outcome.Failure == NoInputControl {
			res.Aborted = true
			log.Error("No input control found; aborting run.",
				zap.String("state", string(StateAbortedNoInput)),
				zap.Int("unattempted", len(questions)-i-1))
			return res, outcome.Failure.Err()
		}

		if outcome.OK() {
			log.Info("Reply recorded.", zap.String("state", string(StateRecorded)), zap.String("reply", preview(outcome.Text)))
		} else {
			log.Warn("Question failed.", zap.String("state", string(StateRecorded)), zap.Stringer("reason", outcome.Failure))
		}

		if i < len(questions)-1 {
			if err := retry.Sleep(ctx, r.opts.Settle); err != nil {
				return res, err
			}
		}
	}

	r.logger.Info("Run complete.", zap.Int("attempted", res.Attempted()))
	return res, nil
}

// ask drives one question through acquiring, submitting and awaiting. Only
// context errors are returned; every other fault becomes a failed outcome.
func (r *Runner) ask(ctx context.Context, log *zap.Logger, q Question) (Outcome, error) {
	log.Debug("State change.", zap.String("state", string(StateAcquiring)))
	in, err := r.locator.Acquire(ctx)
	if err != nil {
		if reason := Reason(err); reason != NoFailure {
			return Failed(reason), nil
		}
		return Outcome{}, err
	}

	baseline := 0
	if r.opts.IgnorePriorTurns {
		if baseline, err = r.poller.Baseline(ctx); err != nil {
			if Reason(err) != NoResponse {
				return Outcome{}, err
			}
			// Submitting now could attribute an earlier reply to this question.
			log.Warn("Conversation turns unreadable before submission; question skipped.", zap.Error(err))
			return Failed(NoResponse), nil
		}
	}

	log.Debug("State change.", zap.String("state", string(StateSubmitting)), zap.Int("baseline_turns", baseline))
	if err := r.surface.Submit(ctx, in, q.Text); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		// Submission is not retried; without it no reply can follow.
		log.Warn("Submission failed.", zap.Error(err))
		return Failed(NoResponse), nil
	}

	log.Debug("State change.", zap.String("state", string(StateAwaiting)))
	reply, err := r.poller.Await(ctx, baseline)
	if err != nil {
		if reason := Reason(err); reason != NoFailure {
			return Failed(reason), nil
		}
		return Outcome{}, err
	}
	return Answered(reply), nil
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, q Question, o Outcome) {
	// Outcomes already produced must reach the recorders even during shutdown.
	recCtx := context.WithoutCancel(ctx)
	for _, rec := range r.opts.Recorders {
		if err := rec.Record(recCtx, r.runID, q, o); err != nil {
			log.Warn("Recorder failed.", zap.Error(err))
		}
	}
}

// preview shortens text for log lines.
func preview(s string) string {
	const limit = 60
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
