package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/retry"
)

// Locator waits for the surface to offer an input control. Sign-in and page
// load are outside the program's control, so an absent input is tolerated for
// a bounded number of polls.
type Locator struct {
	surface Surface
	policy  retry.Policy
	logger  *zap.Logger
}

// NewLocator creates a Locator probing surface under policy.
func NewLocator(surface Surface, policy retry.Policy, logger *zap.Logger) *Locator {
	return &Locator{surface: surface, policy: policy, logger: logger.Named("locator")}
}

// Acquire returns the first input the surface reports. It fails with
// ErrNoInputControl once the budget is spent, or with a context error if ctx
// ends first.
func (l *Locator) Acquire(ctx context.Context) (Input, error) {
	in, err := retry.Poll(ctx, l.policy, func(ctx context.Context) (Input, bool) {
		in, err := l.surface.FindInput(ctx)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				l.logger.Debug("Input probe failed.", zap.Error(err))
			}
			return nil, false
		}
		return in, in != nil
	})
	if err != nil {
		if !errors.Is(err, retry.ErrExhausted) {
			return nil, err
		}
		l.logger.Debug("Input budget exhausted.", zap.Int("attempts", l.policy.MaxAttempts), zap.Error(err))
		return nil, ErrNoInputControl
	}
	return in, nil
}
