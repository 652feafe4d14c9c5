package chat

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/retry"
)

// LatestReply scans assistant texts from newest to oldest and returns the
// first one that is non-blank, trimmed. Older turns stay in the DOM, so a
// forward scan would return a stale reply.
func LatestReply(texts []string) (string, bool) {
	for i := len(texts) - 1; i >= 0; i-- {
		if t := strings.TrimSpace(texts[i]); t != "" {
			return t, true
		}
	}
	return "", false
}

// Poller waits for a completed assistant reply. The page exposes no "done"
// signal; non-empty text that is stable across StablePolls observations is
// the proxy.
type Poller struct {
	surface     Surface
	policy      retry.Policy
	stablePolls int
	logger      *zap.Logger
}

// NewPoller creates a Poller. stablePolls below one is treated as one.
func NewPoller(surface Surface, policy retry.Policy, stablePolls int, logger *zap.Logger) *Poller {
	if stablePolls < 1 {
		stablePolls = 1
	}
	return &Poller{surface: surface, policy: policy, stablePolls: stablePolls, logger: logger.Named("poller")}
}

// Baseline returns the number of turns currently rendered. Passing it to Await
// restricts the search to turns rendered after this call. Enumeration is
// retried under the response policy; ErrNoResponse means the count could not
// be read.
func (p *Poller) Baseline(ctx context.Context) (int, error) {
	n, err := retry.Poll(ctx, p.policy, func(ctx context.Context) (int, bool) {
		turns, err := p.surface.Turns(ctx)
		if err != nil {
			p.logger.Debug("Turn enumeration failed while reading baseline.", zap.Error(err))
			return 0, false
		}
		return len(turns), true
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return 0, ErrNoResponse
		}
		return 0, err
	}
	return n, nil
}

// Await polls until a reply is found in a turn at index baseline or later. It
// fails with ErrNoResponse when the budget is spent, or with a context error
// if ctx ends first.
func (p *Poller) Await(ctx context.Context, baseline int) (string, error) {
	var (
		last string
		seen int
	)
	reply, err := retry.Poll(ctx, p.policy, func(ctx context.Context) (string, bool) {
		text, ok := LatestReply(p.snapshot(ctx, baseline))
		if !ok {
			last, seen = "", 0
			return "", false
		}
		if text != last {
			last, seen = text, 0
		}
		seen++
		return text, seen >= p.stablePolls
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return "", ErrNoResponse
		}
		return "", err
	}
	return reply, nil
}

// snapshot reads the assistant text of every turn from baseline on. Turns
// that cannot be read are recorded as blank: they are user turns, still
// streaming, or were detached while being read.
func (p *Poller) snapshot(ctx context.Context, baseline int) []string {
	turns, err := p.surface.Turns(ctx)
	if err != nil {
		p.logger.Debug("Turn enumeration failed.", zap.Error(err))
		return nil
	}
	if baseline < 0 {
		baseline = 0
	}
	if baseline > len(turns) {
		return nil
	}
	texts := make([]string, 0, len(turns)-baseline)
	for _, turn := range turns[baseline:] {
		text, err := p.surface.AssistantText(ctx, turn)
		if err != nil {
			text = ""
		}
		texts = append(texts, text)
	}
	return texts
}
