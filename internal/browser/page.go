package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/chat"
	"github.com/xkilldash9x/askbatch/internal/config"
)

// Page drives one chat surface in a browser tab. Inputs are cdp.NodeID
// values and turns are *cdp.Node values.
type Page struct {
	tabCtx        context.Context
	selectors     config.SurfaceConfig
	actionTimeout time.Duration
	logger        *zap.Logger
}

var _ chat.Surface = (*Page)(nil)

func newPage(tabCtx context.Context, selectors config.SurfaceConfig, actionTimeout time.Duration, logger *zap.Logger) *Page {
	return &Page{
		tabCtx:        tabCtx,
		selectors:     selectors,
		actionTimeout: actionTimeout,
		logger:        logger.Named("page"),
	}
}

// run executes actions on the tab, bounded by ctx and the action timeout.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(p.tabCtx, ctx)
	defer cancel()
	if p.actionTimeout > 0 {
		var cancelTimeout context.CancelFunc
		opCtx, cancelTimeout = context.WithTimeout(opCtx, p.actionTimeout)
		defer cancelTimeout()
	}
	return chromedp.Run(opCtx, actions...)
}

// FindInput returns the first enabled input control that is rendered with a
// non-empty box, or chat.ErrNotFound. Hidden fallbacks matching the selector
// are skipped, since keystrokes sent to them never reach the conversation.
func (p *Page) FindInput(ctx context.Context) (chat.Input, error) {
	var (
		id    cdp.NodeID
		found bool
	)
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(p.selectors.InputSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)).Do(ctx); err != nil {
			return err
		}
		for _, n := range nodes {
			if _, disabled := n.Attribute("disabled"); disabled {
				continue
			}
			if !rendered(ctx, n.NodeID) {
				p.logger.Debug("Skipping hidden input candidate.", zap.Int64("node_id", int64(n.NodeID)))
				continue
			}
			id, found = n.NodeID, true
			return nil
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, chat.ErrNotFound
	}
	return id, nil
}

// rendered reports whether the node has a layout box with a non-zero size.
// Elements under display:none have no box model at all.
func rendered(ctx context.Context, id cdp.NodeID) bool {
	box, err := dom.GetBoxModel().WithNodeID(id).Do(ctx)
	if err != nil || box == nil {
		return false
	}
	return box.Width > 0 && box.Height > 0
}

// Submit types text into the input and presses Enter. A line break inside
// the text would submit early, so whitespace runs are sent as one space.
func (p *Page) Submit(ctx context.Context, in chat.Input, text string) error {
	id, ok := in.(cdp.NodeID)
	if !ok {
		return fmt.Errorf("unexpected input handle %T", in)
	}
	target := []cdp.NodeID{id}
	p.logger.Debug("Typing question.", zap.Int64("node_id", int64(id)), zap.Int("runes", len([]rune(text))))
	return p.run(ctx,
		chromedp.Focus(target, chromedp.ByNodeID),
		chromedp.SendKeys(target, flatten(text), chromedp.ByNodeID),
		chromedp.SendKeys(target, kb.Enter, chromedp.ByNodeID),
	)
}

// Turns returns the conversation turns in document order.
func (p *Page) Turns(ctx context.Context) ([]chat.Turn, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(p.selectors.TurnSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	turns := make([]chat.Turn, len(nodes))
	for i, n := range nodes {
		turns[i] = n
	}
	return turns, nil
}

// AssistantText returns the rendered text of the assistant part of turn, or
// chat.ErrNotFound when the turn has none.
func (p *Page) AssistantText(ctx context.Context, turn chat.Turn) (string, error) {
	node, ok := turn.(*cdp.Node)
	if !ok {
		return "", fmt.Errorf("unexpected turn handle %T", turn)
	}

	var text string
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var parts []*cdp.Node
		if err := chromedp.Nodes(p.selectors.AssistantSelector, &parts,
			chromedp.ByQueryAll, chromedp.FromNode(node), chromedp.AtLeast(0)).Do(ctx); err != nil {
			return err
		}
		if len(parts) == 0 {
			return chat.ErrNotFound
		}
		last := parts[len(parts)-1]
		return chromedp.Text([]cdp.NodeID{last.NodeID}, &text, chromedp.ByNodeID).Do(ctx)
	}))
	if err != nil {
		return "", err
	}
	return text, nil
}

func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
