package batch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/chat"
)

// Checkpoint is a chat.Recorder that writes each outcome into the table and
// saves it immediately, so an interrupted run keeps the answers it got.
type Checkpoint struct {
	mu     sync.Mutex
	store  Store
	table  *Table
	header string
	logger *zap.Logger
}

// NewCheckpoint creates a Checkpoint writing into the header column of table.
func NewCheckpoint(store Store, table *Table, header string, logger *zap.Logger) *Checkpoint {
	return &Checkpoint{
		store:  store,
		table:  table,
		header: header,
		logger: logger.Named("checkpoint"),
	}
}

// Record applies one outcome and saves the table.
func (c *Checkpoint) Record(ctx context.Context, runID string, q chat.Question, o chat.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.table.Apply(c.header, []chat.Question{q}, []chat.Outcome{o}); err != nil {
		return err
	}
	if err := c.store.Save(c.table); err != nil {
		return err
	}
	c.logger.Debug("Checkpoint saved.", zap.String("path", c.store.Path()), zap.Int("row", q.Row))
	return nil
}
