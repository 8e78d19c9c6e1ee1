package ingest

import (
	"context"
	"log/slog"
	"time"

	"logq/internal/logging"
	"logq/internal/metrics"
	"logq/internal/parser"
	"logq/internal/store"
)

// Consumer writes row batches to the store in a single transaction.
type Consumer struct {
	store     *store.Store
	batchSize int
	progress  *metrics.Progress
	logger    *slog.Logger
}

// NewConsumer returns a consumer writing to st.
func NewConsumer(st *store.Store, batchSize int, progress *metrics.Progress, logger *slog.Logger) *Consumer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if progress == nil {
		progress = metrics.NewProgress(nil)
	}
	return &Consumer{
		store:     st,
		batchSize: batchSize,
		progress:  progress,
		logger:    logging.OrDefault(logger),
	}
}

// Run inserts batches from in until it is closed, then commits. Any insert
// error or cancellation of ctx rolls the transaction back.
func (c *Consumer) Run(ctx context.Context, in <-chan []*parser.Row) (err error) {
	w, err := c.store.Begin(ctx, c.batchSize)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := w.Rollback(); rbErr != nil {
				c.logger.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-in:
			if !ok {
				if err := w.Commit(); err != nil {
					return err
				}
				c.progress.Committed.Set(1)
				return nil
			}
			c.progress.BatchesQueued.Add(-1)

			start := time.Now()
			if err := w.Insert(ctx, batch); err != nil {
				return err
			}
			c.progress.BatchInsertDuration.Since(start)
			c.progress.RowsInserted.Add(uint64(len(batch)))
			c.progress.Batches.Inc()
		}
	}
}
