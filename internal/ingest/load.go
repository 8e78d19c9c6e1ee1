package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"logq/internal/format"
	"logq/internal/logging"
	"logq/internal/metrics"
	"logq/internal/parser"
	"logq/internal/store"
	"logq/internal/tracing"
)

// DefaultChannelCapacity is the number of batches buffered between the
// producer and the consumer.
const DefaultChannelCapacity = 16

// Options configures a load.
type Options struct {
	// Input is the log file to read.
	Input string
	// StorePath is the SQLite file; any existing file is replaced.
	StorePath string
	// Format describes the log lines.
	Format *format.Spec

	BatchSize       int
	ChannelCapacity int
	CacheSizeKiB    int

	// Progress receives the load counters. Nil allocates a private one.
	Progress *metrics.Progress
	Logger   *slog.Logger
}

// Load parses opts.Input into a fresh store and returns it once the insert
// transaction has committed. The caller owns the returned store.
func Load(ctx context.Context, opts Options) (*store.Store, error) {
	return load(ctx, opts, func(ctx context.Context, p *Producer, out chan<- []*parser.Row) error {
		return p.RunFile(ctx, opts.Input, out)
	})
}

// LoadReader is Load over an already open stream. TotalBytes is left
// untouched.
func LoadReader(ctx context.Context, r io.Reader, opts Options) (*store.Store, error) {
	return load(ctx, opts, func(ctx context.Context, p *Producer, out chan<- []*parser.Row) error {
		return p.Run(ctx, r, out)
	})
}

type produceFunc func(ctx context.Context, p *Producer, out chan<- []*parser.Row) error

func load(ctx context.Context, opts Options, produce produceFunc) (st *store.Store, err error) {
	if opts.Format == nil {
		opts.Format = format.Builtin()
	}
	if opts.ChannelCapacity <= 0 {
		opts.ChannelCapacity = DefaultChannelCapacity
	}
	if opts.Progress == nil {
		opts.Progress = metrics.NewProgress(nil)
	}
	logger := logging.OrDefault(opts.Logger).With("component", "ingest")

	ctx, span := tracing.StartSpan(ctx, "ingest.load",
		tracing.Attribute{Key: "input", Value: opts.Input},
		tracing.Attribute{Key: "store", Value: opts.StorePath},
	)
	defer func() {
		span.RecordError(err)
		span.End()
	}()

	st, err = store.Create(opts.StorePath, opts.Format.Columns, store.Options{CacheSizeKiB: opts.CacheSizeKiB})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	producer := NewProducer(parser.New(opts.Format), opts.BatchSize, opts.Progress, logger)
	consumer := NewConsumer(st, opts.BatchSize, opts.Progress, logger)

	batches := make(chan []*parser.Row, opts.ChannelCapacity)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tracing.Trace(gctx, "ingest.produce", func(ctx context.Context) error {
			return produce(ctx, producer, batches)
		})
	})
	g.Go(func() error {
		return tracing.Trace(gctx, "ingest.consume", func(ctx context.Context) error {
			return consumer.Run(ctx, batches)
		})
	})

	if err = g.Wait(); err != nil {
		st.Close()
		return nil, fmt.Errorf("load %s: %w", opts.Input, err)
	}

	span.SetAttribute("rows", opts.Progress.RowsInserted.Value())
	span.SetAttribute("dropped", opts.Progress.LinesDropped.Value())
	logger.Info("load complete",
		"rows", opts.Progress.RowsInserted.Value(),
		"dropped", opts.Progress.LinesDropped.Value(),
		"bytes", opts.Progress.ParsedBytes.Value(),
		"elapsed", span.Duration().Round(time.Millisecond),
	)

	return st, nil
}
