package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"logq/internal/logging"
	"logq/internal/metrics"
	"logq/internal/parser"
)

// DefaultBatchSize is the number of rows per batch.
const DefaultBatchSize = 64

const (
	readBufferSize = 1 << 20
	// ctxCheckEvery bounds how many lines are read between cancellation
	// checks when no batch is being sent.
	ctxCheckEvery = 4096
)

// Producer turns a line stream into row batches.
type Producer struct {
	parser    *parser.Parser
	batchSize int
	progress  *metrics.Progress
	logger    *slog.Logger
}

// NewProducer returns a producer. batchSize <= 0 selects DefaultBatchSize.
func NewProducer(p *parser.Parser, batchSize int, progress *metrics.Progress, logger *slog.Logger) *Producer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if progress == nil {
		progress = metrics.NewProgress(nil)
	}
	return &Producer{
		parser:    p,
		batchSize: batchSize,
		progress:  progress,
		logger:    logging.OrDefault(logger),
	}
}

// RunFile opens path, records its size and runs the producer over it.
func (p *Producer) RunFile(ctx context.Context, path string, out chan<- []*parser.Row) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	p.progress.TotalBytes.Add(uint64(info.Size()))

	return p.Run(ctx, f, out)
}

// Run reads r to the end. Every complete batch is sent on out; at end of
// input the last pending row and any partial batch are sent and out is
// closed. On error out is left open and the error returned, so a consumer
// must also watch ctx.
func (p *Producer) Run(ctx context.Context, r io.Reader, out chan<- []*parser.Row) error {
	counted := &countingReader{r: r}
	br := bufio.NewReaderSize(transform.NewReader(counted, unicode.BOMOverride(transform.Nop)), readBufferSize)

	var (
		pending  *parser.Row
		prevTerm string
		lineNo   int
		consumed uint64
		batch    = make([]*parser.Row, 0, p.batchSize)
	)

	send := func() error {
		if len(batch) == 0 {
			return nil
		}
		p.progress.BatchesQueued.Add(1)
		select {
		case out <- batch:
		case <-ctx.Done():
			p.progress.BatchesQueued.Add(-1)
			return ctx.Err()
		}
		batch = make([]*parser.Row, 0, p.batchSize)
		return nil
	}

	push := func(row *parser.Row) error {
		batch = append(batch, row)
		p.progress.RowsParsed.Inc()
		if len(batch) == p.batchSize {
			return send()
		}
		return nil
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}
		eof := err != nil

		if line != "" {
			lineNo++
			consumed += uint64(len(line))
			p.progress.ParsedBytes.Add(uint64(len(line)))
			if lineNo%ctxCheckEvery == 0 && ctx.Err() != nil {
				return ctx.Err()
			}

			text, term := splitTerminator(line)
			row, perr := p.parser.ParseLine(text)

			switch {
			case perr == nil:
				if pending != nil {
					if err := push(pending); err != nil {
						return err
					}
				}
				pending = row

			case pending != nil && pending.AppendContinuation(prevTerm, text):
				p.progress.ParseFailures.Inc()
				p.logger.Debug("line appended to previous row", "line", lineNo, "error", perr)

			default:
				p.progress.ParseFailures.Inc()
				p.progress.LinesDropped.Inc()
				p.logger.Debug("unparseable line dropped", "line", lineNo, "error", perr)
			}

			prevTerm = term
		}

		if eof {
			break
		}
	}

	if pending != nil {
		if err := push(pending); err != nil {
			return err
		}
	}
	if err := send(); err != nil {
		return err
	}
	if counted.n > consumed {
		p.progress.ParsedBytes.Add(counted.n - consumed)
	}

	close(out)
	return nil
}

// splitTerminator separates a line from its "\n" or "\r\n" terminator.
func splitTerminator(line string) (text, term string) {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2], "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// countingReader counts the raw bytes read from the input.
type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}
