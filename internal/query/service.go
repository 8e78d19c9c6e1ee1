// Package query serves windowed, filtered reads from a loaded store.
//
// A Service owns the store and answers requests on a single worker
// goroutine. Submit and Poll never block, so an interactive caller can issue
// a request on every keystroke and pick up answers on its next frame.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"logq/internal/filter"
	"logq/internal/logging"
	"logq/internal/metrics"
	"logq/internal/store"
	"logq/internal/tracing"
)

// ErrClosed is returned by Submit and Next once the service is closed.
var ErrClosed = errors.New("query: service closed")

// ErrInvalidLimit is reported for requests with a non-positive limit.
var ErrInvalidLimit = errors.New("query: limit must be positive")

// Request asks for up to Limit rows starting at Offset among the rows
// matching every filter.
type Request struct {
	ID      uint64
	Offset  int
	Limit   int
	Filters []filter.Rule
}

// Response answers the Request with the same ID.
type Response struct {
	ID uint64
	// Offset is the effective offset of Rows[0]. It differs from the
	// requested offset when fewer than Limit rows remained.
	Offset int
	Limit  int
	// Total is the number of rows matching the filters.
	Total int
	Rows  []store.Record
	Err   error
}

// Options configures a Service.
type Options struct {
	Progress *metrics.Progress
	Logger   *slog.Logger
}

// Service is the store-owning query actor.
type Service struct {
	store    *store.Store
	rowCount int
	progress *metrics.Progress
	logger   *slog.Logger

	mu        sync.Mutex
	requests  []Request
	responses []Response
	closed    bool

	wake  chan struct{}
	ready chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// New takes ownership of st and starts the worker. The row count is read
// once; the store does not change after loading.
func New(ctx context.Context, st *store.Store, opts Options) (*Service, error) {
	n, err := st.RowCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	if opts.Progress == nil {
		opts.Progress = metrics.NewProgress(nil)
	}

	s := &Service{
		store:    st,
		rowCount: n,
		progress: opts.Progress,
		logger:   logging.OrDefault(opts.Logger).With("component", "query"),
		wake:     make(chan struct{}, 1),
		ready:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.run()
	return s, nil
}

// RowCount returns the number of rows in the store.
func (s *Service) RowCount() int {
	return s.rowCount
}

// Schema returns the layout of the served rows.
func (s *Service) Schema() store.Schema {
	return s.store.Schema()
}

// Submit enqueues req. It never blocks.
func (s *Service) Submit(req Request) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	signal(s.wake)
	return nil
}

// Poll returns the oldest unread response, if any. It never blocks.
func (s *Service) Poll() (Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.responses) == 0 {
		return Response{}, false
	}
	resp := s.responses[0]
	s.responses[0] = Response{}
	s.responses = s.responses[1:]
	return resp, true
}

// Next waits for the next response.
func (s *Service) Next(ctx context.Context) (Response, error) {
	for {
		if resp, ok := s.Poll(); ok {
			return resp, nil
		}

		select {
		case <-s.ready:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-s.done:
			if resp, ok := s.Poll(); ok {
				return resp, nil
			}
			return Response{}, ErrClosed
		}
	}
}

// Close stops the worker once the request in progress has been answered,
// discards queued requests and closes the store.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done

	return s.store.Close()
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Service) run() {
	defer close(s.done)

	for {
		req, ok := s.take()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}

		resp := s.serve(req)

		s.mu.Lock()
		s.responses = append(s.responses, resp)
		s.mu.Unlock()
		signal(s.ready)

		select {
		case <-s.stop:
			return
		default:
		}
	}
}

func (s *Service) take() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.requests) == 0 {
		return Request{}, false
	}
	req := s.requests[0]
	s.requests[0] = Request{}
	s.requests = s.requests[1:]
	return req, true
}

func (s *Service) serve(req Request) Response {
	resp := Response{ID: req.ID, Offset: req.Offset, Limit: req.Limit}
	if req.Limit <= 0 {
		resp.Err = ErrInvalidLimit
		return resp
	}

	where := filter.Where(s.resolve(req.Filters))

	ctx, span := tracing.StartSpan(context.Background(), "query.window",
		tracing.Attribute{Key: "id", Value: req.ID},
		tracing.Attribute{Key: "offset", Value: req.Offset},
		tracing.Attribute{Key: "limit", Value: req.Limit},
	)
	page, err := s.store.Window(ctx, req.Offset, req.Limit, where)
	span.RecordError(err)
	span.End()
	s.progress.QueryDuration.ObserveDuration(span.Duration())

	if err != nil {
		s.logger.Error("query failed", "id", req.ID, "error", err)
		resp.Err = err
		return resp
	}

	resp.Offset = page.Offset
	resp.Total = page.Total
	resp.Rows = page.Records

	s.logger.Debug("query served",
		"id", req.ID,
		"offset", page.Offset,
		"rows", len(page.Records),
		"total", page.Total,
		"elapsed", span.Duration(),
	)
	return resp
}

// resolve maps rule columns to store identifiers, dropping rules whose
// column does not exist.
func (s *Service) resolve(rules []filter.Rule) []filter.Rule {
	if len(rules) == 0 {
		return nil
	}

	schema := s.store.Schema()
	out := make([]filter.Rule, 0, len(rules))
	for _, r := range rules {
		col, ok := schema.Resolve(r.Column)
		if !ok {
			s.logger.Warn("filter on unknown column dropped", "column", r.Column, "filter", r.String())
			continue
		}
		out = append(out, filter.Rule{Column: col.Ident, Expr: r.Expr})
	}
	return out
}
