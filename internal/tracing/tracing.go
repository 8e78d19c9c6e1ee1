// Package tracing records timed spans for the load and query paths.
//
// The model follows OpenTelemetry (trace and span IDs, parent links,
// attributes, events, status) without its SDK. Finished spans are handed to
// an Exporter; the JSON exporter writes one span per line. The global tracer
// is disabled until InitTracer is called, and a disabled tracer returns spans
// that record nothing.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// TraceID identifies one trace.
type TraceID [16]byte

func (t TraceID) String() string { return hex.EncodeToString(t[:]) }

// IsValid reports whether the ID is non-zero.
func (t TraceID) IsValid() bool { return t != TraceID{} }

// SpanID identifies one span within a trace.
type SpanID [8]byte

func (s SpanID) String() string { return hex.EncodeToString(s[:]) }

// IsValid reports whether the ID is non-zero.
func (s SpanID) IsValid() bool { return s != SpanID{} }

// StatusCode is the outcome of a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Attribute is a key/value pair on a span or event.
type Attribute struct {
	Key   string
	Value any
}

// Event is a timestamped annotation on a span.
type Event struct {
	Name       string
	Timestamp  time.Time
	Attributes []Attribute
}

// Span is one timed operation.
type Span struct {
	mu         sync.Mutex
	tracer     *Tracer
	name       string
	traceID    TraceID
	spanID     SpanID
	parentID   SpanID
	startTime  time.Time
	endTime    time.Time
	attributes []Attribute
	events     []Event
	status     StatusCode
	statusMsg  string
	ended      atomic.Bool
}

func (s *Span) recording() bool {
	return s.tracer != nil
}

// TraceID returns the span's trace.
func (s *Span) TraceID() TraceID { return s.traceID }

// SetAttribute sets an attribute on the span.
func (s *Span) SetAttribute(key string, value any) {
	if !s.recording() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes = append(s.attributes, Attribute{Key: key, Value: value})
}

// AddEvent adds an event to the span.
func (s *Span) AddEvent(name string, attrs ...Attribute) {
	if !s.recording() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Name: name, Timestamp: time.Now(), Attributes: attrs})
}

// SetStatus sets the span status.
func (s *Span) SetStatus(code StatusCode, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
	s.statusMsg = message
}

// RecordError records err as an event and marks the span failed. A nil
// error marks it successful.
func (s *Span) RecordError(err error) {
	if err == nil {
		s.SetStatus(StatusOK, "")
		return
	}
	s.AddEvent("exception",
		Attribute{Key: "exception.type", Value: fmt.Sprintf("%T", err)},
		Attribute{Key: "exception.message", Value: err.Error()},
	)
	s.SetStatus(StatusError, err.Error())
}

// End finishes the span and exports it. Later calls do nothing.
func (s *Span) End() {
	if s.ended.Swap(true) {
		return
	}

	s.mu.Lock()
	s.endTime = time.Now()
	s.mu.Unlock()

	if s.recording() {
		s.tracer.exporter.ExportSpan(s.Data())
	}
}

// Duration returns the span duration, or the time elapsed if still open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endTime.IsZero() {
		return time.Since(s.startTime)
	}
	return s.endTime.Sub(s.startTime)
}

// SpanData is the exported form of a span.
type SpanData struct {
	Name       string         `json:"name"`
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Duration   time.Duration  `json:"duration_ns"`
	Status     string         `json:"status"`
	StatusMsg  string         `json:"status_message,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Events     []EventData    `json:"events,omitempty"`
}

// EventData is the exported form of an event.
type EventData struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func attrMap(attrs []Attribute) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

// Data returns a snapshot of the span.
func (s *Span) Data() SpanData {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]EventData, len(s.events))
	for i, e := range s.events {
		events[i] = EventData{Name: e.Name, Timestamp: e.Timestamp, Attributes: attrMap(e.Attributes)}
	}

	parentID := ""
	if s.parentID.IsValid() {
		parentID = s.parentID.String()
	}

	return SpanData{
		Name:       s.name,
		TraceID:    s.traceID.String(),
		SpanID:     s.spanID.String(),
		ParentID:   parentID,
		StartTime:  s.startTime,
		EndTime:    s.endTime,
		Duration:   s.endTime.Sub(s.startTime),
		Status:     s.status.String(),
		StatusMsg:  s.statusMsg,
		Attributes: attrMap(s.attributes),
		Events:     events,
	}
}

// Exporter receives finished spans.
type Exporter interface {
	ExportSpan(span SpanData)
	Shutdown() error
}

// NoopExporter drops every span.
type NoopExporter struct{}

func (NoopExporter) ExportSpan(SpanData) {}
func (NoopExporter) Shutdown() error     { return nil }

// JSONExporter writes each span as one JSON line.
type JSONExporter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONExporter writes spans to w.
func NewJSONExporter(w io.Writer) *JSONExporter {
	return &JSONExporter{enc: json.NewEncoder(w)}
}

// NewFileExporter appends spans to the file at path.
func NewFileExporter(path string) (*JSONExporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &JSONExporter{enc: json.NewEncoder(f), closer: f}, nil
}

// ExportSpan writes span.
func (e *JSONExporter) ExportSpan(span SpanData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(span)
}

// Shutdown closes the underlying file, if any.
func (e *JSONExporter) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// Tracer creates spans.
type Tracer struct {
	exporter Exporter
	enabled  bool
}

// NewTracer returns a tracer exporting to exporter. A nil exporter returns
// a disabled tracer.
func NewTracer(exporter Exporter) *Tracer {
	if exporter == nil {
		return &Tracer{exporter: NoopExporter{}}
	}
	return &Tracer{exporter: exporter, enabled: true}
}

// Start starts a span as a child of the span in ctx, if any.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, *Span) {
	if !t.enabled {
		return ctx, &Span{name: name, startTime: time.Now()}
	}

	span := &Span{
		tracer:     t,
		name:       name,
		startTime:  time.Now(),
		attributes: append([]Attribute(nil), attrs...),
	}

	if parent := SpanFromContext(ctx); parent != nil && parent.traceID.IsValid() {
		span.traceID = parent.traceID
		span.parentID = parent.spanID
	} else {
		rand.Read(span.traceID[:])
	}
	rand.Read(span.spanID[:])

	return ContextWithSpan(ctx, span), span
}

// Shutdown flushes and closes the exporter.
func (t *Tracer) Shutdown() error {
	return t.exporter.Shutdown()
}

type spanContextKey struct{}

// ContextWithSpan returns a new context carrying span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanContextKey{}).(*Span)
	return span
}

var (
	globalMu     sync.RWMutex
	globalTracer = NewTracer(nil)
)

// GetTracer returns the global tracer.
func GetTracer() *Tracer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalTracer
}

// InitTracer installs a global tracer exporting to exporter.
func InitTracer(exporter Exporter) *Tracer {
	t := NewTracer(exporter)
	globalMu.Lock()
	globalTracer = t
	globalMu.Unlock()
	return t
}

// Shutdown shuts down the global tracer.
func Shutdown() error {
	return GetTracer().Shutdown()
}

// StartSpan starts a span using the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, *Span) {
	return GetTracer().Start(ctx, name, attrs...)
}

// Trace runs fn inside a span named name.
func Trace(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := StartSpan(ctx, name)
	defer span.End()

	err := fn(ctx)
	span.RecordError(err)
	return err
}
