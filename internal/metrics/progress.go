package metrics

// Progress is the shared observability handle for one load. The ingest
// goroutines write it; anything else only reads.
type Progress struct {
	registry *Registry

	// TotalBytes is the size of the input file.
	TotalBytes *Counter
	// ParsedBytes is the number of input bytes consumed by the parser. It
	// advances per line, so bytes still buffered ahead of the parser are not
	// counted; the remainder (a stripped BOM, or the UTF-16 overhead) is added
	// once the last batch has been handed off.
	ParsedBytes *Counter
	// RowsParsed counts rows handed to the store writer.
	RowsParsed *Counter
	// RowsInserted counts rows written to the store.
	RowsInserted *Counter

	// LinesDropped counts unparseable lines that could not be attached to a
	// previous row.
	LinesDropped *Counter
	// ParseFailures counts every line the parser rejected, including those
	// merged as continuations.
	ParseFailures *Counter
	// Batches counts batches inserted.
	Batches *Counter

	// BatchesQueued is the number of batches sent by the producer and not
	// yet taken by the consumer.
	BatchesQueued *Gauge
	// Committed is 1 once the load transaction has committed.
	Committed *Gauge

	// BatchInsertDuration observes the time taken by each batch insert.
	BatchInsertDuration *Histogram
	// QueryDuration observes the time taken by each windowed read.
	QueryDuration *Histogram
}

// NewProgress registers the progress metrics in registry. A nil registry
// gets a fresh one under the "logq" namespace.
func NewProgress(registry *Registry) *Progress {
	if registry == nil {
		registry = NewRegistry("logq")
	}

	return &Progress{
		registry: registry,

		TotalBytes:    registry.RegisterCounter("input_bytes_total", "Size of the input file in bytes"),
		ParsedBytes:   registry.RegisterCounter("parsed_bytes_total", "Input bytes consumed by the parser"),
		RowsParsed:    registry.RegisterCounter("rows_parsed_total", "Rows produced by the parser"),
		RowsInserted:  registry.RegisterCounter("rows_inserted_total", "Rows inserted into the store"),
		LinesDropped:  registry.RegisterCounter("lines_dropped_total", "Unparseable lines with no row to continue"),
		ParseFailures: registry.RegisterCounter("parse_failures_total", "Lines rejected by the parser"),
		Batches:       registry.RegisterCounter("batches_total", "Row batches inserted"),

		BatchesQueued: registry.RegisterGauge("batches_queued", "Batches waiting between producer and consumer"),
		Committed:     registry.RegisterGauge("load_committed", "1 once the load transaction has committed"),

		BatchInsertDuration: registry.RegisterHistogram("batch_insert_duration_seconds", "Time to insert one batch", nil),
		QueryDuration:       registry.RegisterHistogram("query_duration_seconds", "Time to serve one windowed read", nil),
	}
}

// Registry returns the registry holding the progress metrics.
func (p *Progress) Registry() *Registry {
	return p.registry
}

// Loaded reports whether every input byte has been parsed, every parsed row
// inserted and the transaction committed.
func (p *Progress) Loaded() bool {
	return p.Committed.Value() == 1 &&
		p.ParsedBytes.Value() >= p.TotalBytes.Value() &&
		p.RowsParsed.Value() == p.RowsInserted.Value()
}

// Fraction returns parsed bytes over total bytes in [0, 1].
func (p *Progress) Fraction() float64 {
	total := p.TotalBytes.Value()
	if total == 0 {
		return 1
	}
	f := float64(p.ParsedBytes.Value()) / float64(total)
	if f > 1 {
		f = 1
	}
	return f
}
