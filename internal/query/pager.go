package query

import (
	"logq/internal/filter"
	"logq/internal/store"
)

// PagerConfig sets the window size and the scroll thresholds.
type PagerConfig struct {
	// Window is the number of rows requested at a time.
	Window int
	// Low and High are selection indices inside the window; crossing them
	// shifts the window by Step towards the selection.
	Low  int
	High int
	Step int
}

// DefaultPagerConfig returns the viewer defaults.
func DefaultPagerConfig() PagerConfig {
	return PagerConfig{Window: 300, Low: 50, High: 250, Step: 100}
}

// Position is an absolute jump target.
type Position int

const (
	Top Position = iota
	Middle
	Bottom
)

// Pager keeps a caller's view of the loaded window and decides when to ask
// for another one. It is not safe for concurrent use.
type Pager struct {
	cfg PagerConfig

	filters []filter.Rule
	offset  int
	total   int
	rows    []store.Record

	lastID  uint64
	waiting bool
}

// NewPager returns a pager for a store of total rows. A zero Window takes
// the default; zero Low, High and Step are derived from Window in the
// default proportions (1/6, 5/6 and 1/3).
func NewPager(cfg PagerConfig, total int) *Pager {
	if cfg.Window <= 0 {
		cfg.Window = DefaultPagerConfig().Window
	}
	if cfg.Low <= 0 {
		cfg.Low = max(1, cfg.Window/6)
	}
	if cfg.High <= 0 {
		cfg.High = cfg.Window - cfg.Window/6
	}
	if cfg.Step <= 0 {
		cfg.Step = max(1, cfg.Window/3)
	}
	return &Pager{cfg: cfg, total: total}
}

// Config returns the effective configuration.
func (p *Pager) Config() PagerConfig { return p.cfg }

// Offset returns the offset of the current window.
func (p *Pager) Offset() int { return p.offset }

// Total returns the number of rows matching the current filters, as of the
// last accepted response.
func (p *Pager) Total() int { return p.total }

// Rows returns the current window.
func (p *Pager) Rows() []store.Record { return p.rows }

// Filters returns the active filters.
func (p *Pager) Filters() []filter.Rule { return p.filters }

func (p *Pager) request(offset int) Request {
	p.lastID++
	p.waiting = true
	return Request{
		ID:      p.lastID,
		Offset:  max(0, offset),
		Limit:   p.cfg.Window,
		Filters: p.filters,
	}
}

// Reload requests the current window again.
func (p *Pager) Reload() Request {
	return p.request(p.offset)
}

// SetFilters replaces the filters and requests the first window.
func (p *Pager) SetFilters(rules []filter.Rule) Request {
	p.filters = rules
	return p.request(0)
}

// Move is called with the selected index inside the current window. It
// returns a request when the selection crossed a threshold and rows exist
// in that direction. No request is issued while one is outstanding.
func (p *Pager) Move(selection int) (Request, bool) {
	if p.waiting {
		return Request{}, false
	}

	switch {
	case selection < p.cfg.Low && p.offset > 0:
		return p.request(p.offset - p.cfg.Step), true
	case selection > p.cfg.High && p.offset+len(p.rows) < p.total:
		return p.request(p.offset + p.cfg.Step), true
	}
	return Request{}, false
}

// Jump requests the window for an absolute position.
func (p *Pager) Jump(pos Position) Request {
	switch pos {
	case Bottom:
		// The service moves the offset back to fill the window.
		return p.request(p.total)
	case Middle:
		return p.request(p.total/2 - p.cfg.Window/2)
	default:
		return p.request(0)
	}
}

// Accept installs resp if it answers the latest request. Responses to older
// requests are ignored. delta is how far the window start moved; callers
// subtract it from their selection to keep the same row selected.
func (p *Pager) Accept(resp Response) (delta int, ok bool) {
	if resp.ID != p.lastID {
		return 0, false
	}
	p.waiting = false
	if resp.Err != nil {
		return 0, false
	}

	delta = resp.Offset - p.offset
	p.offset = resp.Offset
	p.total = resp.Total
	p.rows = resp.Rows
	return delta, true
}
