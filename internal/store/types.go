// Package store provides the SQLite row store for parsed log entries.
//
// A store is rebuilt from scratch for every load: Create deletes any previous
// file, applies bulk-load pragmas (no journal, no fsync, exclusive lock) and
// creates one table whose columns follow the format's column order. Rows are
// never updated or deleted once inserted.
//
// A Store holds exactly one SQLite connection and must only be used by one
// goroutine at a time.
package store

import (
	"strconv"
	"strings"

	"logq/internal/format"
	"logq/internal/parser"
)

// Record is one stored row. Values follow the schema's column order; each is
// a string (TEXT columns) or an int64 (dates and enumeration indices).
type Record struct {
	ID     int64
	Values []any
}

// Page is the result of a windowed read.
type Page struct {
	// Offset is the effective offset of Records[0] within the matching rows.
	Offset int
	// Total is the number of rows matching the filter.
	Total   int
	Records []Record
}

// Schema describes the physical layout of the entries table.
type Schema struct {
	Columns []format.Column
}

// Resolve finds a column by SQL identifier or, failing that, by display name
// (case-insensitive).
func (s Schema) Resolve(name string) (format.Column, bool) {
	for _, c := range s.Columns {
		if c.Ident == name {
			return c, true
		}
	}
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return format.Column{}, false
}

// Render formats a record's values as display text: dates in the parser's
// layout, enumerations as their labels.
func (s Schema) Render(rec Record) []string {
	out := make([]string, len(rec.Values))
	for i, v := range rec.Values {
		switch v := v.(type) {
		case string:
			out[i] = v
		case int64:
			if i >= len(s.Columns) {
				out[i] = strconv.FormatInt(v, 10)
				continue
			}
			switch col := s.Columns[i]; col.Type {
			case format.TypeDate:
				out[i] = parser.FormatDate(v)
			case format.TypeEnumeration:
				out[i] = col.Label(v)
			default:
				out[i] = strconv.FormatInt(v, 10)
			}
		}
	}
	return out
}
