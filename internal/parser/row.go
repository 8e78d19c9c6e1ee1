package parser

import (
	"strconv"
	"strings"
)

// Kind is the type of a parsed value.
type Kind uint8

const (
	// KindString is a byte range into the row's line.
	KindString Kind = iota
	// KindDate is epoch milliseconds.
	KindDate
	// KindInteger is a plain integer, used for enumeration indices.
	KindInteger
)

// Value is one parsed field. For KindString, Start and End delimit the
// field inside Row.Line; for the other kinds Int holds the value.
type Value struct {
	Kind  Kind
	Start int
	End   int
	Int   int64
}

// Row is one parsed log entry, possibly extended by continuation lines.
type Row struct {
	Line   string
	Values []Value

	// tail holds continuation text appended to the last field.
	tail strings.Builder
}

// Len returns the number of fields.
func (r *Row) Len() int {
	return len(r.Values)
}

// Field renders field i as text. String fields are substrings of Line and
// share its memory.
func (r *Row) Field(i int) string {
	v := r.Values[i]
	switch v.Kind {
	case KindString:
		s := r.Line[v.Start:v.End]
		if i == len(r.Values)-1 && r.tail.Len() > 0 {
			return s + r.tail.String()
		}
		return s
	case KindDate:
		return FormatDate(v.Int)
	default:
		return strconv.FormatInt(v.Int, 10)
	}
}

// Arg returns field i as a store argument: string for string fields, int64
// for dates and integers.
func (r *Row) Arg(i int) any {
	if r.Values[i].Kind == KindString {
		return r.Field(i)
	}
	return r.Values[i].Int
}

// AppendArgs appends every field of the row to dst as store arguments and
// returns the extended slice. This is where values leave the row: the
// returned strings stay valid after the row is dropped.
func (r *Row) AppendArgs(dst []any) []any {
	for i := range r.Values {
		dst = append(dst, r.Arg(i))
	}
	return dst
}

// AppendContinuation appends raw to the last field, preceded by sep (the
// terminator of the line before raw). It returns false, leaving the row
// unchanged, when the last field is not a string.
func (r *Row) AppendContinuation(sep, raw string) bool {
	if len(r.Values) == 0 || r.Values[len(r.Values)-1].Kind != KindString {
		return false
	}
	r.tail.WriteString(sep)
	r.tail.WriteString(raw)
	return true
}

// Continued reports whether continuation text has been appended.
func (r *Row) Continued() bool {
	return r.tail.Len() > 0
}
