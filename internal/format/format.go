// Package format describes how a log line is tokenized: an ordered list of
// parsing instructions plus the column metadata derived from it.
//
// A format is built once at startup from a declarative document and is
// immutable afterwards. The i-th Emit instruction always pairs with the i-th
// Column; both slices are produced together by New so they cannot drift.
package format

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ColumnType is the semantic type of a column.
type ColumnType int

const (
	// TypeString is free text, stored as TEXT.
	TypeString ColumnType = iota
	// TypeDate is a timestamp, stored as INTEGER epoch milliseconds.
	TypeDate
	// TypeEnumeration is one of a fixed set of labels, stored as the INTEGER
	// index of the label.
	TypeEnumeration
)

// String returns the string representation of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeDate:
		return "date"
	case TypeEnumeration:
		return "enumeration"
	default:
		return "unknown"
	}
}

// SQLType returns the SQLite storage class used for the column type.
func (t ColumnType) SQLType() string {
	if t == TypeString {
		return "TEXT"
	}
	return "INTEGER"
}

// Column is the metadata of one emitted field.
type Column struct {
	// Name is the display name from the format document.
	Name string
	// Ident is the SQL identifier of the physical column. It is derived from
	// Name and never contains user-supplied characters outside [a-z0-9_].
	Ident string
	// Type is the semantic type.
	Type ColumnType
	// Variants holds the enumeration labels in index order.
	Variants []string
	// Width is the preferred display width. Negative means fill.
	Width int
}

// Label returns the enumeration label for idx, or the number itself when it
// is out of range.
func (c Column) Label(idx int64) string {
	if idx >= 0 && idx < int64(len(c.Variants)) {
		return c.Variants[idx]
	}
	return fmt.Sprintf("%d", idx)
}

// Op identifies a parsing instruction.
type Op uint8

const (
	OpBegin Op = iota
	OpSkip
	OpSkipUntilChar
	OpSkipUntilString
	OpEmitString
	OpEmitDate
	OpEmitEnumeration
	OpEmitRemainder
)

var opNames = [...]string{
	OpBegin:           "begin",
	OpSkip:            "skip",
	OpSkipUntilChar:   "skip_until_char",
	OpSkipUntilString: "skip_until_string",
	OpEmitString:      "emit_string",
	OpEmitDate:        "emit_date",
	OpEmitEnumeration: "emit_enumeration",
	OpEmitRemainder:   "emit_remainder",
}

// String returns the document spelling of the op.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// IsEmit reports whether the op produces a field value.
func (o Op) IsEmit() bool {
	return o >= OpEmitString
}

// ParseOp maps a document kind to an Op.
func ParseOp(kind string) (Op, bool) {
	for i, name := range opNames {
		if name == kind {
			return Op(i), true
		}
	}
	return 0, false
}

// Instruction is one step of the line-parsing program.
type Instruction struct {
	Op Op
	// N is the byte count for OpSkip.
	N int
	// Delim is the delimiter for OpSkipUntilChar and OpSkipUntilString.
	Delim string
	// Variants are the accepted labels for OpEmitEnumeration.
	Variants []string
}

// Spec is a compiled format: instructions and the columns they emit.
type Spec struct {
	Title        string
	Instructions []Instruction
	Columns      []Column
}

// Step is one entry of a format document's syntax list.
type Step struct {
	Kind     string   `json:"kind" toml:"kind" yaml:"kind"`
	Name     string   `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`
	Width    int      `json:"width,omitempty" toml:"width,omitempty" yaml:"width,omitempty"`
	Count    int      `json:"count,omitempty" toml:"count,omitempty" yaml:"count,omitempty"`
	Char     string   `json:"char,omitempty" toml:"char,omitempty" yaml:"char,omitempty"`
	String   string   `json:"string,omitempty" toml:"string,omitempty" yaml:"string,omitempty"`
	Variants []string `json:"variants,omitempty" toml:"variants,omitempty" yaml:"variants,omitempty"`
}

// Document is the declarative form of a format as it appears on disk.
type Document struct {
	Title  string `json:"title" toml:"title" yaml:"title"`
	Syntax []Step `json:"syntax" toml:"syntax" yaml:"syntax"`
}

// New compiles a document into a Spec. The document is validated first; any
// problem is returned as ValidationErrors.
func New(doc Document) (*Spec, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}

	spec := &Spec{Title: doc.Title}
	used := map[string]bool{"id": true}

	for _, st := range doc.Syntax {
		op, _ := ParseOp(st.Kind)
		ins := Instruction{Op: op}

		switch op {
		case OpSkip:
			ins.N = st.Count
		case OpSkipUntilChar:
			ins.Delim = st.Char
		case OpSkipUntilString:
			ins.Delim = st.String
		case OpEmitEnumeration:
			ins.Variants = append([]string(nil), st.Variants...)
		}
		spec.Instructions = append(spec.Instructions, ins)

		if !op.IsEmit() {
			continue
		}

		col := Column{
			Name:  st.Name,
			Ident: identFor(st.Name, used),
			Width: st.Width,
		}
		switch op {
		case OpEmitDate:
			col.Type = TypeDate
		case OpEmitEnumeration:
			col.Type = TypeEnumeration
			col.Variants = ins.Variants
		default:
			col.Type = TypeString
		}
		spec.Columns = append(spec.Columns, col)
	}

	return spec, nil
}

// identFor derives a unique SQL identifier from a display name.
func identFor(name string, used map[string]bool) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	ident := b.String()
	if ident == "" || (ident[0] >= '0' && ident[0] <= '9') || ident == "id" {
		ident = "c_" + ident
	}

	base := ident
	for i := 2; used[ident]; i++ {
		ident = fmt.Sprintf("%s_%d", base, i)
	}
	used[ident] = true
	return ident
}

// Column returns the column with the given identifier or display name
// (case-insensitive). The second result is its index.
func (s *Spec) Column(name string) (Column, int, bool) {
	for i, c := range s.Columns {
		if c.Ident == name {
			return c, i, true
		}
	}
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, i, true
		}
	}
	return Column{}, -1, false
}

// Document converts the spec back into its declarative form.
func (s *Spec) Document() Document {
	doc := Document{Title: s.Title}
	col := 0
	for _, ins := range s.Instructions {
		st := Step{Kind: ins.Op.String()}
		switch ins.Op {
		case OpSkip:
			st.Count = ins.N
		case OpSkipUntilChar:
			st.Char = ins.Delim
		case OpSkipUntilString:
			st.String = ins.Delim
		}
		if ins.Op.IsEmit() {
			c := s.Columns[col]
			col++
			st.Name = c.Name
			st.Width = c.Width
			st.Variants = c.Variants
		}
		doc.Syntax = append(doc.Syntax, st)
	}
	return doc
}

func isSingleChar(s string) bool {
	return s != "" && utf8.RuneCountInString(s) == 1
}
