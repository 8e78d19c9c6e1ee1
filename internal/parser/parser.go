package parser

import (
	"strings"

	"logq/internal/format"
)

// Parser applies one format to lines. It holds no mutable state and is safe
// for concurrent use.
type Parser struct {
	instructions []format.Instruction
	columns      []format.Column
}

// New returns a parser for spec.
func New(spec *format.Spec) *Parser {
	return &Parser{
		instructions: spec.Instructions,
		columns:      spec.Columns,
	}
}

// Columns returns the columns produced by every successful parse, in order.
func (p *Parser) Columns() []format.Column {
	return p.columns
}

// ParseLine tokenizes line. line must not contain its terminator. On success
// the row has exactly one value per column; on failure the error is a *Error
// wrapping one of the package's sentinel errors.
func (p *Parser) ParseLine(line string) (*Row, error) {
	row := &Row{
		Line:   line,
		Values: make([]Value, 0, len(p.columns)),
	}

	index, mark := 0, 0

	for i, ins := range p.instructions {
		switch ins.Op {
		case format.OpBegin:
			mark = index

		case format.OpSkip:
			if ins.N > len(line)-index {
				return nil, &Error{Instruction: i, Op: ins.Op, Offset: index, Err: ErrOutOfBounds}
			}
			index += ins.N

		case format.OpSkipUntilChar, format.OpSkipUntilString:
			var off int
			if len(ins.Delim) == 1 {
				off = strings.IndexByte(line[index:], ins.Delim[0])
			} else {
				off = strings.Index(line[index:], ins.Delim)
			}
			if off < 0 {
				return nil, &Error{Instruction: i, Op: ins.Op, Offset: index, Text: ins.Delim, Err: ErrDelimiterNotFound}
			}
			index += off

		case format.OpEmitString:
			row.Values = append(row.Values, Value{Kind: KindString, Start: mark, End: index})

		case format.OpEmitDate:
			ms, ok := ParseDate(line[mark:index])
			if !ok {
				return nil, &Error{Instruction: i, Op: ins.Op, Offset: mark, Text: line[mark:index], Err: ErrInvalidDate}
			}
			row.Values = append(row.Values, Value{Kind: KindDate, Int: ms})

		case format.OpEmitEnumeration:
			field := line[mark:index]
			idx := -1
			for n, v := range ins.Variants {
				if v == field {
					idx = n
					break
				}
			}
			if idx < 0 {
				return nil, &Error{Instruction: i, Op: ins.Op, Offset: mark, Text: field, Err: ErrUnknownEnumValue}
			}
			row.Values = append(row.Values, Value{Kind: KindInteger, Int: int64(idx)})

		case format.OpEmitRemainder:
			row.Values = append(row.Values, Value{Kind: KindString, Start: mark, End: len(line)})
		}
	}

	return row, nil
}
