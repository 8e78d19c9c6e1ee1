package parser

import (
	"errors"
	"fmt"

	"logq/internal/format"
)

var (
	// ErrOutOfBounds is returned when a skip moves past the end of the line.
	ErrOutOfBounds = errors.New("skip past end of line")
	// ErrDelimiterNotFound is returned when a skip-until delimiter does not
	// occur in the rest of the line. Continuation lines fail this way.
	ErrDelimiterNotFound = errors.New("delimiter not found")
	// ErrInvalidDate is returned when a date field does not match
	// YYYY-MM-DD HH:mm:ss,fff or names an impossible calendar date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrUnknownEnumValue is returned when an enumeration field matches none
	// of its variants.
	ErrUnknownEnumValue = errors.New("unknown enumeration value")
)

// Error reports where in the instruction list and the line parsing failed.
type Error struct {
	// Instruction is the index of the failing instruction.
	Instruction int
	// Op is the failing instruction's op.
	Op format.Op
	// Offset is the byte offset of the scan cursor when parsing failed.
	Offset int
	// Text is the offending slice of the line, if any.
	Text string
	Err  error
}

func (e *Error) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%s (instruction %d, byte %d): %v %q", e.Op, e.Instruction, e.Offset, e.Err, e.Text)
	}
	return fmt.Sprintf("%s (instruction %d, byte %d): %v", e.Op, e.Instruction, e.Offset, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
