package filter

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokEquals
	tokNot
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokEquals:
		return "'='"
	case tokNot:
		return "'!'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "unknown"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports a malformed filter line.
type SyntaxError struct {
	// Pos is the byte offset of the problem in the input.
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter: position %d: %s", e.Pos, e.Msg)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// lex splits input into tokens. String literals have no escapes: a literal
// runs from one double quote to the next.
func lex(input string) ([]token, error) {
	var toks []token

	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++

		case c == '=':
			toks = append(toks, token{kind: tokEquals, text: "=", pos: i})
			i++

		case c == '!':
			toks = append(toks, token{kind: tokNot, text: "!", pos: i})
			i++

		case c == '&' || c == '|':
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			n := 1
			if i+1 < len(input) && input[i+1] == c {
				n = 2
			}
			toks = append(toks, token{kind: kind, text: input[i : i+n], pos: i})
			i += n

		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++

		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++

		case c == '"':
			end := strings.IndexByte(input[i+1:], '"')
			if end < 0 {
				return nil, &SyntaxError{Pos: i, Msg: "unterminated string literal"}
			}
			toks = append(toks, token{kind: tokString, text: input[i+1 : i+1+end], pos: i})
			i += end + 2

		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			word := input[start:i]
			kind := tokIdent
			switch strings.ToUpper(word) {
			case "AND":
				kind = tokAnd
			case "OR":
				kind = tokOr
			case "NOT":
				kind = tokNot
			}
			toks = append(toks, token{kind: kind, text: word, pos: start})

		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}

	toks = append(toks, token{kind: tokEOF, pos: len(input)})
	return toks, nil
}
