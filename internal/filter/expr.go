package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnexpectedNode is returned when the parse tree contains a production the
// folder does not handle.
var ErrUnexpectedNode = errors.New("unexpected parse tree node")

// Expr is a boolean expression over the text of one column. Implementations
// are immutable values.
type Expr interface {
	isExpr()
	// String renders the expression in filter syntax.
	String() string
}

// And matches when both operands match.
type And struct{ L, R Expr }

// Or matches when either operand matches.
type Or struct{ L, R Expr }

// Not matches when its operand does not.
type Not struct{ E Expr }

// Contains matches when the column contains Text as a substring.
type Contains struct{ Text string }

func (And) isExpr()      {}
func (Or) isExpr()       {}
func (Not) isExpr()      {}
func (Contains) isExpr() {}

func (e And) String() string {
	return operand(e.L, true) + " & " + operand(e.R, true)
}

func (e Or) String() string {
	return operand(e.L, false) + " | " + operand(e.R, false)
}

func (e Not) String() string {
	switch e.E.(type) {
	case And, Or:
		return "!(" + e.E.String() + ")"
	default:
		return "!" + e.E.String()
	}
}

func (e Contains) String() string {
	return `"` + e.Text + `"`
}

// operand renders e, parenthesized when it is an Or inside an And.
func operand(e Expr, inAnd bool) string {
	if _, ok := e.(Or); ok && inAnd {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// Rule is a filter on one column.
type Rule struct {
	Column string
	Expr   Expr
}

// String renders the rule in filter syntax.
func (r Rule) String() string {
	return r.Column + " = " + r.Expr.String()
}

// Parse parses one filter line.
func Parse(text string) (Rule, error) {
	tree, err := parseTree(strings.TrimSpace(text))
	if err != nil {
		return Rule{}, err
	}
	return foldFilter(tree)
}

func foldFilter(n *node) (Rule, error) {
	if n.kind != nodeFilter || len(n.children) != 2 || n.children[0].kind != nodeColumn {
		return Rule{}, fmt.Errorf("%w: %s at %d", ErrUnexpectedNode, n.kind, n.pos)
	}
	expr, err := fold(n.children[1])
	if err != nil {
		return Rule{}, err
	}
	return Rule{Column: n.children[0].text, Expr: expr}, nil
}

// fold converts a parse tree node into an Expr. Chains of AND or OR fold
// left-associatively into binary nodes.
func fold(n *node) (Expr, error) {
	switch n.kind {
	case nodeString:
		return Contains{Text: n.text}, nil

	case nodeGroup:
		if len(n.children) != 1 {
			break
		}
		return fold(n.children[0])

	case nodeNot:
		if len(n.children) != 1 {
			break
		}
		inner, err := fold(n.children[0])
		if err != nil {
			return nil, err
		}
		return Not{E: inner}, nil

	case nodeAnd, nodeOr:
		if len(n.children) < 2 {
			break
		}
		acc, err := fold(n.children[0])
		if err != nil {
			return nil, err
		}
		for _, c := range n.children[1:] {
			rhs, err := fold(c)
			if err != nil {
				return nil, err
			}
			if n.kind == nodeAnd {
				acc = And{L: acc, R: rhs}
			} else {
				acc = Or{L: acc, R: rhs}
			}
		}
		return acc, nil
	}

	return nil, fmt.Errorf("%w: %s at %d", ErrUnexpectedNode, n.kind, n.pos)
}
