package filter

import "fmt"

type nodeKind int

const (
	nodeFilter nodeKind = iota
	nodeColumn
	nodeOr
	nodeAnd
	nodeNot
	nodeGroup
	nodeString
)

var nodeNames = [...]string{
	nodeFilter: "filter",
	nodeColumn: "column",
	nodeOr:     "or",
	nodeAnd:    "and",
	nodeNot:    "not",
	nodeGroup:  "group",
	nodeString: "string",
}

func (k nodeKind) String() string {
	if int(k) < len(nodeNames) {
		return nodeNames[k]
	}
	return fmt.Sprintf("node(%d)", int(k))
}

// node is a generic parse tree node. The grammar only records what it
// matched; turning the tree into an Expr is fold's job.
type node struct {
	kind     nodeKind
	text     string
	pos      int
	children []*node
}

// grammar is a recursive-descent matcher over a token slice:
//
//	filter   := column '=' or_expr EOF
//	or_expr  := and_expr (OR and_expr)*
//	and_expr := unary (AND unary)*
//	unary    := NOT unary | primary
//	primary  := STRING | '(' or_expr ')'
type grammar struct {
	toks []token
	pos  int
}

func (g *grammar) peek() token {
	return g.toks[g.pos]
}

func (g *grammar) next() token {
	t := g.toks[g.pos]
	if t.kind != tokEOF {
		g.pos++
	}
	return t
}

func (g *grammar) expect(kind tokenKind) (token, error) {
	t := g.next()
	if t.kind != kind {
		return t, unexpected(t, kind.String())
	}
	return t, nil
}

func unexpected(t token, want string) error {
	if t.kind == tokEOF {
		return &SyntaxError{Pos: t.pos, Msg: "unexpected end of input, expected " + want}
	}
	return &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s %q, expected %s", t.kind, t.text, want)}
}

func (g *grammar) filter() (*node, error) {
	col := g.next()
	switch col.kind {
	case tokIdent, tokAnd, tokOr, tokNot:
		if col.text == "" || !isIdentStart(col.text[0]) {
			return nil, unexpected(col, "column name")
		}
	default:
		return nil, unexpected(col, "column name")
	}

	if _, err := g.expect(tokEquals); err != nil {
		return nil, err
	}

	expr, err := g.orExpr()
	if err != nil {
		return nil, err
	}

	if _, err := g.expect(tokEOF); err != nil {
		return nil, err
	}

	return &node{
		kind: nodeFilter,
		pos:  col.pos,
		children: []*node{
			{kind: nodeColumn, text: col.text, pos: col.pos},
			expr,
		},
	}, nil
}

func (g *grammar) orExpr() (*node, error) {
	first, err := g.andExpr()
	if err != nil {
		return nil, err
	}
	if g.peek().kind != tokOr {
		return first, nil
	}

	n := &node{kind: nodeOr, pos: first.pos, children: []*node{first}}
	for g.peek().kind == tokOr {
		g.next()
		operand, err := g.andExpr()
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, operand)
	}
	return n, nil
}

func (g *grammar) andExpr() (*node, error) {
	first, err := g.unary()
	if err != nil {
		return nil, err
	}
	if g.peek().kind != tokAnd {
		return first, nil
	}

	n := &node{kind: nodeAnd, pos: first.pos, children: []*node{first}}
	for g.peek().kind == tokAnd {
		g.next()
		operand, err := g.unary()
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, operand)
	}
	return n, nil
}

func (g *grammar) unary() (*node, error) {
	if t := g.peek(); t.kind == tokNot {
		g.next()
		operand, err := g.unary()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeNot, pos: t.pos, children: []*node{operand}}, nil
	}
	return g.primary()
}

func (g *grammar) primary() (*node, error) {
	t := g.next()
	switch t.kind {
	case tokString:
		return &node{kind: nodeString, text: t.text, pos: t.pos}, nil
	case tokLParen:
		inner, err := g.orExpr()
		if err != nil {
			return nil, err
		}
		if _, err := g.expect(tokRParen); err != nil {
			return nil, err
		}
		return &node{kind: nodeGroup, pos: t.pos, children: []*node{inner}}, nil
	default:
		return nil, unexpected(t, "string literal, '!' or '('")
	}
}

// parseTree lexes and matches input, returning the root nodeFilter.
func parseTree(input string) (*node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	g := &grammar{toks: toks}
	return g.filter()
}
