package filter

import (
	"log/slog"
	"strings"
)

// Escape doubles every single quote in s so it can sit inside a SQL string
// literal. It is the only escaping applied to filter text.
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Compile translates a rule into a SQL predicate over rule.Column. The column
// name is used verbatim and must be a trusted identifier.
func Compile(rule Rule) string {
	var b strings.Builder
	compileExpr(&b, rule.Column, rule.Expr)
	return b.String()
}

func compileExpr(b *strings.Builder, col string, e Expr) {
	switch e := e.(type) {
	case Contains:
		b.WriteString(col)
		b.WriteString(" LIKE '%")
		b.WriteString(Escape(e.Text))
		b.WriteString("%'")
	case And:
		compileOperand(b, col, e.L)
		b.WriteString(" AND ")
		compileOperand(b, col, e.R)
	case Or:
		compileExpr(b, col, e.L)
		b.WriteString(" OR ")
		compileExpr(b, col, e.R)
	case Not:
		b.WriteString("NOT (")
		compileExpr(b, col, e.E)
		b.WriteString(")")
	}
}

// compileOperand compiles an AND operand, parenthesizing an OR so that SQL
// precedence keeps the tree's meaning.
func compileOperand(b *strings.Builder, col string, e Expr) {
	if _, ok := e.(Or); ok {
		b.WriteString("(")
		compileExpr(b, col, e)
		b.WriteString(")")
		return
	}
	compileExpr(b, col, e)
}

// Where compiles rules into the body of a WHERE clause, joined with AND. It
// returns "" for no rules so callers can omit the clause entirely.
func Where(rules []Rule) string {
	switch len(rules) {
	case 0:
		return ""
	case 1:
		return Compile(rules[0])
	}

	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = Compile(r)
		if _, ok := r.Expr.(Or); ok {
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, " AND ")
}

// ParseRules parses one rule per line. Blank lines are ignored; lines that do
// not parse are dropped with a warning and the remaining rules are returned.
func ParseRules(lines []string, logger *slog.Logger) []Rule {
	if logger == nil {
		logger = slog.Default()
	}

	var rules []Rule
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rule, err := Parse(line)
		if err != nil {
			logger.Warn("invalid filter dropped", "line", i+1, "filter", line, "error", err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}
