package filter

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input  string
		column string
		expr   Expr
	}{
		{`a="b"`, "a", Contains{"b"}},
		{`asdf=!"b1234"`, "asdf", Not{Contains{"b1234"}}},
		{`message = "x" & "y"`, "message", And{Contains{"x"}, Contains{"y"}}},
		{`message = "x" AND "y" and "z"`, "message", And{And{Contains{"x"}, Contains{"y"}}, Contains{"z"}}},
		{`message = "x" | "y"`, "message", Or{Contains{"x"}, Contains{"y"}}},
		{`message = "x" || "y" OR "z"`, "message", Or{Or{Contains{"x"}, Contains{"y"}}, Contains{"z"}}},
		{`message = "a" | "b" & "c"`, "message", Or{Contains{"a"}, And{Contains{"b"}, Contains{"c"}}}},
		{`message = ("a" | "b") && "c"`, "message", And{Or{Contains{"a"}, Contains{"b"}}, Contains{"c"}}},
		{`message = !!"a"`, "message", Not{Not{Contains{"a"}}}},
		{`message = NOT ("a" | "b")`, "message", Not{Or{Contains{"a"}, Contains{"b"}}}},
		{`message = "it's"`, "message", Contains{"it's"}},
		{`message = ""`, "message", Contains{""}},
		{`message = "a\"`, "message", Contains{`a\`}},
		{`Level_2 = "WARN"`, "Level_2", Contains{"WARN"}},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			rule, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.column, rule.Column)
			assert.Equal(t, tc.expr, rule.Expr)
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []string{
		``,
		`message`,
		`message =`,
		`= "x"`,
		`message = "unterminated`,
		`message = x`,
		`message = "a" &`,
		`message = "a" "b"`,
		`message = ("a"`,
		`message = "a")`,
		`message == "a"`,
		`message = "a" # comment`,
		`"message" = "a"`,
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			var serr *SyntaxError
			assert.True(t, errors.As(err, &serr), "want *SyntaxError, got %T: %v", err, err)
		})
	}
}

func TestFold_RejectsUnknownNodes(t *testing.T) {
	_, err := fold(&node{kind: nodeColumn, text: "x"})
	assert.ErrorIs(t, err, ErrUnexpectedNode)

	_, err = fold(&node{kind: nodeAnd, children: []*node{{kind: nodeString, text: "a"}}})
	assert.ErrorIs(t, err, ErrUnexpectedNode)

	_, err = foldFilter(&node{kind: nodeString})
	assert.ErrorIs(t, err, ErrUnexpectedNode)
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"contains", Contains{"x"}, `col LIKE '%x%'`},
		{"quote", Contains{"a'b"}, `col LIKE '%a''b%'`},
		{"not", Not{Contains{"x"}}, `NOT (col LIKE '%x%')`},
		{"and", And{Contains{"a"}, Contains{"b"}}, `col LIKE '%a%' AND col LIKE '%b%'`},
		{"or", Or{Contains{"a"}, Contains{"b"}}, `col LIKE '%a%' OR col LIKE '%b%'`},
		{"or in and", And{Or{Contains{"a"}, Contains{"b"}}, Contains{"c"}}, `(col LIKE '%a%' OR col LIKE '%b%') AND col LIKE '%c%'`},
		{"and in or", Or{And{Contains{"a"}, Contains{"b"}}, Contains{"c"}}, `col LIKE '%a%' AND col LIKE '%b%' OR col LIKE '%c%'`},
		{"not and", Not{And{Contains{"a"}, Contains{"b"}}}, `NOT (col LIKE '%a%' AND col LIKE '%b%')`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compile(Rule{Column: "col", Expr: tc.expr}))
		})
	}
}

func TestCompile_InjectionSafe(t *testing.T) {
	assert.Equal(t, `message LIKE '%a''b%'`, Compile(Rule{Column: "message", Expr: Contains{"a'b"}}))

	payloads := []string{
		`'; DROP TABLE rows; --`,
		`''`,
		`x' OR '1'='1`,
		`'`,
	}
	for _, p := range payloads {
		sql := Compile(Rule{Column: "message", Expr: Not{Contains{p}}})
		body := strings.TrimSuffix(strings.TrimPrefix(sql, "NOT (message LIKE '%"), "%')")
		assert.Equal(t, Escape(p), body)
		assert.NotContains(t, strings.ReplaceAll(body, "''", ""), "'", "lone quote in %q", sql)
	}
}

func TestWhere(t *testing.T) {
	assert.Equal(t, "", Where(nil))
	assert.Equal(t, "", Where([]Rule{}))

	one := []Rule{{Column: "level", Expr: Contains{"WARN"}}}
	assert.Equal(t, `level LIKE '%WARN%'`, Where(one))

	many := []Rule{
		{Column: "level", Expr: Or{Contains{"WARN"}, Contains{"ERROR"}}},
		{Column: "message", Expr: Not{Contains{"heartbeat"}}},
	}
	assert.Equal(t,
		`(level LIKE '%WARN%' OR level LIKE '%ERROR%') AND NOT (message LIKE '%heartbeat%')`,
		Where(many))
}

func TestExprString_RoundTrip(t *testing.T) {
	inputs := []string{
		`m = "a"`,
		`m = !"a"`,
		`m = "a" & "b"`,
		`m = "a" | "b" & "c"`,
		`m = ("a" | "b") & !("c" & "d")`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			rule, err := Parse(in)
			require.NoError(t, err)

			again, err := Parse(rule.String())
			require.NoError(t, err)
			assert.Equal(t, rule, again)
		})
	}
}

func TestParseRules_DropsInvalid(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rules := ParseRules([]string{
		`level = "WARN"`,
		``,
		`message = "unterminated`,
		`thread = !"main"`,
	}, logger)

	require.Len(t, rules, 2)
	assert.Equal(t, "level", rules[0].Column)
	assert.Equal(t, "thread", rules[1].Column)
	assert.Contains(t, buf.String(), "invalid filter dropped")
	assert.Contains(t, buf.String(), "line=3")
}
