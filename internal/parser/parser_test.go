package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logq/internal/format"
)

const sampleLine = "2023-12-04 01:12:30,690 INFO [ctx] [7] Program.cs, Main <App> - Started up"

func builtinParser(t *testing.T) *Parser {
	t.Helper()
	return New(format.Builtin())
}

func TestParseLine_Builtin(t *testing.T) {
	p := builtinParser(t)

	row, err := p.ParseLine(sampleLine)
	require.NoError(t, err)
	require.Len(t, row.Values, len(p.Columns()))

	assert.Equal(t, "2023-12-04 01:12:30,690", row.Field(0))
	assert.Equal(t, "2", row.Field(1))
	assert.Equal(t, "INFO", p.Columns()[1].Label(row.Values[1].Int))
	assert.Equal(t, "ctx", row.Field(2))
	assert.Equal(t, "7", row.Field(3))
	assert.Equal(t, "Program.cs", row.Field(4))
	assert.Equal(t, "Main", row.Field(5))
	assert.Equal(t, "App", row.Field(6))
	assert.Equal(t, "Started up", row.Field(7))
}

func TestParseLine_TypesMatchColumns(t *testing.T) {
	p := builtinParser(t)

	row, err := p.ParseLine(sampleLine)
	require.NoError(t, err)

	for i, col := range p.Columns() {
		v := row.Values[i]
		switch col.Type {
		case format.TypeString:
			assert.Equal(t, KindString, v.Kind, col.Name)
		case format.TypeDate:
			assert.Equal(t, KindDate, v.Kind, col.Name)
		case format.TypeEnumeration:
			assert.Equal(t, KindInteger, v.Kind, col.Name)
		}
	}
}

func TestParseLine_Deterministic(t *testing.T) {
	p := builtinParser(t)

	lines := []string{sampleLine, "   at Foo.Bar()", "2023-13-04 01:12:30,690 INFO [a] [b] c, d <e> - f"}
	for _, line := range lines {
		r1, err1 := p.ParseLine(line)
		r2, err2 := p.ParseLine(line)
		if err1 != nil {
			require.Error(t, err2)
			assert.Equal(t, err1.Error(), err2.Error())
			continue
		}
		require.NoError(t, err2)
		assert.Equal(t, r1.Values, r2.Values)
	}
}

func TestParseLine_EnumerationRoundTrip(t *testing.T) {
	p := builtinParser(t)

	for i, level := range format.Levels {
		t.Run(level, func(t *testing.T) {
			line := "2023-12-04 01:12:30,690 " + level + " [ctx] [7] Program.cs, Main <App> - msg"
			row, err := p.ParseLine(line)
			require.NoError(t, err)
			assert.Equal(t, Value{Kind: KindInteger, Int: int64(i)}, row.Values[1])
		})
	}

	for _, bad := range []string{"info", "INFORMATION", "WARNING", "ERR"} {
		t.Run(bad, func(t *testing.T) {
			line := "2023-12-04 01:12:30,690 " + bad + " [ctx] [7] Program.cs, Main <App> - msg"
			_, err := p.ParseLine(line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnknownEnumValue), "got %v", err)
		})
	}
}

func TestParseDate_RoundTrip(t *testing.T) {
	const s = "2023-12-04 01:12:30,690"

	ms, ok := ParseDate(s)
	require.True(t, ok)

	again, ok := ParseDate(s)
	require.True(t, ok)
	assert.Equal(t, ms, again)

	tm := time.UnixMilli(ms).UTC()
	assert.Equal(t, 2023, tm.Year())
	assert.Equal(t, time.December, tm.Month())
	assert.Equal(t, 4, tm.Day())
	assert.Equal(t, 1, tm.Hour())
	assert.Equal(t, 12, tm.Minute())
	assert.Equal(t, 30, tm.Second())
	assert.Equal(t, 690, tm.Nanosecond()/int(time.Millisecond))
	assert.Equal(t, s, FormatDate(ms))
}

func TestParseDate_Invalid(t *testing.T) {
	tests := []string{
		"2023-12-04 01:12:30.690",
		"2023/12/04 01:12:30,690",
		"2023-02-30 01:12:30,690",
		"2023-12-04 25:12:30,690",
		"2023-12-04 01:12:30,6x0",
		"abcd-12-04 01:12:30,690",
		"2023-12-04T01:12:30,690",
		"2023-12-04 1:12:30,690",
		"2023-12-04 01:12:30,69",
		"2023-12-04 01:12:30,6900",
		"2023-12-04 01:12:30,690 ",
		"",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, ok := ParseDate(s)
			assert.False(t, ok)
		})
	}
}

func TestParseLine_Failures(t *testing.T) {
	p := builtinParser(t)

	tests := []struct {
		name string
		line string
		want error
	}{
		{"continuation", "   at Foo.Bar()", ErrOutOfBounds},
		{"long continuation", "   at Foo.Bar() in Foo.cs:line 12", ErrInvalidDate},
		{"short line", "2023-12-04", ErrOutOfBounds},
		{"bad date", "2023-12-04 01:12:30;690 INFO [ctx] [7] Program.cs, Main <App> - x", ErrInvalidDate},
		{"dot before millis", "2023-12-04 01:12:30.690 INFO [ctx] [7] Program.cs, Main <App> - x", ErrInvalidDate},
		{"missing bracket", "2023-12-04 01:12:30,690 INFO ctx 7 Program.cs, Main <App> - x", ErrDelimiterNotFound},
		{"missing method marker", "2023-12-04 01:12:30,690 INFO [ctx] [7] Program.cs, Main App - x", ErrDelimiterNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row, err := p.ParseLine(tc.line)
			assert.Nil(t, row)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.GreaterOrEqual(t, perr.Instruction, 0)
		})
	}
}

func TestParseLine_SkipUntilDoesNotMoveOnMatchAtCursor(t *testing.T) {
	spec, err := format.New(format.Document{Syntax: []format.Step{
		{Kind: "begin"},
		{Kind: "skip_until_char", Char: ":"},
		{Kind: "emit_string", Name: "Key"},
		{Kind: "skip_until_char", Char: ":"},
		{Kind: "skip", Count: 1},
		{Kind: "begin"},
		{Kind: "emit_remainder", Name: "Value"},
	}})
	require.NoError(t, err)

	row, err := New(spec).ParseLine("key:value:more")
	require.NoError(t, err)
	assert.Equal(t, "key", row.Field(0))
	assert.Equal(t, "value:more", row.Field(1))
}

func TestParseLine_SkipToExactEnd(t *testing.T) {
	spec, err := format.New(format.Document{Syntax: []format.Step{
		{Kind: "skip", Count: 3},
		{Kind: "begin"},
		{Kind: "emit_remainder", Name: "Rest"},
	}})
	require.NoError(t, err)

	row, err := New(spec).ParseLine("abc")
	require.NoError(t, err)
	assert.Equal(t, "", row.Field(0))

	_, err = New(spec).ParseLine("ab")
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestRow_AppendContinuation(t *testing.T) {
	p := builtinParser(t)

	row, err := p.ParseLine(sampleLine)
	require.NoError(t, err)

	assert.True(t, row.AppendContinuation("\n", "   at Foo.Bar()"))
	assert.True(t, row.AppendContinuation("\r\n", "   at Baz()"))
	assert.True(t, row.Continued())
	assert.Equal(t, "Started up\n   at Foo.Bar()\r\n   at Baz()", row.Field(7))
	assert.Equal(t, "App", row.Field(6), "only the last field grows")
}

func TestRow_AppendContinuationNonString(t *testing.T) {
	spec, err := format.New(format.Document{Syntax: []format.Step{
		{Kind: "begin"},
		{Kind: "skip", Count: 23},
		{Kind: "emit_date", Name: "Time"},
	}})
	require.NoError(t, err)

	row, err := New(spec).ParseLine("2023-12-04 01:12:30,690")
	require.NoError(t, err)

	assert.False(t, row.AppendContinuation("\n", "trailing"))
	assert.False(t, row.Continued())
}

func TestRow_AppendArgs(t *testing.T) {
	p := builtinParser(t)

	row, err := p.ParseLine(sampleLine)
	require.NoError(t, err)

	args := row.AppendArgs(nil)
	require.Len(t, args, 8)

	ms, _ := ParseDate("2023-12-04 01:12:30,690")
	assert.Equal(t, ms, args[0])
	assert.Equal(t, int64(2), args[1])
	assert.Equal(t, "ctx", args[2])
	assert.Equal(t, "Started up", args[7])
}
