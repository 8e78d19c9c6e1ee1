package format

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlDoc = `
title = "Simple"

[[syntax]]
kind = "begin"
[[syntax]]
kind = "skip"
count = 23
[[syntax]]
kind = "emit_date"
name = "Date"
width = 23
[[syntax]]
kind = "skip"
count = 1
[[syntax]]
kind = "begin"
[[syntax]]
kind = "skip_until_char"
char = " "
[[syntax]]
kind = "emit_enumeration"
name = "Level"
width = 5
variants = ["DEBUG", "INFO", "ERROR"]
[[syntax]]
kind = "skip_until_string"
string = " - "
[[syntax]]
kind = "skip"
count = 3
[[syntax]]
kind = "begin"
[[syntax]]
kind = "emit_remainder"
name = "Message"
width = -1
`

const yamlDoc = `
title: Simple
syntax:
  - kind: begin
  - kind: skip
    count: 23
  - kind: emit_date
    name: Date
    width: 23
  - kind: skip
    count: 1
  - kind: begin
  - kind: skip_until_char
    char: " "
  - kind: emit_enumeration
    name: Level
    width: 5
    variants: [DEBUG, INFO, ERROR]
  - kind: skip_until_string
    string: " - "
  - kind: skip
    count: 3
  - kind: begin
  - kind: emit_remainder
    name: Message
    width: -1
`

const jsonDoc = `{
  "title": "Simple",
  "syntax": [
    {"kind": "begin"},
    {"kind": "skip", "count": 23},
    {"kind": "emit_date", "name": "Date", "width": 23},
    {"kind": "skip", "count": 1},
    {"kind": "begin"},
    {"kind": "skip_until_char", "char": " "},
    {"kind": "emit_enumeration", "name": "Level", "width": 5, "variants": ["DEBUG", "INFO", "ERROR"]},
    {"kind": "skip_until_string", "string": " - "},
    {"kind": "skip", "count": 3},
    {"kind": "begin"},
    {"kind": "emit_remainder", "name": "Message", "width": -1}
  ]
}`

func TestParse_Encodings(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"toml", ".toml", tomlDoc},
		{"yaml", ".yaml", yamlDoc},
		{"yml", ".yml", yamlDoc},
		{"json", ".json", jsonDoc},
		{"detect toml", "", tomlDoc},
		{"detect json", "", jsonDoc},
		{"detect yaml", ".fmt", yamlDoc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse([]byte(tt.data), tt.ext)
			require.NoError(t, err)

			assert.Equal(t, "Simple", spec.Title)
			require.Len(t, spec.Columns, 3)
			require.Len(t, spec.Instructions, 11)

			assert.Equal(t, Column{Name: "Date", Ident: "date", Type: TypeDate, Width: 23}, spec.Columns[0])
			assert.Equal(t, Column{Name: "Level", Ident: "level", Type: TypeEnumeration, Variants: []string{"DEBUG", "INFO", "ERROR"}, Width: 5}, spec.Columns[1])
			assert.Equal(t, Column{Name: "Message", Ident: "message", Type: TypeString, Width: -1}, spec.Columns[2])

			assert.Equal(t, Instruction{Op: OpSkip, N: 23}, spec.Instructions[1])
			assert.Equal(t, Instruction{Op: OpSkipUntilChar, Delim: " "}, spec.Instructions[5])
			assert.Equal(t, Instruction{Op: OpSkipUntilString, Delim: " - "}, spec.Instructions[7])
		})
	}
}

func TestParse_UnknownEncoding(t *testing.T) {
	_, err := Parse([]byte("{{{ not anything"), "")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown top-level key", `{"syntax": [{"kind": "emit_remainder", "name": "m"}], "colour": "red"}`},
		{"unknown kind", `{"syntax": [{"kind": "jump"}]}`},
		{"missing char", `{"syntax": [{"kind": "skip_until_char"}, {"kind": "emit_remainder", "name": "m"}]}`},
		{"empty string", `{"syntax": [{"kind": "skip_until_string", "string": ""}, {"kind": "emit_remainder", "name": "m"}]}`},
		{"emit without name", `{"syntax": [{"kind": "emit_string"}]}`},
		{"enumeration without variants", `{"syntax": [{"kind": "emit_enumeration", "name": "l"}]}`},
		{"negative count", `{"syntax": [{"kind": "skip", "count": -1}, {"kind": "emit_remainder", "name": "m"}]}`},
		{"fractional width", `{"syntax": [{"kind": "emit_remainder", "name": "m", "width": 1.5}]}`},
		{"empty syntax", `{"syntax": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), ".json")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "schema validation")
		})
	}
}

func TestNew_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   Document
		field string
	}{
		{
			name:  "no emits",
			doc:   Document{Syntax: []Step{{Kind: "begin"}}},
			field: "syntax",
		},
		{
			name:  "duplicate column names ignore case",
			doc:   Document{Syntax: []Step{{Kind: "emit_string", Name: "Msg"}, {Kind: "emit_remainder", Name: "msg"}}},
			field: "syntax[1].name",
		},
		{
			name:  "multi-character char",
			doc:   Document{Syntax: []Step{{Kind: "skip_until_char", Char: "ab"}, {Kind: "emit_remainder", Name: "m"}}},
			field: "syntax[0].char",
		},
		{
			name:  "duplicate variants",
			doc:   Document{Syntax: []Step{{Kind: "emit_enumeration", Name: "l", Variants: []string{"A", "A"}}}},
			field: "syntax[0].variants",
		},
		{
			name:  "unknown kind",
			doc:   Document{Syntax: []Step{{Kind: "nope"}, {Kind: "emit_remainder", Name: "m"}}},
			field: "syntax[0].kind",
		},
		{
			name:  "blank name",
			doc:   Document{Syntax: []Step{{Kind: "emit_remainder", Name: "  "}}},
			field: "syntax[0].name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.doc)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %T", err)

			fields := make([]string, len(verrs))
			for i, e := range verrs {
				fields[i] = e.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestNew_MultiByteChar(t *testing.T) {
	spec, err := New(Document{Syntax: []Step{
		{Kind: "skip_until_char", Char: "→"},
		{Kind: "emit_remainder", Name: "rest"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "→", spec.Instructions[0].Delim)
}

func TestIdentFor(t *testing.T) {
	used := map[string]bool{"id": true}

	assert.Equal(t, "time_stamp", identFor("Time Stamp", used))
	assert.Equal(t, "c_id", identFor("ID", used))
	assert.Equal(t, "c_1st", identFor("1st", used))
	assert.Equal(t, "a_b", identFor("a-b", used))
	assert.Equal(t, "a_b_2", identFor("A_B", used))
	assert.Equal(t, "a_b_3", identFor("a.b", used))
	assert.Equal(t, "x__", identFor("x'\"", used))
	assert.Equal(t, "_", identFor("é", used))
}

func TestBuiltin(t *testing.T) {
	spec := Builtin()

	names := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Time", "Level", "Context", "Thread", "File", "Method", "Object", "Message"}, names)
	assert.Equal(t, TypeDate, spec.Columns[0].Type)
	assert.Equal(t, TypeEnumeration, spec.Columns[1].Type)
	assert.Equal(t, Levels, spec.Columns[1].Variants)
	assert.Equal(t, -1, spec.Columns[7].Width)
}

func TestSpec_Column(t *testing.T) {
	spec := Builtin()

	c, idx, ok := spec.Column("level")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "Level", c.Name)

	_, idx, ok = spec.Column("MESSAGE")
	require.True(t, ok)
	assert.Equal(t, 7, idx)

	_, idx, ok = spec.Column("nope")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formats", "log4net.toml")
	builtin := Builtin()

	require.NoError(t, Save(builtin, path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, builtin.Title, loaded.Title)
	assert.Equal(t, builtin.Instructions, loaded.Instructions)
	assert.Equal(t, builtin.Columns, loaded.Columns)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "dup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("syntax:\n  - {kind: emit_string, name: a}\n  - {kind: emit_remainder, name: A}\n"), 0644))

	_, err = Load(path)
	var verrs ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestColumnLabel(t *testing.T) {
	c := Column{Type: TypeEnumeration, Variants: []string{"A", "B"}}
	assert.Equal(t, "B", c.Label(1))
	assert.Equal(t, "7", c.Label(7))
	assert.Equal(t, "-1", c.Label(-1))
}

func TestParseOp(t *testing.T) {
	for _, name := range opNames {
		op, ok := ParseOp(name)
		require.True(t, ok, name)
		assert.Equal(t, name, op.String())
	}
	_, ok := ParseOp("emit")
	assert.False(t, ok)
	assert.True(t, OpEmitRemainder.IsEmit())
	assert.False(t, OpSkipUntilString.IsEmit())
}
