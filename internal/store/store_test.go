package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logq/internal/format"
	"logq/internal/parser"
)

func makeRows(t *testing.T, p *parser.Parser, n int) []*parser.Row {
	t.Helper()
	rows := make([]*parser.Row, n)
	for i := range rows {
		level := format.Levels[i%len(format.Levels)]
		line := fmt.Sprintf("2023-12-04 01:12:30,%03d %s [ctx] [%d] Program.cs, Main <App> - message %d",
			i%1000, level, i%8, i+1)
		row, err := p.ParseLine(line)
		require.NoError(t, err)
		rows[i] = row
	}
	return rows
}

// loadStore creates a store and inserts n generated rows in batches of batch.
func loadStore(t *testing.T, n, batch int) *Store {
	t.Helper()

	spec := format.Builtin()
	p := parser.New(spec)

	s, err := Create(filepath.Join(t.TempDir(), "logq.db"), spec.Columns, Options{CacheSizeKiB: 2048})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	w, err := s.Begin(ctx, batch)
	require.NoError(t, err)

	rows := makeRows(t, p, n)
	for len(rows) > 0 {
		k := min(batch, len(rows))
		require.NoError(t, w.Insert(ctx, rows[:k]))
		rows = rows[k:]
	}
	require.NoError(t, w.Commit())

	return s
}

func messageOf(t *testing.T, s *Store, rec Record) string {
	t.Helper()
	_, idx, ok := (&format.Spec{Columns: s.Schema().Columns}).Column("Message")
	require.True(t, ok)
	return rec.Values[idx].(string)
}

func TestCreate_RemovesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logq.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0644))
	require.NoError(t, os.WriteFile(path+"-journal", []byte("stale"), 0644))

	s, err := Create(path, format.Builtin().Columns, Options{})
	require.NoError(t, err)
	defer s.Close()

	n, err := s.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = os.Stat(path + "-journal")
	assert.True(t, os.IsNotExist(err))
}

func TestBulkInsert_BatchIntegrity(t *testing.T) {
	// 1000 rows in batches of 64 leaves a final short batch of 40.
	s := loadStore(t, 1000, 64)
	ctx := context.Background()

	n, err := s.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	recs, err := s.Select(ctx, 0, 1000, "")
	require.NoError(t, err)
	require.Len(t, recs, 1000)

	for i, rec := range recs {
		assert.Equal(t, int64(i+1), rec.ID)
		assert.Equal(t, fmt.Sprintf("message %d", i+1), messageOf(t, s, rec))
	}
}

func TestBulkInsert_SplitsAtParameterLimit(t *testing.T) {
	// 8 columns: a batch of 5000 rows needs 40000 parameters.
	s := loadStore(t, 5000, 5000)

	n, err := s.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5000, n)
}

func TestBulkInsert_RejectsShortRow(t *testing.T) {
	spec := format.Builtin()
	s, err := Create(filepath.Join(t.TempDir(), "logq.db"), spec.Columns, Options{})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	w, err := s.Begin(ctx, 4)
	require.NoError(t, err)

	row := &parser.Row{Line: "x", Values: []parser.Value{{Kind: parser.KindString, Start: 0, End: 1}}}
	assert.Error(t, w.Insert(ctx, []*parser.Row{row}))
	require.NoError(t, w.Rollback())

	n, err := s.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSelect_Window(t *testing.T) {
	s := loadStore(t, 1000, 64)

	recs, err := s.Select(context.Background(), 0, 300, "")
	require.NoError(t, err)
	require.Len(t, recs, 300)
	assert.Equal(t, int64(1), recs[0].ID)
	assert.Equal(t, int64(300), recs[299].ID)
}

func TestWindow_TailClamp(t *testing.T) {
	s := loadStore(t, 1000, 64)

	page, err := s.Window(context.Background(), 900, 300, "")
	require.NoError(t, err)
	assert.Equal(t, 1000, page.Total)
	assert.Equal(t, 700, page.Offset)
	require.Len(t, page.Records, 300)
	assert.Equal(t, int64(701), page.Records[0].ID)
	assert.Equal(t, int64(1000), page.Records[299].ID)
}

func TestWindow_FewerRowsThanLimit(t *testing.T) {
	s := loadStore(t, 10, 64)

	page, err := s.Window(context.Background(), 5, 300, "")
	require.NoError(t, err)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 10, page.Total)
	assert.Len(t, page.Records, 10)
}

func TestCount_Where(t *testing.T) {
	s := loadStore(t, 60, 16)
	ctx := context.Background()

	// Levels cycle through six labels, so index 2 (INFO) appears ten times.
	n, err := s.Count(ctx, "level = 2")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = s.Count(ctx, "message LIKE '%message 1%'")
	require.NoError(t, err)
	// message 1, 10..19
	assert.Equal(t, 11, n)

	_, err = s.Count(ctx, "nosuchcolumn = 1")
	assert.Error(t, err)
}

func TestSchema_ResolveAndRender(t *testing.T) {
	s := loadStore(t, 3, 64)
	schema := s.Schema()

	col, ok := schema.Resolve("level")
	require.True(t, ok)
	assert.Equal(t, "Level", col.Name)

	col, ok = schema.Resolve("MESSAGE")
	require.True(t, ok)
	assert.Equal(t, "message", col.Ident)

	_, ok = schema.Resolve("missing")
	assert.False(t, ok)

	recs, err := s.Select(context.Background(), 0, 1, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	text := schema.Render(recs[0])
	assert.Equal(t, "2023-12-04 01:12:30,000", text[0])
	assert.Equal(t, "TRACE", text[1])
	assert.Equal(t, "message 1", text[len(text)-1])
}

func TestOpen_ExistingStore(t *testing.T) {
	s := loadStore(t, 5, 64)
	path := s.Path()
	cols := s.Schema().Columns
	require.NoError(t, s.Close())

	reopened, err := Open(path, cols)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = Open(filepath.Join(t.TempDir(), "missing.db"), cols)
	assert.Error(t, err)
}

func TestSchemaSQL_IndexesDateColumns(t *testing.T) {
	sql := schemaSQL(format.Builtin().Columns)
	assert.Contains(t, sql, "time INTEGER NOT NULL")
	assert.Contains(t, sql, "level INTEGER NOT NULL")
	assert.Contains(t, sql, "message TEXT NOT NULL")
	assert.Contains(t, sql, "CREATE INDEX IF NOT EXISTS idx_entries_time ON entries(time)")
	assert.NotContains(t, sql, "idx_entries_level")
}

func TestInsertSQL(t *testing.T) {
	assert.Equal(t, "INSERT INTO entries (a, b) VALUES (?,?),(?,?)", insertSQL([]string{"a", "b"}, 2))
}
