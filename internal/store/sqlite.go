package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"logq/internal/format"
)

// table is the name of the entries table.
const table = "entries"

// DefaultCacheSizeKiB is the page cache size used for bulk loads.
const DefaultCacheSizeKiB = 1_000_000

// Options tunes how the store file is opened.
type Options struct {
	// CacheSizeKiB is the SQLite page cache size in KiB.
	CacheSizeKiB int
}

// Store is the SQLite row store.
type Store struct {
	db     *sql.DB
	path   string
	schema Schema
}

// Create deletes any existing store at path, opens a fresh one with bulk-load
// pragmas and creates the schema for columns.
func Create(path string, columns []format.Column, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove previous database: %w", err)
		}
	}

	s, err := open(path, columns, opts)
	if err != nil {
		return nil, err
	}

	if err := s.CreateSchema(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Open opens an existing store at path whose table was created for columns.
func Open(path string, columns []format.Column) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return open(path, columns, Options{})
}

func open(path string, columns []format.Column, opts Options) (*Store, error) {
	cache := opts.CacheSizeKiB
	if cache <= 0 {
		cache = DefaultCacheSizeKiB
	}

	// Negative cache_size is in KiB rather than pages.
	dsn := fmt.Sprintf("%s?_journal_mode=OFF&_synchronous=OFF&_locking_mode=EXCLUSIVE&_cache_size=-%d", path, cache)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: the exclusive lock and the disabled journal belong to
	// the connection that set them.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`PRAGMA temp_store = MEMORY`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return &Store{
		db:     db,
		path:   path,
		schema: Schema{Columns: columns},
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Schema returns the store's column layout.
func (s *Store) Schema() Schema {
	return s.schema
}

// CreateSchema creates the entries table and an index on every date column.
func (s *Store) CreateSchema() error {
	if _, err := s.db.Exec(schemaSQL(s.schema.Columns)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func schemaSQL(columns []format.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n    id INTEGER PRIMARY KEY", table)
	for _, c := range columns {
		fmt.Fprintf(&b, ",\n    %s %s NOT NULL", c.Ident, c.Type.SQLType())
	}
	b.WriteString("\n);\n")

	for _, c := range columns {
		if c.Type == format.TypeDate {
			fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s);\n", table, c.Ident, table, c.Ident)
		}
	}
	return b.String()
}

func (s *Store) selectList() string {
	cols := make([]string, 0, len(s.schema.Columns)+1)
	cols = append(cols, "id")
	for _, c := range s.schema.Columns {
		cols = append(cols, c.Ident)
	}
	return strings.Join(cols, ", ")
}

func whereClause(where string) string {
	if where == "" {
		return ""
	}
	return " WHERE " + where
}

// RowCount returns the number of stored rows.
func (s *Store) RowCount(ctx context.Context) (int, error) {
	return s.Count(ctx, "")
}

// Count returns the number of rows matching where, a compiled filter
// predicate. An empty where counts every row.
func (s *Store) Count(ctx context.Context, where string) (int, error) {
	var n int
	q := "SELECT count(*) FROM " + table + whereClause(where)
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Select returns up to limit rows matching where, skipping the first offset,
// in insertion order. The row identity is always the first value read.
func (s *Store) Select(ctx context.Context, offset, limit int, where string) ([]Record, error) {
	q := "SELECT " + s.selectList() + " FROM " + table + whereClause(where) + " ORDER BY id LIMIT ? OFFSET ?"

	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	return s.scanRecords(rows, limit)
}

// Window reads a page of at most limit rows starting at offset. When offset
// leaves fewer than limit rows, it is moved back so the page ends with the
// last matching row.
func (s *Store) Window(ctx context.Context, offset, limit int, where string) (Page, error) {
	total, err := s.Count(ctx, where)
	if err != nil {
		return Page{}, err
	}

	if offset < 0 {
		offset = 0
	}
	if offset > total-limit {
		offset = max(0, total-limit)
	}

	records, err := s.Select(ctx, offset, limit, where)
	if err != nil {
		return Page{}, err
	}

	return Page{Offset: offset, Total: total, Records: records}, nil
}

func (s *Store) scanRecords(rows *sql.Rows, capHint int) ([]Record, error) {
	ncols := len(s.schema.Columns)
	records := make([]Record, 0, min(capHint, 1024))

	ints := make([]int64, ncols)
	strs := make([]string, ncols)
	dest := make([]any, ncols+1)

	for rows.Next() {
		var rec Record
		dest[0] = &rec.ID
		for i, c := range s.schema.Columns {
			if c.Type == format.TypeString {
				dest[i+1] = &strs[i]
			} else {
				dest[i+1] = &ints[i]
			}
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec.Values = make([]any, ncols)
		for i, c := range s.schema.Columns {
			if c.Type == format.TypeString {
				rec.Values[i] = strs[i]
			} else {
				rec.Values[i] = ints[i]
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}
