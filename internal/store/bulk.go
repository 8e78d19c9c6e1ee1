package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"logq/internal/parser"
)

// maxParams is SQLite's default host-parameter limit (SQLITE_MAX_VARIABLE_NUMBER).
const maxParams = 32766

// BulkWriter inserts rows inside one transaction. Statements are prepared
// once per distinct batch length and reused; argument slices come from an
// arena that is reset after every statement.
type BulkWriter struct {
	tx      *sql.Tx
	ncols   int
	perStmt int
	stmts   map[int]*sql.Stmt
	args    []any
	idents  []string
}

// Begin starts the bulk-load transaction. batchSize is the number of rows the
// full-size statement inserts.
func (s *Store) Begin(ctx context.Context, batchSize int) (*BulkWriter, error) {
	ncols := len(s.schema.Columns)
	if ncols == 0 {
		return nil, errors.New("begin bulk insert: schema has no columns")
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	idents := make([]string, ncols)
	for i, c := range s.schema.Columns {
		idents[i] = c.Ident
	}

	perStmt := min(batchSize, maxParams/ncols)
	return &BulkWriter{
		tx:      tx,
		ncols:   ncols,
		perStmt: perStmt,
		stmts:   make(map[int]*sql.Stmt),
		args:    make([]any, 0, perStmt*ncols),
		idents:  idents,
	}, nil
}

// Insert writes rows. Every row must have exactly one value per column.
func (w *BulkWriter) Insert(ctx context.Context, rows []*parser.Row) error {
	for len(rows) > 0 {
		n := min(len(rows), w.perStmt)
		if err := w.exec(ctx, rows[:n]); err != nil {
			return err
		}
		rows = rows[n:]
	}
	return nil
}

func (w *BulkWriter) exec(ctx context.Context, rows []*parser.Row) error {
	args := w.args[:0]
	for _, r := range rows {
		if r.Len() != w.ncols {
			return fmt.Errorf("insert rows: row has %d values, schema has %d columns", r.Len(), w.ncols)
		}
		args = r.AppendArgs(args)
	}

	stmt, err := w.stmt(ctx, len(rows))
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, args...)

	// Drop the string references so the rows can be collected.
	clear(args)
	w.args = args[:0]

	if err != nil {
		return fmt.Errorf("insert rows: %w", err)
	}
	return nil
}

func (w *BulkWriter) stmt(ctx context.Context, n int) (*sql.Stmt, error) {
	if stmt, ok := w.stmts[n]; ok {
		return stmt, nil
	}

	stmt, err := w.tx.PrepareContext(ctx, insertSQL(w.idents, n))
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	w.stmts[n] = stmt
	return stmt, nil
}

func insertSQL(idents []string, n int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?,", len(idents)), ",") + ")"

	var b strings.Builder
	b.Grow(len(group)*n + 64)
	b.WriteString("INSERT INTO " + table + " (" + strings.Join(idents, ", ") + ") VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(group)
	}
	return b.String()
}

func (w *BulkWriter) closeStmts() {
	for n, stmt := range w.stmts {
		stmt.Close()
		delete(w.stmts, n)
	}
}

// Commit closes the prepared statements and commits the transaction.
func (w *BulkWriter) Commit() error {
	w.closeStmts()
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. It is safe to call after Commit.
func (w *BulkWriter) Rollback() error {
	w.closeStmts()
	if err := w.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
