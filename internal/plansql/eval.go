package plansql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/projmerge/internal/plan"
)

// OpenMemory opens a private in-memory SQLite database for evaluating
// plans. The pool is limited to one connection: every new connection to
// ":memory:" would be a different, empty database.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// LoadTable creates table with the given columns and inserts rows.
// Values must be SQL parameters (int64, string, bool or nil).
func LoadTable(ctx context.Context, db *sql.DB, table string, columns []string, rows [][]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("table %s: no columns", table)
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("table %s: begin tx: %w", table, err)
	}
	defer tx.Rollback() // No-op if committed

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("table %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		if _, err := tx.ExecContext(ctx, insert, row...); err != nil {
			return fmt.Errorf("table %s: insert row %d: %w", table, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("table %s: commit: %w", table, err)
	}
	return nil
}

// Evaluate compiles node and runs it against db. Rows come back in the
// compiled ORDER BY, so two plans with equal results return equal slices.
//
// Returns an empty slice (not nil) if the plan produces no rows.
func Evaluate(ctx context.Context, db *sql.DB, c *SQLCompiler, node plan.PlanNode) ([][]any, error) {
	query, params, err := c.Compile(node)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", node.ID(), err)
	}
	defer rows.Close()

	width := len(node.OutputSymbols())
	result := make([][]any, 0)
	for rows.Next() {
		values := make([]any, width)
		ptrs := make([]any, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("evaluate %s: scan: %w", node.ID(), err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", node.ID(), err)
	}
	return result, nil
}
