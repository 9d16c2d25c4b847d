// Package db executes generated DDL against live databases.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Target is a database that generated statements can be applied to
type Target interface {
	// ExistingTables returns the qualified names of the base tables already
	// present. Tables in the connection's default namespace are unqualified.
	ExistingTables(ctx context.Context) (map[string]bool, error)
	// Columns returns the column names of a table in ordinal order
	Columns(ctx context.Context, table string) ([]string, error)
	// Apply executes the statements in order
	Apply(ctx context.Context, stmts []string) error
}

// splitTable separates "ns.table" into its parts, using def when unqualified
func splitTable(qualified, def string) (namespace, name string) {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return def, qualified
}

func qualify(namespace, name, def string) string {
	if namespace == def || namespace == "" {
		return name
	}
	return namespace + "." + name
}

// scanTables reads (namespace, name) rows
func scanTables(rows *sql.Rows, def string) (map[string]bool, error) {
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var namespace, name string
		if err := rows.Scan(&namespace, &name); err != nil {
			return nil, err
		}
		tables[qualify(namespace, name, def)] = true
	}
	return tables, rows.Err()
}

func scanNames(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// execAll runs statements one by one on anything that can execute them
func execAll(ctx context.Context, exec func(context.Context, string) error, stmts []string) error {
	for i, stmt := range stmts {
		if err := exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement %d: %w\n%s", i+1, err, stmt)
		}
	}
	return nil
}
