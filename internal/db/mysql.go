package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	db       *sql.DB
	database string
}

// NewMySQLClient creates a new MySQL client from a driver DSN
// (user:pass@tcp(host:port)/database)
func NewMySQLClient(ctx context.Context, dsn string) (*MySQLClient, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("MySQL DSN must name a database")
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := sql.OpenDB(connector)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLClient{db: db, database: cfg.DBName}, nil
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

// ExistingTables lists base tables outside the system schemas; the connected
// database is the default namespace
func (c *MySQLClient) ExistingTables(ctx context.Context) (map[string]bool, error) {
	query := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
			AND table_schema NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		ORDER BY table_schema, table_name
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanTables(rows, c.database)
}

// Columns returns the columns of a table in ordinal order
func (c *MySQLClient) Columns(ctx context.Context, table string) ([]string, error) {
	namespace, name := splitTable(table, c.database)
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := c.db.QueryContext(ctx, query, namespace, name)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// Apply runs statements sequentially. MySQL commits implicitly after each DDL
// statement, so a failure leaves the earlier tables in place.
func (c *MySQLClient) Apply(ctx context.Context, stmts []string) error {
	return execAll(ctx, func(ctx context.Context, stmt string) error {
		_, err := c.db.ExecContext(ctx, stmt)
		return err
	}, stmts)
}
