// Package dialect maps the engine independent schema onto the SQL of a
// concrete relational engine.
package dialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/metaddl/internal/schema"
)

// CommentStyle tells how descriptions reach the database
type CommentStyle int

const (
	CommentNone       CommentStyle = iota // descriptions are dropped
	CommentStatements                     // separate COMMENT ON statements
	CommentInline                         // COMMENT clauses inside CREATE TABLE
)

// AutoIncrement describes how an auto-increment column is rendered
type AutoIncrement struct {
	// Type replaces the mapped column type when set
	Type string
	// Clause follows the column type and nullability
	Clause string
	// PrimaryKey is set when Clause already declares the primary key
	PrimaryKey bool
}

// Dialect renders engine specific fragments of DDL
type Dialect interface {
	// Name is the canonical engine name
	Name() string
	Quote(ident string) string
	// Table renders a possibly namespaced table name
	Table(namespace, name string) (string, error)
	ColumnType(t schema.FieldType) (string, error)
	// KeyColumnType maps a column that is part of a primary key, unique
	// constraint, index or foreign key
	KeyColumnType(t schema.FieldType) (string, error)
	// AutoIncrement renders an auto-increment column whose table has the given primary key
	AutoIncrement(col schema.Column, primaryKey []string) (AutoIncrement, error)
	// Default renders a default value for a column of type t
	Default(d schema.Default, t schema.FieldType) string
	OnDelete(action schema.OnDelete) string
	// Preamble returns statements run before any table is created
	Preamble(namespaces []string, geometry bool) []string
	Comments() CommentStyle
	IndexIfNotExists() bool
}

var registry = map[string]Dialect{
	"postgresql": Postgres{},
	"mysql":      MySQL{},
	"sqlite":     SQLite{},
}

var aliases = map[string]string{
	"postgres": "postgresql",
	"pg":       "postgresql",
	"sqlite3":  "sqlite",
	"mariadb":  "mysql",
}

// Lookup returns the dialect registered for an engine name or alias
func Lookup(engine string) (Dialect, error) {
	name := strings.ToLower(strings.TrimSpace(engine))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	d, ok := registry[name]
	if !ok {
		return nil, &schema.Error{
			Kind:   schema.UnsupportedFeature,
			Engine: engine,
			Detail: fmt.Sprintf("unknown engine, expected one of %s", strings.Join(Engines(), ", ")),
		}
	}
	return d, nil
}

// Engines lists the canonical engine names
func Engines() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unsupportedType(engine string, t schema.FieldType) error {
	return &schema.Error{
		Kind:   schema.UnsupportedType,
		Type:   t.String(),
		Engine: engine,
	}
}

func quoteWith(ident, quote string) string {
	return quote + strings.ReplaceAll(ident, quote, quote+quote) + quote
}

// QuoteString renders a SQL string literal
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func onDelete(action schema.OnDelete) string {
	switch action {
	case schema.OnDeleteCascade:
		return "CASCADE"
	case schema.OnDeleteRestrict:
		return "RESTRICT"
	case schema.OnDeleteSetNull:
		return "SET NULL"
	case schema.OnDeleteNoAction:
		return "NO ACTION"
	}
	return ""
}

func literal(d schema.Default, trueValue, falseValue string) string {
	switch d.Kind {
	case schema.DefaultString:
		return QuoteString(d.Value)
	case schema.DefaultBool:
		if d.Value == "true" {
			return trueValue
		}
		return falseValue
	}
	return d.Value
}

// parenthesized wraps an expression default for engines that only accept bare
// literals and the CURRENT_* keywords
func parenthesized(expr string) string {
	trimmed := strings.TrimSpace(expr)
	switch strings.ToUpper(trimmed) {
	case "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME", "NULL":
		return trimmed
	}
	if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
		return trimmed
	}
	return "(" + trimmed + ")"
}
