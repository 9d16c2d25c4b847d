// Package ddl emits dependency ordered CREATE statements for a resolved schema.
package ddl

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tordrt/metaddl/internal/dialect"
	"github.com/tordrt/metaddl/internal/schema"
)

// StatementKind classifies an emitted statement
type StatementKind string

const (
	KindSchema    StatementKind = "schema"
	KindExtension StatementKind = "extension"
	KindTable     StatementKind = "table"
	KindIndex     StatementKind = "index"
	KindComment   StatementKind = "comment"
)

// Statement is one executable DDL statement, terminated by a semicolon
type Statement struct {
	Kind StatementKind
	// Table is the qualified table name, empty for preamble statements
	Table string
	SQL   string
}

// Options tune the emitted SQL
type Options struct {
	// IfNotExists guards table and index creation
	IfNotExists bool
}

// Emit renders the schema in the given creation order.
//
// Preamble statements come first, then for each table its CREATE TABLE followed
// by its indexes and comments. Output depends only on the arguments.
func Emit(rs *schema.ResolvedSchema, order []string, d dialect.Dialect, opts Options) ([]Statement, error) {
	e := &emitter{d: d, opts: opts}

	var stmts []Statement
	for _, sql := range d.Preamble(namespaces(rs), usesGeometry(rs)) {
		kind := KindSchema
		if strings.HasPrefix(sql, "CREATE EXTENSION") {
			kind = KindExtension
		}
		stmts = append(stmts, Statement{Kind: kind, SQL: sql})
	}

	for _, name := range order {
		t, ok := rs.Table(name)
		if !ok {
			return nil, fmt.Errorf("table %q in creation order is not in the schema", name)
		}
		tableStmts, err := e.table(t)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, tableStmts...)
	}
	return stmts, nil
}

// SQL returns the statement texts
func SQL(stmts []Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.SQL
	}
	return out
}

type emitter struct {
	d    dialect.Dialect
	opts Options
}

func (e *emitter) table(t *schema.ResolvedTable) ([]Statement, error) {
	qualified := t.QualifiedName()
	tableName, err := e.d.Table(t.Namespace, t.Name)
	if err != nil {
		return nil, annotate(err, qualified, "")
	}

	keyed := keyColumns(t)
	var lines []string
	inlinePK := false
	for _, col := range t.Columns {
		line, pk, err := e.column(t, col, keyed[col.Name])
		if err != nil {
			return nil, annotate(err, qualified, col.Name)
		}
		inlinePK = inlinePK || pk
		lines = append(lines, line)
	}

	if len(t.PrimaryKey) > 0 && !inlinePK {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", e.columns(t.PrimaryKey)))
	}
	for _, u := range t.Uniques {
		lines = append(lines, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
			e.d.Quote(ConstraintName(t.Name, u.Columns, "key")), e.columns(u.Columns)))
	}
	for _, fk := range t.ForeignKeys {
		line, err := e.foreignKey(t, fk)
		if err != nil {
			return nil, annotate(err, qualified, strings.Join(fk.Columns, ","))
		}
		lines = append(lines, line)
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if e.opts.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(tableName)
	sb.WriteString(" (\n    ")
	sb.WriteString(strings.Join(lines, ",\n    "))
	sb.WriteString("\n)")
	if e.d.Comments() == dialect.CommentInline && t.Description != "" {
		sb.WriteString(" COMMENT=" + dialect.QuoteString(t.Description))
	}
	sb.WriteString(";")

	stmts := []Statement{{Kind: KindTable, Table: qualified, SQL: sb.String()}}
	for _, idx := range t.Indexes {
		stmts = append(stmts, Statement{Kind: KindIndex, Table: qualified, SQL: e.index(t, tableName, idx)})
	}
	if e.d.Comments() == dialect.CommentStatements {
		stmts = append(stmts, e.comments(t, tableName)...)
	}
	return stmts, nil
}

// column renders one column definition and reports whether it carries the primary key
func (e *emitter) column(t *schema.ResolvedTable, col schema.Column, keyed bool) (string, bool, error) {
	mapType := e.d.ColumnType
	if keyed {
		mapType = e.d.KeyColumnType
	}
	typ, err := mapType(col.Type)
	if err != nil {
		return "", false, err
	}

	var ai dialect.AutoIncrement
	if col.AutoIncrement {
		if ai, err = e.d.AutoIncrement(col, t.PrimaryKey); err != nil {
			return "", false, err
		}
		if ai.Type != "" {
			typ = ai.Type
		}
	}

	parts := []string{e.d.Quote(col.Name), typ}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if ai.Clause != "" {
		parts = append(parts, ai.Clause)
	}
	if col.Default != nil && !col.AutoIncrement {
		parts = append(parts, "DEFAULT "+e.d.Default(*col.Default, col.Type))
	}
	if e.d.Comments() == dialect.CommentInline && col.Description != "" {
		parts = append(parts, "COMMENT "+dialect.QuoteString(col.Description))
	}
	return strings.Join(parts, " "), ai.PrimaryKey, nil
}

func (e *emitter) foreignKey(t *schema.ResolvedTable, fk schema.ForeignKey) (string, error) {
	ns, name := schema.SplitQualifiedName(fk.TargetTable)
	target, err := e.d.Table(ns, name)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		e.d.Quote(ConstraintName(t.Name, fk.Columns, "fkey")),
		e.columns(fk.Columns), target, e.columns(fk.TargetColumns))
	if action := e.d.OnDelete(fk.OnDelete); action != "" {
		line += " ON DELETE " + action
	}
	return line, nil
}

func (e *emitter) index(t *schema.ResolvedTable, tableName string, idx schema.IndexDefinition) string {
	name := idx.Name
	if name == "" {
		name = ConstraintName(t.Name, idx.Columns, "idx")
	}

	var sb strings.Builder
	sb.WriteString("CREATE ")
	if idx.Unique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX ")
	if e.opts.IfNotExists && e.d.IndexIfNotExists() {
		sb.WriteString("IF NOT EXISTS ")
	}
	fmt.Fprintf(&sb, "%s ON %s (%s);", e.d.Quote(name), tableName, e.columns(idx.Columns))
	return sb.String()
}

func (e *emitter) comments(t *schema.ResolvedTable, tableName string) []Statement {
	qualified := t.QualifiedName()
	var stmts []Statement
	if t.Description != "" {
		stmts = append(stmts, Statement{
			Kind:  KindComment,
			Table: qualified,
			SQL:   fmt.Sprintf("COMMENT ON TABLE %s IS %s;", tableName, dialect.QuoteString(t.Description)),
		})
	}
	for _, col := range t.Columns {
		if col.Description == "" {
			continue
		}
		stmts = append(stmts, Statement{
			Kind:  KindComment,
			Table: qualified,
			SQL: fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s;",
				tableName, e.d.Quote(col.Name), dialect.QuoteString(col.Description)),
		})
	}
	return stmts
}

func (e *emitter) columns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = e.d.Quote(c)
	}
	return strings.Join(quoted, ", ")
}

// MaxIdentifierLength is the longest generated name, PostgreSQL's limit and
// one below MySQL's
const MaxIdentifierLength = 63

// ConstraintName builds the conventional name <table>_<columns>_<suffix>.
// Longer names are cut and tagged with a hash of the full name so that two
// long names sharing a prefix stay distinct.
func ConstraintName(table string, columns []string, suffix string) string {
	name := table + "_" + strings.Join(columns, "_") + "_" + suffix
	if len(name) <= MaxIdentifierLength {
		return name
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	hash := fmt.Sprintf("%08x", h.Sum32())

	keep := MaxIdentifierLength - len(hash) - len(suffix) - 2
	for keep > 0 && !utf8.RuneStart(name[keep]) {
		keep--
	}
	return name[:keep] + "_" + hash + "_" + suffix
}

// annotate fills in table and field context the dialect cannot know
func annotate(err error, table, field string) error {
	if e, ok := schema.AsError(err); ok {
		if e.Table == "" {
			e.Table = table
		}
		if e.Field == "" {
			e.Field = field
		}
	}
	return err
}

// keyColumns collects the columns taking part in any key or index of t
func keyColumns(t *schema.ResolvedTable) map[string]bool {
	keyed := make(map[string]bool)
	mark := func(cols []string) {
		for _, c := range cols {
			keyed[c] = true
		}
	}
	mark(t.PrimaryKey)
	for _, u := range t.Uniques {
		mark(u.Columns)
	}
	for _, fk := range t.ForeignKeys {
		mark(fk.Columns)
	}
	for _, idx := range t.Indexes {
		mark(idx.Columns)
	}
	return keyed
}

func namespaces(rs *schema.ResolvedSchema) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range rs.Tables {
		if t.Namespace != "" && !seen[t.Namespace] {
			seen[t.Namespace] = true
			out = append(out, t.Namespace)
		}
	}
	sort.Strings(out)
	return out
}

func usesGeometry(rs *schema.ResolvedSchema) bool {
	for _, t := range rs.Tables {
		for _, c := range t.Columns {
			if c.Type.Kind == schema.TypeGeometry {
				return true
			}
		}
	}
	return false
}
