package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/metaddl/internal/ddl"
	"github.com/tordrt/metaddl/internal/schema"
)

// TextFormatter describes a resolved schema as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the tables in creation order
func (f *TextFormatter) Format(rs *schema.ResolvedSchema, order []string) error {
	for i, name := range order {
		table, ok := rs.Table(name)
		if !ok {
			return fmt.Errorf("table %s not found in schema", name)
		}
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTable(table)
	}
	return nil
}

func (f *TextFormatter) formatTable(table *schema.ResolvedTable) {
	// Table header with primary key
	pkStr := ""
	if len(table.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	kind := "TABLE"
	if table.Junction {
		kind = "JUNCTION"
	}
	_, _ = fmt.Fprintf(f.writer, "%s %s%s\n", kind, table.QualifiedName(), pkStr)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatColumn(col, table))
	}

	if len(table.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  RELATIONS:")
		for _, fk := range table.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "    %s → %s.%s (%s)%s\n",
				strings.Join(fk.Columns, ", "), fk.TargetTable, strings.Join(fk.TargetColumns, ", "),
				fk.Cardinality, onDeleteSuffix(fk.OnDelete))
		}
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			unique := ""
			if idx.Unique {
				unique = " UNIQUE"
			}
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)%s\n", indexName(table, idx), strings.Join(idx.Columns, ", "), unique)
		}
	}
}

// formatColumn renders "name: type [UNIQUE] [NOT NULL] [AUTO] [DEFAULT x]"
func formatColumn(col schema.Column, table *schema.ResolvedTable) string {
	parts := []string{col.Name + ":", col.Type.String()}

	if isUnique(table, col.Name) {
		parts = append(parts, "UNIQUE")
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.AutoIncrement {
		parts = append(parts, "AUTO")
	}
	if col.Default != nil {
		parts = append(parts, "DEFAULT "+formatDefault(*col.Default))
	}
	return strings.Join(parts, " ")
}

func formatDefault(d schema.Default) string {
	if d.Kind == schema.DefaultString {
		return fmt.Sprintf("%q", d.Value)
	}
	return d.Value
}

func onDeleteSuffix(action schema.OnDelete) string {
	if action == schema.OnDeleteUnset {
		return ""
	}
	return ", on delete " + string(action)
}

func isUnique(table *schema.ResolvedTable, column string) bool {
	for _, u := range table.Uniques {
		if len(u.Columns) == 1 && u.Columns[0] == column {
			return true
		}
	}
	return false
}

func indexName(table *schema.ResolvedTable, idx schema.IndexDefinition) string {
	if idx.Name != "" {
		return idx.Name
	}
	return ddl.ConstraintName(table.Name, idx.Columns, "idx")
}
