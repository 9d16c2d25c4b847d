package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/metaddl/internal/schema"
)

// MarkdownFormatter describes a resolved schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the tables in creation order
func (f *MarkdownFormatter) Format(rs *schema.ResolvedSchema, order []string) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, name := range order {
		table, ok := rs.Table(name)
		if !ok {
			return fmt.Errorf("table %s not found in schema", name)
		}
		f.formatTable(table, rs)
	}
	return nil
}

func (f *MarkdownFormatter) formatTable(table *schema.ResolvedTable, rs *schema.ResolvedSchema) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.QualifiedName())
	if table.Description != "" {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", table.Description)
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range table.Columns {
		line := fmt.Sprintf("- **%s:** %s", col.Name, col.Type)
		if constraintStr := formatConstraints(col, table); constraintStr != "" {
			line += ", " + constraintStr
		}
		if col.Description != "" {
			line += " (" + col.Description + ")"
		}
		_, _ = fmt.Fprintln(f.writer, line)
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, fk := range table.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s (%s)%s\n",
				strings.Join(fk.Columns, ", "),
				fk.TargetTable,
				strings.Join(fk.TargetColumns, ", "),
				fk.Cardinality,
				onDeleteSuffix(fk.OnDelete))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if incoming := incomingReferences(table.QualifiedName(), rs); len(incoming) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Referenced by")
		_, _ = fmt.Fprintln(f.writer)
		for _, ref := range incoming {
			_, _ = fmt.Fprintf(f.writer, "- %s.%s\n", ref.table, strings.Join(ref.columns, ", "))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Idx")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			if idx.Unique {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s), unique\n", indexName(table, idx), strings.Join(idx.Columns, ", "))
			} else {
				_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n", indexName(table, idx), strings.Join(idx.Columns, ", "))
			}
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func formatConstraints(col schema.Column, table *schema.ResolvedTable) string {
	var constraints []string

	for _, pk := range table.PrimaryKey {
		if pk == col.Name {
			constraints = append(constraints, "PK")
			break
		}
	}
	if isUnique(table, col.Name) {
		constraints = append(constraints, "UNIQUE")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.AutoIncrement {
		constraints = append(constraints, "AUTO")
	}
	if col.Default != nil {
		constraints = append(constraints, "DEFAULT "+formatDefault(*col.Default))
	}
	return strings.Join(constraints, ", ")
}

type reference struct {
	table   string
	columns []string
}

// incomingReferences finds the foreign keys pointing at a table, in table order
func incomingReferences(target string, rs *schema.ResolvedSchema) []reference {
	var refs []reference
	for _, name := range rs.Names() {
		if name == target {
			continue
		}
		for _, fk := range rs.Tables[name].ForeignKeys {
			if fk.TargetTable == target {
				refs = append(refs, reference{table: name, columns: fk.Columns})
			}
		}
	}
	return refs
}
