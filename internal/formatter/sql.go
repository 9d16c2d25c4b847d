package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/metaddl/internal/ddl"
)

// SQLFormatter writes statements to a single stream separated by blank lines
type SQLFormatter struct {
	writer io.Writer
}

// NewSQLFormatter creates a new SQL formatter
func NewSQLFormatter(w io.Writer) *SQLFormatter {
	return &SQLFormatter{writer: w}
}

// Format writes the statements
func (f *SQLFormatter) Format(stmts []ddl.Statement) error {
	for i, stmt := range stmts {
		if i > 0 {
			if _, err := fmt.Fprintln(f.writer); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(f.writer, stmt.SQL); err != nil {
			return err
		}
	}
	return nil
}
