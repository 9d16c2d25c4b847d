package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tordrt/metaddl/internal/ddl"
)

const (
	preambleFile = "000_preamble.sql"
	orderFile    = "_order.txt"
)

// MultiFileFormatter writes one SQL file per table in a directory
type MultiFileFormatter struct {
	OutputDir string
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir string) *MultiFileFormatter {
	return &MultiFileFormatter{OutputDir: outputDir}
}

// Format writes 000_preamble.sql when preamble statements exist, NNN_<table>.sql
// for each table numbered by creation order, and _order.txt listing the files
// in execution order
func (f *MultiFileFormatter) Format(stmts []ddl.Statement, order []string) error {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var preamble []ddl.Statement
	byTable := make(map[string][]ddl.Statement)
	for _, stmt := range stmts {
		if stmt.Table == "" {
			preamble = append(preamble, stmt)
			continue
		}
		byTable[stmt.Table] = append(byTable[stmt.Table], stmt)
	}

	var files []string
	if len(preamble) > 0 {
		if err := f.writeFile(preambleFile, preamble); err != nil {
			return fmt.Errorf("failed to write preamble: %w", err)
		}
		files = append(files, preambleFile)
	}

	for i, table := range order {
		name := TableFileName(i+1, table)
		if err := f.writeFile(name, byTable[table]); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table, err)
		}
		files = append(files, name)
	}

	content := strings.Join(files, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(f.OutputDir, orderFile), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write order file: %w", err)
	}
	return nil
}

// TableFileName names the file of the n-th table in creation order
func TableFileName(n int, table string) string {
	return fmt.Sprintf("%03d_%s.sql", n, table)
}

func (f *MultiFileFormatter) writeFile(name string, stmts []ddl.Statement) error {
	file, err := os.Create(filepath.Join(f.OutputDir, name))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if err := NewSQLFormatter(file).Format(stmts); err != nil {
		return err
	}
	return file.Close()
}
