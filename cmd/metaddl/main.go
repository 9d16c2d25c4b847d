package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"github.com/tordrt/metaddl"
	"github.com/tordrt/metaddl/internal/formatter"
	"github.com/tordrt/metaddl/internal/source"
)

var (
	logLevel     string
	engine       string
	outputFile   string
	outputDir    string
	ifNotExists  bool
	format       string
	tables       string
	exclude      string
	dbURL        string
	mysqlURL     string
	sqlitePath   string
	skipExisting bool
	dryRun       bool
)

var logger = slog.New(slog.DiscardHandler)

var rootCmd = &cobra.Command{
	Use:   "metaddl",
	Short: "Generate dependency ordered DDL from table metadata",
	Long: `metaddl reads table metadata from JSON or YAML documents, resolves relationships
into foreign keys and junction tables, and emits CREATE statements for PostgreSQL,
MySQL, or SQLite in an order that respects every reference.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(os.Stderr, logLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [paths...]",
	Short: "Print or write the DDL for a set of metadata documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

var describeCmd = &cobra.Command{
	Use:   "describe [paths...]",
	Short: "Print the resolved schema in creation order",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDescribe,
}

var applyCmd = &cobra.Command{
	Use:   "apply [paths...]",
	Short: "Create the tables in a database",
	Long: `apply generates DDL for the engine implied by the connection and executes it.
The connection comes from --db-url, --mysql-url or --sqlite, falling back to the
DATABASE_URL environment variable. Credentials missing from the URL are read from
DB_USER and DB_TOKEN.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	generateCmd.Flags().StringVarP(&engine, "engine", "e", "postgresql", "Target engine: postgresql, mysql or sqlite")
	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	generateCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory, one file per table")
	generateCmd.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "Guard CREATE statements with IF NOT EXISTS")

	describeCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, markdown or debug")
	describeCmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	describeCmd.Flags().StringVar(&exclude, "exclude", "", "Tables to leave out (comma-separated, optional)")

	applyCmd.Flags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	applyCmd.Flags().StringVar(&mysqlURL, "mysql-url", "", "MySQL connection string")
	applyCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database file path")
	applyCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Leave out tables that already exist")
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check against the database without executing")
	applyCmd.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "Guard CREATE statements with IF NOT EXISTS")

	rootCmd.AddCommand(generateCmd, describeCmd, applyCmd)
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func readDocuments(paths []string) ([]metaddl.Document, error) {
	docs, err := source.ReadPaths(paths)
	if err != nil {
		return nil, err
	}
	logger.Info("read metadata documents", "documents", len(docs))
	for _, doc := range docs {
		logger.Debug("document", "name", doc.Name)
	}
	return docs, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if outputDir != "" && outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}

	docs, err := readDocuments(args)
	if err != nil {
		return err
	}
	result, err := metaddl.Generate(docs, &metaddl.Options{Engine: engine, IfNotExists: ifNotExists})
	if err != nil {
		return err
	}
	logger.Info("resolved schema", "engine", result.Engine, "tables", len(result.Order), "statements", len(result.Statements))

	if outputDir != "" {
		if err := formatter.NewMultiFileFormatter(outputDir).Format(result.Statements, result.Order); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return nil
	}

	return withOutput(cmd.OutOrStdout(), func(w io.Writer) error {
		return formatter.NewSQLFormatter(w).Format(result.Statements)
	})
}

func runDescribe(cmd *cobra.Command, args []string) error {
	docs, err := readDocuments(args)
	if err != nil {
		return err
	}
	rs, order, err := metaddl.Resolve(docs)
	if err != nil {
		return err
	}
	order = filterTables(order, parseTableList(tables), parseTableList(exclude))

	w := cmd.OutOrStdout()
	var err2 error
	switch format {
	case "text":
		err2 = formatter.NewTextFormatter(w).Format(rs, order)
	case "markdown":
		err2 = formatter.NewMarkdownFormatter(w).Format(rs, order)
	case "debug":
		for _, name := range order {
			t, _ := rs.Table(name)
			spew.Fdump(w, t)
		}
	default:
		return fmt.Errorf("invalid format: %s (must be 'text', 'markdown' or 'debug')", format)
	}

	if err2 != nil {
		return fmt.Errorf("failed to format output: %w", err2)
	}
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	url, err := databaseURL(dbURL, mysqlURL, sqlitePath, os.Getenv("DATABASE_URL"))
	if err != nil {
		return err
	}

	docs, err := readDocuments(args)
	if err != nil {
		return err
	}

	report, err := metaddl.Apply(context.Background(), url, docs, &metaddl.ApplyOptions{
		IfNotExists:  ifNotExists,
		SkipExisting: skipExisting,
		DryRun:       dryRun,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun {
		return formatter.NewSQLFormatter(out).Format(report.Executed)
	}
	fmt.Fprintf(out, "created %d tables", len(report.Created))
	if len(report.Skipped) > 0 {
		fmt.Fprintf(out, ", skipped %d existing (%s)", len(report.Skipped), strings.Join(report.Skipped, ", "))
	}
	fmt.Fprintln(out)
	return nil
}

// withOutput runs write against --output when set, stdout otherwise
func withOutput(stdout io.Writer, write func(io.Writer) error) error {
	var writer = stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}
	return write(writer)
}

// databaseURL turns the connection flags into a single URL
func databaseURL(pgURL, myURL, sqlite, env string) (string, error) {
	count := 0
	for _, v := range []string{pgURL, myURL, sqlite} {
		if v != "" {
			count++
		}
	}
	if count > 1 {
		return "", fmt.Errorf("only one of --db-url, --mysql-url, or --sqlite can be specified")
	}

	switch {
	case pgURL != "":
		return pgURL, nil
	case myURL != "":
		if strings.HasPrefix(myURL, "mysql://") {
			return myURL, nil
		}
		return "mysql://" + myURL, nil
	case sqlite != "":
		return "sqlite://" + strings.TrimPrefix(sqlite, "sqlite://"), nil
	case env != "":
		return env, nil
	}
	return "", fmt.Errorf("one of --db-url, --mysql-url, or --sqlite must be specified (or set DATABASE_URL)")
}

func parseTableList(s string) []string {
	if s == "" {
		return nil
	}
	list := strings.Split(s, ",")
	for i, t := range list {
		list[i] = strings.TrimSpace(t)
	}
	return list
}

// filterTables keeps the creation order while applying --tables and --exclude
func filterTables(order, include, exclude []string) []string {
	keep := make(map[string]bool, len(include))
	for _, t := range include {
		keep[t] = true
	}
	drop := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		drop[t] = true
	}

	filtered := make([]string, 0, len(order))
	for _, name := range order {
		if len(keep) > 0 && !keep[name] {
			continue
		}
		if drop[name] {
			continue
		}
		filtered = append(filtered, name)
	}
	return filtered
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
