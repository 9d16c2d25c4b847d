package dialect

import (
	"fmt"
	"strings"

	"github.com/tordrt/metaddl/internal/schema"
)

// Postgres renders PostgreSQL DDL
type Postgres struct{}

func (Postgres) Name() string { return "postgresql" }

func (Postgres) Quote(ident string) string { return quoteWith(ident, `"`) }

func (p Postgres) Table(namespace, name string) (string, error) {
	if namespace == "" {
		return p.Quote(name), nil
	}
	return p.Quote(namespace) + "." + p.Quote(name), nil
}

func (p Postgres) ColumnType(t schema.FieldType) (string, error) {
	switch t.Kind {
	case schema.TypeInteger:
		return "INTEGER", nil
	case schema.TypeBigInt:
		return "BIGINT", nil
	case schema.TypeSmallInt:
		return "SMALLINT", nil
	case schema.TypeText:
		return "TEXT", nil
	case schema.TypeVarchar:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length), nil
		}
		return "VARCHAR", nil
	case schema.TypeChar:
		if t.Length > 0 {
			return fmt.Sprintf("CHAR(%d)", t.Length), nil
		}
		return "CHAR", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeTimestamp:
		return "TIMESTAMP", nil
	case schema.TypeTimestampTZ:
		return "TIMESTAMPTZ", nil
	case schema.TypeInterval:
		return "INTERVAL", nil
	case schema.TypeDecimal:
		return decimal("NUMERIC", t), nil
	case schema.TypeReal:
		return "REAL", nil
	case schema.TypeDouble:
		return "DOUBLE PRECISION", nil
	case schema.TypeUUID:
		return "UUID", nil
	case schema.TypeJSON:
		return "JSONB", nil
	case schema.TypeBinary:
		return "BYTEA", nil
	case schema.TypeGeometry:
		// PostGIS typmod: GEOMETRY(POINT,4326)
		switch {
		case t.Subtype != "" && t.SRID > 0:
			return fmt.Sprintf("GEOMETRY(%s,%d)", strings.ToUpper(t.Subtype), t.SRID), nil
		case t.Subtype != "":
			return fmt.Sprintf("GEOMETRY(%s)", strings.ToUpper(t.Subtype)), nil
		}
		return "GEOMETRY", nil
	}
	return "", unsupportedType(p.Name(), t)
}

func (p Postgres) AutoIncrement(col schema.Column, _ []string) (AutoIncrement, error) {
	if !col.Type.Kind.IsInteger() {
		return AutoIncrement{}, unsupportedType(p.Name(), col.Type)
	}
	return AutoIncrement{Clause: "GENERATED BY DEFAULT AS IDENTITY"}, nil
}

func (p Postgres) KeyColumnType(t schema.FieldType) (string, error) { return p.ColumnType(t) }

func (Postgres) Default(d schema.Default, _ schema.FieldType) string {
	return literal(d, "TRUE", "FALSE")
}

func (Postgres) OnDelete(action schema.OnDelete) string { return onDelete(action) }

func (p Postgres) Preamble(namespaces []string, geometry bool) []string {
	var stmts []string
	for _, ns := range namespaces {
		stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", p.Quote(ns)))
	}
	if geometry {
		stmts = append(stmts, "CREATE EXTENSION IF NOT EXISTS postgis;")
	}
	return stmts
}

func (Postgres) Comments() CommentStyle { return CommentStatements }

func (Postgres) IndexIfNotExists() bool { return true }

func decimal(name string, t schema.FieldType) string {
	switch {
	case t.Precision > 0 && t.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", name, t.Precision, t.Scale)
	case t.Precision > 0:
		return fmt.Sprintf("%s(%d)", name, t.Precision)
	}
	return name
}
