package dialect

import (
	"fmt"

	"github.com/tordrt/metaddl/internal/schema"
)

// MySQL renders MySQL 8 DDL
type MySQL struct{}

var mysqlSpatial = map[string]string{
	"point":              "POINT",
	"linestring":         "LINESTRING",
	"polygon":            "POLYGON",
	"multipoint":         "MULTIPOINT",
	"multilinestring":    "MULTILINESTRING",
	"multipolygon":       "MULTIPOLYGON",
	"geometrycollection": "GEOMETRYCOLLECTION",
}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Quote(ident string) string { return quoteWith(ident, "`") }

func (m MySQL) Table(namespace, name string) (string, error) {
	if namespace == "" {
		return m.Quote(name), nil
	}
	return m.Quote(namespace) + "." + m.Quote(name), nil
}

func (m MySQL) ColumnType(t schema.FieldType) (string, error) {
	switch t.Kind {
	case schema.TypeInteger:
		return "INT", nil
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
		return "VARCHAR(255)", nil
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
		return "DATETIME", nil
	case schema.TypeTimestampTZ:
		// TIMESTAMP values are stored as UTC and converted on read
		return "TIMESTAMP", nil
	case schema.TypeDecimal:
		return decimal("DECIMAL", t), nil
	case schema.TypeReal:
		return "FLOAT", nil
	case schema.TypeDouble:
		return "DOUBLE", nil
	case schema.TypeUUID:
		return "CHAR(36)", nil
	case schema.TypeJSON:
		return "JSON", nil
	case schema.TypeBinary:
		return "BLOB", nil
	case schema.TypeGeometry:
		name := "GEOMETRY"
		if t.Subtype != "" {
			spatial, ok := mysqlSpatial[t.Subtype]
			if !ok {
				return "", unsupportedType(m.Name(), t)
			}
			name = spatial
		}
		if t.SRID > 0 {
			return fmt.Sprintf("%s SRID %d", name, t.SRID), nil
		}
		return name, nil
	}
	return "", unsupportedType(m.Name(), t)
}

// KeyColumnType replaces TEXT and BLOB, which MySQL cannot index without a
// prefix length, by their VARCHAR(255) and VARBINARY(255) counterparts. JSON
// and spatial columns cannot take part in ordinary keys at all.
func (m MySQL) KeyColumnType(t schema.FieldType) (string, error) {
	switch t.Kind {
	case schema.TypeText:
		return "VARCHAR(255)", nil
	case schema.TypeBinary:
		return "VARBINARY(255)", nil
	case schema.TypeJSON, schema.TypeGeometry:
		return "", &schema.Error{
			Kind:   schema.UnsupportedFeature,
			Type:   t.String(),
			Engine: m.Name(),
			Detail: "column type cannot be part of a key, unique constraint, index or foreign key",
		}
	}
	return m.ColumnType(t)
}

// AutoIncrement requires the column to lead the primary key
func (m MySQL) AutoIncrement(col schema.Column, primaryKey []string) (AutoIncrement, error) {
	if !col.Type.Kind.IsInteger() {
		return AutoIncrement{}, unsupportedType(m.Name(), col.Type)
	}
	if len(primaryKey) == 0 || primaryKey[0] != col.Name {
		return AutoIncrement{}, &schema.Error{
			Kind:   schema.UnsupportedFeature,
			Field:  col.Name,
			Engine: m.Name(),
			Detail: "auto_increment column must be the first primary key column",
		}
	}
	return AutoIncrement{Clause: "AUTO_INCREMENT"}, nil
}

// Default renders literals on TEXT, BLOB, JSON and spatial columns as
// expressions; MySQL accepts no plain literal default there.
func (MySQL) Default(d schema.Default, t schema.FieldType) string {
	if d.Kind == schema.DefaultExpression {
		return parenthesized(d.Value)
	}
	value := literal(d, "TRUE", "FALSE")
	switch t.Kind {
	case schema.TypeText, schema.TypeBinary, schema.TypeJSON, schema.TypeGeometry:
		return "(" + value + ")"
	}
	return value
}

func (MySQL) OnDelete(action schema.OnDelete) string { return onDelete(action) }

func (m MySQL) Preamble(namespaces []string, _ bool) []string {
	var stmts []string
	for _, ns := range namespaces {
		stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", m.Quote(ns)))
	}
	return stmts
}

func (MySQL) Comments() CommentStyle { return CommentInline }

func (MySQL) IndexIfNotExists() bool { return false }
