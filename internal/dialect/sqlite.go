package dialect

import (
	"fmt"

	"github.com/tordrt/metaddl/internal/schema"
)

// SQLite renders SQLite DDL. Attached databases are not modelled, so
// namespaced tables are rejected.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Quote(ident string) string { return quoteWith(ident, `"`) }

func (s SQLite) Table(namespace, name string) (string, error) {
	if namespace != "" {
		return "", &schema.Error{
			Kind:   schema.UnsupportedFeature,
			Table:  schema.QualifiedName(namespace, name),
			Engine: s.Name(),
			Detail: "namespaces are not supported",
		}
	}
	return s.Quote(name), nil
}

func (s SQLite) ColumnType(t schema.FieldType) (string, error) {
	switch t.Kind {
	case schema.TypeInteger:
		return "INTEGER", nil
	case schema.TypeBigInt:
		return "BIGINT", nil
	case schema.TypeSmallInt:
		return "SMALLINT", nil
	case schema.TypeText, schema.TypeUUID, schema.TypeJSON:
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
	case schema.TypeTimestamp, schema.TypeTimestampTZ:
		return "TIMESTAMP", nil
	case schema.TypeDecimal:
		return decimal("NUMERIC", t), nil
	case schema.TypeReal, schema.TypeDouble:
		return "REAL", nil
	case schema.TypeBinary:
		return "BLOB", nil
	}
	return "", unsupportedType(s.Name(), t)
}

func (s SQLite) KeyColumnType(t schema.FieldType) (string, error) { return s.ColumnType(t) }

// AutoIncrement is only available on an INTEGER PRIMARY KEY column
func (s SQLite) AutoIncrement(col schema.Column, primaryKey []string) (AutoIncrement, error) {
	if !col.Type.Kind.IsInteger() {
		return AutoIncrement{}, unsupportedType(s.Name(), col.Type)
	}
	if len(primaryKey) != 1 || primaryKey[0] != col.Name {
		return AutoIncrement{}, &schema.Error{
			Kind:   schema.UnsupportedFeature,
			Field:  col.Name,
			Engine: s.Name(),
			Detail: "auto_increment column must be the only primary key column",
		}
	}
	return AutoIncrement{Type: "INTEGER", Clause: "PRIMARY KEY AUTOINCREMENT", PrimaryKey: true}, nil
}

func (SQLite) Default(d schema.Default, _ schema.FieldType) string {
	if d.Kind == schema.DefaultExpression {
		return parenthesized(d.Value)
	}
	return literal(d, "1", "0")
}

func (SQLite) OnDelete(action schema.OnDelete) string { return onDelete(action) }

func (SQLite) Preamble([]string, bool) []string { return nil }

func (SQLite) Comments() CommentStyle { return CommentNone }

func (SQLite) IndexIfNotExists() bool { return true }
