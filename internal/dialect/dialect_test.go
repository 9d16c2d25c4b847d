package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tordrt/metaddl/internal/schema"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		engine string
		want   string
	}{
		{"postgresql", "postgresql"},
		{"postgres", "postgresql"},
		{"PostgreSQL", "postgresql"},
		{"mysql", "mysql"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			d, err := Lookup(tt.engine)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}

	_, err := Lookup("oracle")
	require.Error(t, err)
	e, ok := schema.AsError(err)
	require.True(t, ok)
	assert.Equal(t, schema.UnsupportedFeature, e.Kind)
	assert.Equal(t, "oracle", e.Engine)
}

func TestEngines(t *testing.T) {
	assert.Equal(t, []string{"mysql", "postgresql", "sqlite"}, Engines())
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		typ      schema.FieldType
		postgres string
		mysql    string
		sqlite   string
	}{
		{schema.FieldType{Kind: schema.TypeInteger}, "INTEGER", "INT", "INTEGER"},
		{schema.FieldType{Kind: schema.TypeBigInt}, "BIGINT", "BIGINT", "BIGINT"},
		{schema.FieldType{Kind: schema.TypeVarchar, Length: 20}, "VARCHAR(20)", "VARCHAR(20)", "VARCHAR(20)"},
		{schema.FieldType{Kind: schema.TypeVarchar}, "VARCHAR", "VARCHAR(255)", "VARCHAR"},
		{schema.FieldType{Kind: schema.TypeDecimal, Precision: 10, Scale: 2}, "NUMERIC(10,2)", "DECIMAL(10,2)", "NUMERIC(10,2)"},
		{schema.FieldType{Kind: schema.TypeDecimal, Precision: 8}, "NUMERIC(8)", "DECIMAL(8)", "NUMERIC(8)"},
		{schema.FieldType{Kind: schema.TypeTimestampTZ}, "TIMESTAMPTZ", "TIMESTAMP", "TIMESTAMP"},
		{schema.FieldType{Kind: schema.TypeDouble}, "DOUBLE PRECISION", "DOUBLE", "REAL"},
		{schema.FieldType{Kind: schema.TypeUUID}, "UUID", "CHAR(36)", "TEXT"},
		{schema.FieldType{Kind: schema.TypeJSON}, "JSONB", "JSON", "TEXT"},
		{schema.FieldType{Kind: schema.TypeBinary}, "BYTEA", "BLOB", "BLOB"},
	}

	dialects := []Dialect{Postgres{}, MySQL{}, SQLite{}}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			for i, want := range []string{tt.postgres, tt.mysql, tt.sqlite} {
				got, err := dialects[i].ColumnType(tt.typ)
				require.NoError(t, err, dialects[i].Name())
				assert.Equal(t, want, got, dialects[i].Name())
			}
		})
	}
}

func TestGeometry(t *testing.T) {
	point := schema.FieldType{Kind: schema.TypeGeometry, Subtype: "point", SRID: 4326}

	got, err := Postgres{}.ColumnType(point)
	require.NoError(t, err)
	assert.Equal(t, "GEOMETRY(POINT,4326)", got)

	got, err = MySQL{}.ColumnType(point)
	require.NoError(t, err)
	assert.Equal(t, "POINT SRID 4326", got)

	_, err = MySQL{}.ColumnType(schema.FieldType{Kind: schema.TypeGeometry, Subtype: "tin"})
	assert.True(t, schema.IsKind(err, schema.UnsupportedType))

	_, err = SQLite{}.ColumnType(point)
	require.Error(t, err)
	e, _ := schema.AsError(err)
	assert.Equal(t, schema.UnsupportedType, e.Kind)
	assert.Equal(t, "geometry(point,4326)", e.Type)
	assert.Equal(t, "sqlite", e.Engine)
}

func TestIntervalUnsupported(t *testing.T) {
	interval := schema.FieldType{Kind: schema.TypeInterval}

	got, err := Postgres{}.ColumnType(interval)
	require.NoError(t, err)
	assert.Equal(t, "INTERVAL", got)

	for _, d := range []Dialect{MySQL{}, SQLite{}} {
		_, err := d.ColumnType(interval)
		assert.True(t, schema.IsKind(err, schema.UnsupportedType), d.Name())
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"users"`, Postgres{}.Quote("users"))
	assert.Equal(t, `"we""ird"`, Postgres{}.Quote(`we"ird`))
	assert.Equal(t, "`users`", MySQL{}.Quote("users"))
	assert.Equal(t, "`a``b`", MySQL{}.Quote("a`b"))
	assert.Equal(t, "'it''s'", QuoteString("it's"))
}

func TestTable(t *testing.T) {
	got, err := Postgres{}.Table("sales", "orders")
	require.NoError(t, err)
	assert.Equal(t, `"sales"."orders"`, got)

	got, err = MySQL{}.Table("", "orders")
	require.NoError(t, err)
	assert.Equal(t, "`orders`", got)

	_, err = SQLite{}.Table("sales", "orders")
	assert.True(t, schema.IsKind(err, schema.UnsupportedFeature))
}

func TestAutoIncrement(t *testing.T) {
	id := schema.Column{Name: "id", Type: schema.FieldType{Kind: schema.TypeInteger}}

	ai, err := Postgres{}.AutoIncrement(id, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, AutoIncrement{Clause: "GENERATED BY DEFAULT AS IDENTITY"}, ai)

	ai, err = MySQL{}.AutoIncrement(id, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, AutoIncrement{Clause: "AUTO_INCREMENT"}, ai)

	_, err = MySQL{}.AutoIncrement(id, nil)
	assert.True(t, schema.IsKind(err, schema.UnsupportedFeature))

	ai, err = SQLite{}.AutoIncrement(id, []string{"id"})
	require.NoError(t, err)
	assert.True(t, ai.PrimaryKey)
	assert.Equal(t, "INTEGER", ai.Type)

	_, err = SQLite{}.AutoIncrement(id, []string{"id", "other"})
	assert.True(t, schema.IsKind(err, schema.UnsupportedFeature))

	_, err = Postgres{}.AutoIncrement(schema.Column{Name: "code", Type: schema.FieldType{Kind: schema.TypeText}}, nil)
	assert.True(t, schema.IsKind(err, schema.UnsupportedType))
}

func TestDefault(t *testing.T) {
	tests := []struct {
		name     string
		def      schema.Default
		postgres string
		mysql    string
		sqlite   string
	}{
		{"string", schema.Default{Kind: schema.DefaultString, Value: "o'k"}, "'o''k'", "'o''k'", "'o''k'"},
		{"integer", schema.Default{Kind: schema.DefaultInteger, Value: "42"}, "42", "42", "42"},
		{"float", schema.Default{Kind: schema.DefaultFloat, Value: "1.5"}, "1.5", "1.5", "1.5"},
		{"bool", schema.Default{Kind: schema.DefaultBool, Value: "true"}, "TRUE", "TRUE", "1"},
		{"keyword", schema.Default{Kind: schema.DefaultExpression, Value: "CURRENT_TIMESTAMP"}, "CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP"},
		{"expression", schema.Default{Kind: schema.DefaultExpression, Value: "now()"}, "now()", "(now())", "(now())"},
	}
	varchar := schema.FieldType{Kind: schema.TypeVarchar, Length: 20}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.postgres, Postgres{}.Default(tt.def, varchar))
			assert.Equal(t, tt.mysql, MySQL{}.Default(tt.def, varchar))
			assert.Equal(t, tt.sqlite, SQLite{}.Default(tt.def, varchar))
		})
	}
}

func TestMySQLDefaultOnLargeTypes(t *testing.T) {
	tests := []struct {
		name string
		def  schema.Default
		typ  schema.FieldType
		want string
	}{
		{"empty string on text", schema.Default{Kind: schema.DefaultString, Value: ""}, schema.FieldType{Kind: schema.TypeText}, "('')"},
		{"string on text", schema.Default{Kind: schema.DefaultString, Value: "n/a"}, schema.FieldType{Kind: schema.TypeText}, "('n/a')"},
		{"json literal", schema.Default{Kind: schema.DefaultString, Value: "{}"}, schema.FieldType{Kind: schema.TypeJSON}, "('{}')"},
		{"expression on json", schema.Default{Kind: schema.DefaultExpression, Value: "JSON_ARRAY()"}, schema.FieldType{Kind: schema.TypeJSON}, "(JSON_ARRAY())"},
		{"string on varchar", schema.Default{Kind: schema.DefaultString, Value: "open"}, schema.FieldType{Kind: schema.TypeVarchar}, "'open'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MySQL{}.Default(tt.def, tt.typ))
		})
	}

	assert.Equal(t, "''", Postgres{}.Default(schema.Default{Kind: schema.DefaultString}, schema.FieldType{Kind: schema.TypeText}))
}

func TestKeyColumnType(t *testing.T) {
	text := schema.FieldType{Kind: schema.TypeText}
	binary := schema.FieldType{Kind: schema.TypeBinary}

	got, err := MySQL{}.KeyColumnType(text)
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR(255)", got)

	got, err = MySQL{}.KeyColumnType(binary)
	require.NoError(t, err)
	assert.Equal(t, "VARBINARY(255)", got)

	got, err = MySQL{}.KeyColumnType(schema.FieldType{Kind: schema.TypeInteger})
	require.NoError(t, err)
	assert.Equal(t, "INT", got)

	for _, typ := range []schema.FieldType{{Kind: schema.TypeJSON}, {Kind: schema.TypeGeometry}} {
		_, err = MySQL{}.KeyColumnType(typ)
		e, ok := schema.AsError(err)
		require.True(t, ok)
		assert.Equal(t, schema.UnsupportedFeature, e.Kind)
		assert.Equal(t, "mysql", e.Engine)
	}

	got, err = Postgres{}.KeyColumnType(text)
	require.NoError(t, err)
	assert.Equal(t, "TEXT", got)

	got, err = SQLite{}.KeyColumnType(text)
	require.NoError(t, err)
	assert.Equal(t, "TEXT", got)
}

func TestOnDelete(t *testing.T) {
	d := Postgres{}
	assert.Equal(t, "", d.OnDelete(schema.OnDeleteUnset))
	assert.Equal(t, "CASCADE", d.OnDelete(schema.OnDeleteCascade))
	assert.Equal(t, "SET NULL", d.OnDelete(schema.OnDeleteSetNull))
	assert.Equal(t, "NO ACTION", d.OnDelete(schema.OnDeleteNoAction))
	assert.Equal(t, "RESTRICT", d.OnDelete(schema.OnDeleteRestrict))
}

func TestPreamble(t *testing.T) {
	assert.Equal(t, []string{
		`CREATE SCHEMA IF NOT EXISTS "crm";`,
		"CREATE EXTENSION IF NOT EXISTS postgis;",
	}, Postgres{}.Preamble([]string{"crm"}, true))
	assert.Equal(t, []string{"CREATE SCHEMA IF NOT EXISTS `crm`;"}, MySQL{}.Preamble([]string{"crm"}, true))
	assert.Empty(t, SQLite{}.Preamble(nil, false))
}
