package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tordrt/metaddl/internal/schema"
)

var (
	integer = schema.FieldType{Kind: schema.TypeInteger}
	bigint  = schema.FieldType{Kind: schema.TypeBigInt}
	text    = schema.FieldType{Kind: schema.TypeText}
)

func newSchema(tables ...*schema.TableDefinition) *schema.Schema {
	s := &schema.Schema{Tables: make(map[string]*schema.TableDefinition)}
	for _, t := range tables {
		if t.Document == "" {
			t.Document = "test.yaml"
		}
		s.Tables[t.QualifiedName()] = t
	}
	return s
}

func idTable(name string, typ schema.FieldType, extra ...schema.FieldDefinition) *schema.TableDefinition {
	fields := append([]schema.FieldDefinition{{Name: "id", Type: typ, PrimaryKey: true}}, extra...)
	return &schema.TableDefinition{Name: name, Fields: fields, PrimaryKey: []string{"id"}}
}

func TestResolveUsersOrders(t *testing.T) {
	users := idTable("users", integer, schema.FieldDefinition{Name: "name", Type: text, Nullable: true})
	orders := idTable("orders", integer, schema.FieldDefinition{Name: "user_id"})
	orders.Relationships = []schema.RelationshipDefinition{
		{Field: "user_id", Target: "users", Cardinality: schema.OneToMany, OnDelete: schema.OnDeleteCascade},
	}

	rs, err := Resolve(newSchema(users, orders))
	require.NoError(t, err)

	out, ok := rs.Table("orders")
	require.True(t, ok)
	col, ok := out.Column("user_id")
	require.True(t, ok)
	assert.Equal(t, integer, col.Type)
	assert.False(t, col.Nullable)

	require.Len(t, out.ForeignKeys, 1)
	assert.Equal(t, schema.ForeignKey{
		Columns:       []string{"user_id"},
		TargetTable:   "users",
		TargetColumns: []string{"id"},
		OnDelete:      schema.OnDeleteCascade,
		Cardinality:   schema.OneToMany,
	}, out.ForeignKeys[0])
	assert.Empty(t, out.Uniques)
}

func TestResolveGeneratesColumn(t *testing.T) {
	users := idTable("users", bigint)
	profiles := idTable("profiles", integer)
	profiles.Relationships = []schema.RelationshipDefinition{
		{Target: "users", Cardinality: schema.OneToOne, Required: true},
	}

	rs, err := Resolve(newSchema(users, profiles))
	require.NoError(t, err)

	out, _ := rs.Table("profiles")
	col, ok := out.Column("users_id")
	require.True(t, ok)
	assert.Equal(t, bigint, col.Type)
	assert.False(t, col.Nullable)
	assert.Equal(t, []schema.UniqueConstraint{{Columns: []string{"users_id"}}}, out.Uniques)
}

func TestResolveOptionalGeneratedColumn(t *testing.T) {
	teams := idTable("teams", integer)
	players := idTable("players", integer)
	players.Relationships = []schema.RelationshipDefinition{
		{Field: "team", Target: "teams", Cardinality: schema.OneToMany, OnDelete: schema.OnDeleteSetNull},
	}

	rs, err := Resolve(newSchema(teams, players))
	require.NoError(t, err)

	out, _ := rs.Table("players")
	col, ok := out.Column("team")
	require.True(t, ok)
	assert.True(t, col.Nullable)
}

func TestResolveManyToMany(t *testing.T) {
	students := idTable("students", integer)
	students.Relationships = []schema.RelationshipDefinition{
		{Target: "courses", Cardinality: schema.ManyToMany},
	}
	courses := idTable("courses", bigint)
	courses.Relationships = []schema.RelationshipDefinition{
		{Target: "students", Cardinality: schema.ManyToMany},
	}

	rs, err := Resolve(newSchema(students, courses))
	require.NoError(t, err)
	assert.Equal(t, []string{"courses", "courses_students", "students"}, rs.Names())

	junction, ok := rs.Table("courses_students")
	require.True(t, ok)
	assert.True(t, junction.Junction)
	assert.Equal(t, []string{"courses_id", "students_id"}, junction.PrimaryKey)
	assert.Equal(t, []schema.Column{
		{Name: "courses_id", Type: bigint},
		{Name: "students_id", Type: integer},
	}, junction.Columns)
	require.Len(t, junction.ForeignKeys, 2)
	assert.Equal(t, "courses", junction.ForeignKeys[0].TargetTable)
	assert.Equal(t, "students", junction.ForeignKeys[1].TargetTable)
	assert.Equal(t, schema.OnDeleteCascade, junction.ForeignKeys[0].OnDelete)
}

func TestResolveSelfManyToMany(t *testing.T) {
	people := idTable("people", integer)
	people.Relationships = []schema.RelationshipDefinition{
		{Target: "people", Cardinality: schema.ManyToMany},
	}

	rs, err := Resolve(newSchema(people))
	require.NoError(t, err)

	junction, ok := rs.Table("people_people")
	require.True(t, ok)
	assert.Equal(t, []string{"people_id", "related_people_id"}, junction.PrimaryKey)
}

func TestJunctionName(t *testing.T) {
	assert.Equal(t, "courses_students", JunctionName("students", "courses"))
	assert.Equal(t, "courses_students", JunctionName("courses", "students"))
	assert.Equal(t, "school.courses_students", JunctionName("school.students", "school.courses"))
}

func TestResolveInfersThroughChain(t *testing.T) {
	users := idTable("users", bigint)
	accounts := &schema.TableDefinition{
		Name:       "accounts",
		Fields:     []schema.FieldDefinition{{Name: "user_id", PrimaryKey: true}},
		PrimaryKey: []string{"user_id"},
		Relationships: []schema.RelationshipDefinition{
			{Field: "user_id", Target: "users", Cardinality: schema.OneToOne},
		},
	}
	sessions := idTable("sessions", integer)
	sessions.Relationships = []schema.RelationshipDefinition{
		{Target: "accounts", Cardinality: schema.OneToMany},
	}

	rs, err := Resolve(newSchema(users, accounts, sessions))
	require.NoError(t, err)

	out, _ := rs.Table("sessions")
	col, ok := out.Column("accounts_user_id")
	require.True(t, ok)
	assert.Equal(t, bigint, col.Type)

	acc, _ := rs.Table("accounts")
	// the primary key already makes the one-to-one column unique
	assert.Empty(t, acc.Uniques)
}

func TestResolveSelfReference(t *testing.T) {
	employees := idTable("employees", integer, schema.FieldDefinition{Name: "manager_id", Nullable: true})
	employees.Relationships = []schema.RelationshipDefinition{
		{Field: "manager_id", Target: "employees", Cardinality: schema.OneToMany, OnDelete: schema.OnDeleteSetNull},
	}

	rs, err := Resolve(newSchema(employees))
	require.NoError(t, err)

	out, _ := rs.Table("employees")
	require.Len(t, out.ForeignKeys, 1)
	assert.Empty(t, out.Dependencies())
}

func TestResolveUniqueTargetColumn(t *testing.T) {
	countries := idTable("countries", integer, schema.FieldDefinition{Name: "iso", Type: schema.FieldType{Kind: schema.TypeChar, Length: 2}})
	countries.Unique = []schema.UniqueConstraint{{Columns: []string{"iso"}}}
	cities := idTable("cities", integer)
	cities.Relationships = []schema.RelationshipDefinition{
		{Field: "country", Target: "countries", TargetColumn: "iso", Cardinality: schema.OneToMany},
	}

	rs, err := Resolve(newSchema(countries, cities))
	require.NoError(t, err)

	out, _ := rs.Table("cities")
	col, _ := out.Column("country")
	assert.Equal(t, schema.FieldType{Kind: schema.TypeChar, Length: 2}, col.Type)
	assert.Equal(t, []string{"iso"}, out.ForeignKeys[0].TargetColumns)
}

func TestResolveDeterministic(t *testing.T) {
	build := func() *schema.Schema {
		a := idTable("a", integer)
		a.Relationships = []schema.RelationshipDefinition{{Target: "b", Cardinality: schema.ManyToMany}}
		b := idTable("b", integer)
		b.Relationships = []schema.RelationshipDefinition{{Target: "c", Cardinality: schema.OneToMany}}
		c := idTable("c", integer)
		return newSchema(a, b, c)
	}

	first, err := Resolve(build())
	require.NoError(t, err)
	second, err := Resolve(build())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name       string
		tables     func() []*schema.TableDefinition
		wantKind   schema.ErrorKind
		wantTable  string
		wantTarget string
	}{
		{
			name: "unknown target",
			tables: func() []*schema.TableDefinition {
				orders := idTable("orders", integer)
				orders.Relationships = []schema.RelationshipDefinition{{Field: "user_id", Target: "users", Cardinality: schema.OneToMany}}
				return []*schema.TableDefinition{orders}
			},
			wantKind:   schema.UnknownReferenceTarget,
			wantTable:  "orders",
			wantTarget: "users",
		},
		{
			name: "unknown many-to-many target",
			tables: func() []*schema.TableDefinition {
				students := idTable("students", integer)
				students.Relationships = []schema.RelationshipDefinition{{Target: "courses", Cardinality: schema.ManyToMany}}
				return []*schema.TableDefinition{students}
			},
			wantKind:   schema.UnknownReferenceTarget,
			wantTable:  "students",
			wantTarget: "courses",
		},
		{
			name: "type mismatch",
			tables: func() []*schema.TableDefinition {
				users := idTable("users", integer)
				orders := idTable("orders", integer, schema.FieldDefinition{Name: "user_id", Type: text})
				orders.Relationships = []schema.RelationshipDefinition{{Field: "user_id", Target: "users", Cardinality: schema.OneToMany}}
				return []*schema.TableDefinition{users, orders}
			},
			wantKind:   schema.TypeMismatch,
			wantTable:  "orders",
			wantTarget: "users",
		},
		{
			name: "integer width mismatch",
			tables: func() []*schema.TableDefinition {
				users := idTable("users", bigint)
				orders := idTable("orders", integer, schema.FieldDefinition{Name: "user_id", Type: integer})
				orders.Relationships = []schema.RelationshipDefinition{{Field: "user_id", Target: "users", Cardinality: schema.OneToMany}}
				return []*schema.TableDefinition{users, orders}
			},
			wantKind:   schema.TypeMismatch,
			wantTable:  "orders",
			wantTarget: "users",
		},
		{
			name: "set null on required column",
			tables: func() []*schema.TableDefinition {
				users := idTable("users", integer)
				orders := idTable("orders", integer, schema.FieldDefinition{Name: "user_id", Type: integer})
				orders.Relationships = []schema.RelationshipDefinition{{Field: "user_id", Target: "users", Cardinality: schema.OneToMany, OnDelete: schema.OnDeleteSetNull}}
				return []*schema.TableDefinition{users, orders}
			},
			wantKind:  schema.TypeMismatch,
			wantTable: "orders",
		},
		{
			name: "set null on generated primary key column",
			tables: func() []*schema.TableDefinition {
				users := idTable("users", integer)
				profiles := &schema.TableDefinition{Name: "profiles", PrimaryKey: []string{"user_id"}}
				profiles.Relationships = []schema.RelationshipDefinition{{Field: "user_id", Target: "users", Cardinality: schema.OneToOne, OnDelete: schema.OnDeleteSetNull}}
				return []*schema.TableDefinition{users, profiles}
			},
			wantKind:   schema.TypeMismatch,
			wantTable:  "profiles",
			wantTarget: "users",
		},
		{
			name: "target without primary key",
			tables: func() []*schema.TableDefinition {
				logs := &schema.TableDefinition{Name: "logs", Fields: []schema.FieldDefinition{{Name: "line", Type: text}}}
				notes := idTable("notes", integer)
				notes.Relationships = []schema.RelationshipDefinition{{Target: "logs", Cardinality: schema.OneToMany}}
				return []*schema.TableDefinition{logs, notes}
			},
			wantKind:   schema.UnknownReferenceTarget,
			wantTable:  "notes",
			wantTarget: "logs",
		},
		{
			name: "target column not unique",
			tables: func() []*schema.TableDefinition {
				users := idTable("users", integer, schema.FieldDefinition{Name: "name", Type: text})
				notes := idTable("notes", integer)
				notes.Relationships = []schema.RelationshipDefinition{{Field: "author", Target: "users", TargetColumn: "name", Cardinality: schema.OneToMany}}
				return []*schema.TableDefinition{users, notes}
			},
			wantKind:   schema.UnknownReferenceTarget,
			wantTable:  "notes",
			wantTarget: "users",
		},
		{
			name: "junction collides with declared table",
			tables: func() []*schema.TableDefinition {
				a := idTable("a", integer)
				a.Relationships = []schema.RelationshipDefinition{{Target: "b", Cardinality: schema.ManyToMany}}
				return []*schema.TableDefinition{a, idTable("b", integer), idTable("a_b", integer)}
			},
			wantKind:  schema.DuplicateTable,
			wantTable: "a_b",
		},
		{
			name: "primary key column missing",
			tables: func() []*schema.TableDefinition {
				t := &schema.TableDefinition{Name: "t", Fields: []schema.FieldDefinition{{Name: "a", Type: integer}}, PrimaryKey: []string{"b"}}
				return []*schema.TableDefinition{t}
			},
			wantKind:  schema.MalformedMetadata,
			wantTable: "t",
		},
		{
			name: "index column missing",
			tables: func() []*schema.TableDefinition {
				t := idTable("t", integer)
				t.Indexes = []schema.IndexDefinition{{Columns: []string{"nope"}}}
				return []*schema.TableDefinition{t}
			},
			wantKind:  schema.MalformedMetadata,
			wantTable: "t",
		},
		{
			name: "conflicting foreign keys on one column",
			tables: func() []*schema.TableDefinition {
				t := idTable("t", integer, schema.FieldDefinition{Name: "ref"})
				t.Relationships = []schema.RelationshipDefinition{
					{Field: "ref", Target: "x", Cardinality: schema.OneToMany},
					{Field: "ref", Target: "y", Cardinality: schema.OneToMany},
				}
				return []*schema.TableDefinition{t, idTable("x", integer), idTable("y", integer)}
			},
			wantKind:  schema.ConflictingFieldDefinition,
			wantTable: "t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(newSchema(tt.tables()...))
			require.Error(t, err)

			e, ok := schema.AsError(err)
			require.True(t, ok, "expected a schema error, got %v", err)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantTable, e.Table)
			if tt.wantTarget != "" {
				assert.Equal(t, tt.wantTarget, e.Target)
			}
		})
	}
}

func TestResolveGeneratedPrimaryKeyColumnIsNotNull(t *testing.T) {
	users := idTable("users", integer)
	profiles := &schema.TableDefinition{Name: "profiles", PrimaryKey: []string{"user_id"}}
	profiles.Relationships = []schema.RelationshipDefinition{{Field: "user_id", Target: "users", Cardinality: schema.OneToOne}}

	rs, err := Resolve(newSchema(users, profiles))
	require.NoError(t, err)

	out, ok := rs.Table("profiles")
	require.True(t, ok)
	col, ok := out.Column("user_id")
	require.True(t, ok)
	assert.False(t, col.Nullable)
	assert.Equal(t, integer, col.Type)
}
