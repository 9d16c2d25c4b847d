package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "unknown target",
			err:  &Error{Kind: UnknownReferenceTarget, Table: "orders", Target: "users"},
			want: `UnknownReferenceTarget: table "orders", target "users"`,
		},
		{
			name: "cycle",
			err:  &Error{Kind: CyclicSchema, Tables: []string{"a", "b", "a"}},
			want: `CyclicSchema: tables [a -> b -> a]`,
		},
		{
			name: "detail only",
			err:  &Error{Kind: MalformedMetadata, Document: "doc.yaml", Detail: "missing tables"},
			want: `MalformedMetadata: document "doc.yaml": missing tables`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	base := &Error{Kind: DuplicateTable, Table: "users"}
	wrapped := fmt.Errorf("failed to merge: %w", base)

	assert.True(t, IsKind(wrapped, DuplicateTable))
	assert.False(t, IsKind(wrapped, CyclicSchema))
	assert.True(t, errors.Is(wrapped, &Error{Kind: DuplicateTable}))

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "users", e.Table)
}

func TestQualifiedNames(t *testing.T) {
	assert.Equal(t, "users", QualifiedName("", "users"))
	assert.Equal(t, "model_draft.users", QualifiedName("model_draft", "users"))

	ns, name := SplitQualifiedName("model_draft.users")
	assert.Equal(t, "model_draft", ns)
	assert.Equal(t, "users", name)

	ns, name = SplitQualifiedName("users")
	assert.Equal(t, "", ns)
	assert.Equal(t, "users", name)
}

func TestFieldTypeString(t *testing.T) {
	tests := []struct {
		typ  FieldType
		want string
	}{
		{FieldType{Kind: TypeInteger}, "integer"},
		{FieldType{Kind: TypeVarchar, Length: 20}, "varchar(20)"},
		{FieldType{Kind: TypeVarchar}, "varchar"},
		{FieldType{Kind: TypeDecimal, Precision: 10, Scale: 2}, "decimal(10,2)"},
		{FieldType{Kind: TypeGeometry, Subtype: "point", SRID: 4326}, "geometry(point,4326)"},
		{FieldType{Kind: TypeGeometry, Subtype: "polygon"}, "geometry(polygon)"},
		{FieldType{}, "<inferred>"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestDependenciesSkipSelf(t *testing.T) {
	table := &ResolvedTable{
		Name: "employees",
		ForeignKeys: []ForeignKey{
			{Columns: []string{"manager_id"}, TargetTable: "employees"},
			{Columns: []string{"dept_id"}, TargetTable: "departments"},
			{Columns: []string{"site_id"}, TargetTable: "buildings"},
			{Columns: []string{"backup_dept_id"}, TargetTable: "departments"},
		},
	}

	assert.Equal(t, []string{"buildings", "departments"}, table.Dependencies())
}
