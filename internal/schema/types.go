package schema

import (
	"fmt"
	"sort"
	"strings"
)

// TypeKind is the semantic type of a field, independent of any engine
type TypeKind int

const (
	TypeInteger TypeKind = iota + 1
	TypeBigInt
	TypeSmallInt
	TypeText
	TypeVarchar
	TypeChar
	TypeBoolean
	TypeDate
	TypeTime
	TypeTimestamp
	TypeTimestampTZ
	TypeInterval
	TypeDecimal
	TypeReal
	TypeDouble
	TypeUUID
	TypeJSON
	TypeBinary
	TypeGeometry
)

var kindNames = map[TypeKind]string{
	TypeInteger:     "integer",
	TypeBigInt:      "bigint",
	TypeSmallInt:    "smallint",
	TypeText:        "text",
	TypeVarchar:     "varchar",
	TypeChar:        "char",
	TypeBoolean:     "boolean",
	TypeDate:        "date",
	TypeTime:        "time",
	TypeTimestamp:   "timestamp",
	TypeTimestampTZ: "timestamptz",
	TypeInterval:    "interval",
	TypeDecimal:     "decimal",
	TypeReal:        "real",
	TypeDouble:      "double",
	TypeUUID:        "uuid",
	TypeJSON:        "json",
	TypeBinary:      "binary",
	TypeGeometry:    "geometry",
}

func (k TypeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

// IsInteger reports whether the kind is one of the integer kinds
func (k TypeKind) IsInteger() bool {
	return k == TypeInteger || k == TypeBigInt || k == TypeSmallInt
}

// FieldType is a semantic type with its optional parameters.
// The zero value means the type is not declared and must be inferred
// from a referenced primary key.
type FieldType struct {
	Kind      TypeKind
	Length    int    // varchar, char
	Precision int    // decimal
	Scale     int    // decimal
	Subtype   string // geometry, lower case (e.g. "point")
	SRID      int    // geometry
}

// IsZero reports whether the type was left undeclared
func (t FieldType) IsZero() bool {
	return t.Kind == 0
}

// String renders the canonical type token, e.g. "varchar(20)" or "decimal(10,2)"
func (t FieldType) String() string {
	switch t.Kind {
	case 0:
		return "<inferred>"
	case TypeVarchar, TypeChar:
		if t.Length > 0 {
			return fmt.Sprintf("%s(%d)", t.Kind, t.Length)
		}
	case TypeDecimal:
		if t.Precision > 0 {
			return fmt.Sprintf("%s(%d,%d)", t.Kind, t.Precision, t.Scale)
		}
	case TypeGeometry:
		if t.Subtype != "" && t.SRID > 0 {
			return fmt.Sprintf("%s(%s,%d)", t.Kind, t.Subtype, t.SRID)
		}
		if t.Subtype != "" {
			return fmt.Sprintf("%s(%s)", t.Kind, t.Subtype)
		}
	}
	return t.Kind.String()
}

// DefaultKind tells how a default value is rendered
type DefaultKind int

const (
	DefaultString DefaultKind = iota + 1
	DefaultInteger
	DefaultFloat
	DefaultBool
	DefaultExpression // raw SQL, emitted verbatim
)

// Default is a column default value
type Default struct {
	Kind  DefaultKind
	Value string
}

// Cardinality of a relationship
type Cardinality string

const (
	OneToOne   Cardinality = "one-to-one"
	OneToMany  Cardinality = "one-to-many"
	ManyToMany Cardinality = "many-to-many"
)

// OnDelete is the referential action taken when a referenced row is deleted
type OnDelete string

const (
	OnDeleteUnset    OnDelete = ""
	OnDeleteCascade  OnDelete = "cascade"
	OnDeleteRestrict OnDelete = "restrict"
	OnDeleteSetNull  OnDelete = "set-null"
	OnDeleteNoAction OnDelete = "no-action"
)

// FieldDefinition is a declared column
type FieldDefinition struct {
	Name          string
	Type          FieldType
	Nullable      bool
	Default       *Default
	PrimaryKey    bool
	AutoIncrement bool
	Description   string
}

// RelationshipDefinition declares that a table references another table's primary key.
// Field is the owning column; when empty a column is generated (or, for
// many-to-many, a junction table).
type RelationshipDefinition struct {
	Field        string
	Target       string // qualified target table name
	TargetColumn string // defaults to the target's primary key
	Cardinality  Cardinality
	OnDelete     OnDelete
	Required     bool // generated column is NOT NULL
}

// UniqueConstraint is a (possibly composite) unique constraint
type UniqueConstraint struct {
	Columns []string
}

// IndexDefinition is a secondary index
type IndexDefinition struct {
	Name    string
	Columns []string
	Unique  bool
}

// TableDefinition is a table as declared in one document
type TableDefinition struct {
	Namespace     string
	Name          string
	Document      string
	Extends       bool
	Description   string
	Fields        []FieldDefinition
	Relationships []RelationshipDefinition
	PrimaryKey    []string
	Unique        []UniqueConstraint
	Indexes       []IndexDefinition
}

// QualifiedName returns ns.name, or name for the default namespace
func (t *TableDefinition) QualifiedName() string {
	return QualifiedName(t.Namespace, t.Name)
}

// Field returns the field with the given name
func (t *TableDefinition) Field(name string) (*FieldDefinition, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Schema represents the merged set of declared tables
type Schema struct {
	Tables map[string]*TableDefinition
}

// Names returns the qualified table names in lexicographic order
func (s *Schema) Names() []string {
	return sortedKeys(s.Tables)
}

// Table looks up a table by qualified name
func (s *Schema) Table(name string) (*TableDefinition, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// Column represents a resolved table column
type Column struct {
	Name          string
	Type          FieldType
	Nullable      bool
	Default       *Default
	AutoIncrement bool
	Description   string
}

// ForeignKey represents a resolved foreign key constraint
type ForeignKey struct {
	Columns       []string
	TargetTable   string
	TargetColumns []string
	OnDelete      OnDelete
	Cardinality   Cardinality
}

// ResolvedTable is a table with every relationship turned into columns and constraints
type ResolvedTable struct {
	Namespace   string
	Name        string
	Description string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	Uniques     []UniqueConstraint
	Indexes     []IndexDefinition
	Junction    bool
}

// QualifiedName returns ns.name, or name for the default namespace
func (t *ResolvedTable) QualifiedName() string {
	return QualifiedName(t.Namespace, t.Name)
}

// Column returns the column with the given name
func (t *ResolvedTable) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Dependencies returns the distinct tables this table references, excluding itself
func (t *ResolvedTable) Dependencies() []string {
	self := t.QualifiedName()
	seen := make(map[string]bool)
	var deps []string
	for _, fk := range t.ForeignKeys {
		if fk.TargetTable == self || seen[fk.TargetTable] {
			continue
		}
		seen[fk.TargetTable] = true
		deps = append(deps, fk.TargetTable)
	}
	sort.Strings(deps)
	return deps
}

// ResolvedSchema represents a complete schema ready for ordering and emission
type ResolvedSchema struct {
	Tables map[string]*ResolvedTable
}

// Names returns the qualified table names in lexicographic order
func (s *ResolvedSchema) Names() []string {
	return sortedKeys(s.Tables)
}

// Table looks up a table by qualified name
func (s *ResolvedSchema) Table(name string) (*ResolvedTable, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// QualifiedName joins a namespace and a table name
func QualifiedName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// SplitQualifiedName splits "ns.table" into its parts; a bare name has no namespace
func SplitQualifiedName(qualified string) (namespace, name string) {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return "", qualified
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
