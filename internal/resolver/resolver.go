// Package resolver turns relationship declarations into concrete foreign key
// columns, constraints and junction tables.
package resolver

import (
	"fmt"
	"slices"

	"github.com/tordrt/metaddl/internal/schema"
)

// Resolve converts every relationship of the schema into columns and foreign keys.
//
// Tables are visited in lexicographic order and relationships in declaration
// order, so identical input always resolves identically. The first error stops
// resolution and no partial result is returned.
func Resolve(s *schema.Schema) (*schema.ResolvedSchema, error) {
	r := &resolver{
		src:       s,
		out:       &schema.ResolvedSchema{Tables: make(map[string]*schema.ResolvedTable, len(s.Tables))},
		types:     make(map[string]schema.FieldType),
		junctions: make(map[string]string),
	}

	names := s.Names()
	for _, name := range names {
		r.out.Tables[name] = declaredTable(s.Tables[name])
	}

	for _, name := range names {
		def := s.Tables[name]
		for _, rel := range def.Relationships {
			var err error
			if rel.Cardinality == schema.ManyToMany {
				err = r.resolveManyToMany(def, rel)
			} else {
				err = r.resolveReference(def, rel)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	for _, name := range r.out.Names() {
		if err := r.validate(r.out.Tables[name]); err != nil {
			return nil, err
		}
	}
	return r.out, nil
}

type resolver struct {
	src *schema.Schema
	out *schema.ResolvedSchema

	// types caches resolved column types keyed by "table\x00column"
	types map[string]schema.FieldType
	// junctions maps a participant pair to the junction generated for it
	junctions map[string]string
}

func declaredTable(def *schema.TableDefinition) *schema.ResolvedTable {
	t := &schema.ResolvedTable{
		Namespace:   def.Namespace,
		Name:        def.Name,
		Description: def.Description,
		PrimaryKey:  append([]string(nil), def.PrimaryKey...),
		Uniques:     append([]schema.UniqueConstraint(nil), def.Unique...),
		Indexes:     append([]schema.IndexDefinition(nil), def.Indexes...),
	}
	for _, f := range def.Fields {
		t.Columns = append(t.Columns, schema.Column{
			Name:          f.Name,
			Type:          f.Type,
			Nullable:      f.Nullable,
			Default:       f.Default,
			AutoIncrement: f.AutoIncrement,
			Description:   f.Description,
		})
	}
	return t
}

// resolveReference handles one-to-one and one-to-many relationships; the
// declaring table owns the foreign key column
func (r *resolver) resolveReference(def *schema.TableDefinition, rel schema.RelationshipDefinition) error {
	tableName := def.QualifiedName()
	target, err := r.target(def, rel)
	if err != nil {
		return err
	}
	targetName := target.QualifiedName()
	targetCol, err := r.targetColumn(def, target, rel)
	if err != nil {
		return err
	}
	targetType, err := r.columnType(target, targetCol, make(map[string]bool))
	if err != nil {
		return err
	}

	out := r.out.Tables[tableName]
	colName := owningColumn(target, targetCol, rel)
	col, exists := out.Column(colName)
	switch {
	case !exists:
		out.Columns = append(out.Columns, schema.Column{
			Name:     colName,
			Type:     targetType,
			Nullable: !rel.Required && !slices.Contains(out.PrimaryKey, colName),
		})
		col = &out.Columns[len(out.Columns)-1]
	case col.Type.IsZero():
		col.Type = targetType
	case col.Type != targetType:
		return &schema.Error{
			Kind:     schema.TypeMismatch,
			Document: def.Document,
			Table:    tableName,
			Field:    colName,
			Target:   targetName,
			Detail:   fmt.Sprintf("column is %s but %s.%s is %s", col.Type, targetName, targetCol, targetType),
		}
	}

	if rel.OnDelete == schema.OnDeleteSetNull && !col.Nullable {
		return &schema.Error{
			Kind:     schema.TypeMismatch,
			Document: def.Document,
			Table:    tableName,
			Field:    colName,
			Target:   targetName,
			Detail:   "on_delete set-null requires a nullable column",
		}
	}

	fk := schema.ForeignKey{
		Columns:       []string{colName},
		TargetTable:   targetName,
		TargetColumns: []string{targetCol},
		OnDelete:      rel.OnDelete,
		Cardinality:   rel.Cardinality,
	}
	for _, existing := range out.ForeignKeys {
		if len(existing.Columns) != 1 || existing.Columns[0] != colName {
			continue
		}
		if sameForeignKey(existing, fk) {
			return nil
		}
		return &schema.Error{
			Kind:     schema.ConflictingFieldDefinition,
			Document: def.Document,
			Table:    tableName,
			Field:    colName,
			Detail:   fmt.Sprintf("column already references %s", existing.TargetTable),
		}
	}
	out.ForeignKeys = append(out.ForeignKeys, fk)

	if rel.Cardinality == schema.OneToOne && !isUniqueColumn(out, colName) {
		out.Uniques = append(out.Uniques, schema.UniqueConstraint{Columns: []string{colName}})
	}
	return nil
}

// resolveManyToMany synthesizes the junction table for a pair of tables
func (r *resolver) resolveManyToMany(def *schema.TableDefinition, rel schema.RelationshipDefinition) error {
	target, err := r.target(def, rel)
	if err != nil {
		return err
	}

	a, b := def, target
	if b.QualifiedName() < a.QualifiedName() {
		a, b = b, a
	}
	pair := a.QualifiedName() + "\x00" + b.QualifiedName()
	if _, done := r.junctions[pair]; done {
		return nil
	}

	pkA, err := r.singlePrimaryKey(def, a)
	if err != nil {
		return err
	}
	pkB, err := r.singlePrimaryKey(def, b)
	if err != nil {
		return err
	}
	typeA, err := r.columnType(a, pkA, make(map[string]bool))
	if err != nil {
		return err
	}
	typeB, err := r.columnType(b, pkB, make(map[string]bool))
	if err != nil {
		return err
	}

	name := JunctionName(a.QualifiedName(), b.QualifiedName())
	if _, taken := r.out.Tables[name]; taken {
		return &schema.Error{
			Kind:     schema.DuplicateTable,
			Document: def.Document,
			Table:    name,
			Detail:   fmt.Sprintf("junction table for %s and %s collides with an existing table", a.QualifiedName(), b.QualifiedName()),
		}
	}

	colA := a.Name + "_" + pkA
	colB := b.Name + "_" + pkB
	if colA == colB {
		colB = "related_" + colB
	}
	onDelete := rel.OnDelete
	if onDelete == schema.OnDeleteUnset {
		onDelete = schema.OnDeleteCascade
	}

	ns, bare := schema.SplitQualifiedName(name)
	r.out.Tables[name] = &schema.ResolvedTable{
		Namespace:   ns,
		Name:        bare,
		Description: fmt.Sprintf("junction between %s and %s", a.QualifiedName(), b.QualifiedName()),
		Columns: []schema.Column{
			{Name: colA, Type: typeA},
			{Name: colB, Type: typeB},
		},
		PrimaryKey: []string{colA, colB},
		ForeignKeys: []schema.ForeignKey{
			{Columns: []string{colA}, TargetTable: a.QualifiedName(), TargetColumns: []string{pkA}, OnDelete: onDelete, Cardinality: schema.ManyToMany},
			{Columns: []string{colB}, TargetTable: b.QualifiedName(), TargetColumns: []string{pkB}, OnDelete: onDelete, Cardinality: schema.ManyToMany},
		},
		Junction: true,
	}
	r.junctions[pair] = name
	return nil
}

// JunctionName is the deterministic junction table name for two participants:
// bare names sorted by qualified name, joined with "_", placed in the namespace
// of the first participant
func JunctionName(left, right string) string {
	if right < left {
		left, right = right, left
	}
	ns, a := schema.SplitQualifiedName(left)
	_, b := schema.SplitQualifiedName(right)
	return schema.QualifiedName(ns, a+"_"+b)
}

func (r *resolver) target(def *schema.TableDefinition, rel schema.RelationshipDefinition) (*schema.TableDefinition, error) {
	target, ok := r.src.Table(rel.Target)
	if !ok {
		return nil, &schema.Error{
			Kind:     schema.UnknownReferenceTarget,
			Document: def.Document,
			Table:    def.QualifiedName(),
			Field:    rel.Field,
			Target:   rel.Target,
		}
	}
	return target, nil
}

// targetColumn picks the referenced column: the explicit one, or the target's
// single-column primary key
func (r *resolver) targetColumn(def, target *schema.TableDefinition, rel schema.RelationshipDefinition) (string, error) {
	if rel.TargetColumn == "" {
		return r.singlePrimaryKey(def, target)
	}

	if !hasColumn(target, rel.TargetColumn) {
		return "", &schema.Error{
			Kind:     schema.UnknownReferenceTarget,
			Document: def.Document,
			Table:    def.QualifiedName(),
			Field:    rel.Field,
			Target:   target.QualifiedName(),
			Detail:   fmt.Sprintf("target has no column %q", rel.TargetColumn),
		}
	}
	if !referenceable(target, rel.TargetColumn) {
		return "", &schema.Error{
			Kind:     schema.UnknownReferenceTarget,
			Document: def.Document,
			Table:    def.QualifiedName(),
			Field:    rel.Field,
			Target:   target.QualifiedName(),
			Detail:   fmt.Sprintf("target column %q is neither the primary key nor unique", rel.TargetColumn),
		}
	}
	return rel.TargetColumn, nil
}

func (r *resolver) singlePrimaryKey(def, target *schema.TableDefinition) (string, error) {
	if len(target.PrimaryKey) != 1 {
		return "", &schema.Error{
			Kind:     schema.UnknownReferenceTarget,
			Document: def.Document,
			Table:    def.QualifiedName(),
			Target:   target.QualifiedName(),
			Detail:   "target has no single-column primary key",
		}
	}
	return target.PrimaryKey[0], nil
}

// columnType returns the declared type of a column, following references for
// columns whose type is inferred from the table they point to
func (r *resolver) columnType(table *schema.TableDefinition, column string, visiting map[string]bool) (schema.FieldType, error) {
	key := table.QualifiedName() + "\x00" + column
	if t, ok := r.types[key]; ok {
		return t, nil
	}
	if f, ok := table.Field(column); ok && !f.Type.IsZero() {
		r.types[key] = f.Type
		return f.Type, nil
	}

	if visiting[key] {
		return schema.FieldType{}, &schema.Error{
			Kind:     schema.MalformedMetadata,
			Document: table.Document,
			Table:    table.QualifiedName(),
			Field:    column,
			Detail:   "column type cannot be inferred from a circular chain of references",
		}
	}
	visiting[key] = true

	for _, rel := range table.Relationships {
		if rel.Cardinality == schema.ManyToMany || (rel.Field != "" && rel.Field != column) {
			continue
		}
		target, err := r.target(table, rel)
		if err != nil {
			return schema.FieldType{}, err
		}
		targetCol, err := r.targetColumn(table, target, rel)
		if err != nil {
			return schema.FieldType{}, err
		}
		if owningColumn(target, targetCol, rel) != column {
			continue
		}
		t, err := r.columnType(target, targetCol, visiting)
		if err != nil {
			return schema.FieldType{}, err
		}
		r.types[key] = t
		return t, nil
	}

	return schema.FieldType{}, &schema.Error{
		Kind:     schema.MalformedMetadata,
		Document: table.Document,
		Table:    table.QualifiedName(),
		Field:    column,
		Detail:   "column is not declared",
	}
}

func (r *resolver) validate(t *schema.ResolvedTable) error {
	name := t.QualifiedName()
	doc := ""
	if def, ok := r.src.Table(name); ok {
		doc = def.Document
	}
	missing := func(col, what string) error {
		return &schema.Error{
			Kind:     schema.MalformedMetadata,
			Document: doc,
			Table:    name,
			Field:    col,
			Detail:   what + " column is not declared",
		}
	}

	if len(t.Columns) == 0 {
		return &schema.Error{Kind: schema.MalformedMetadata, Document: doc, Table: name, Detail: "table has no columns"}
	}
	for _, c := range t.Columns {
		if c.Type.IsZero() {
			return &schema.Error{Kind: schema.MalformedMetadata, Document: doc, Table: name, Field: c.Name, Detail: "column has no type"}
		}
	}
	for _, col := range t.PrimaryKey {
		c, ok := t.Column(col)
		if !ok {
			return missing(col, "primary key")
		}
		c.Nullable = false
	}
	for _, u := range t.Uniques {
		for _, col := range u.Columns {
			if _, ok := t.Column(col); !ok {
				return missing(col, "unique constraint")
			}
		}
	}
	for _, idx := range t.Indexes {
		for _, col := range idx.Columns {
			if _, ok := t.Column(col); !ok {
				return missing(col, "index")
			}
		}
	}
	return nil
}

// owningColumn names the foreign key column: the declared field or <target>_<column>
func owningColumn(target *schema.TableDefinition, targetCol string, rel schema.RelationshipDefinition) string {
	if rel.Field != "" {
		return rel.Field
	}
	return target.Name + "_" + targetCol
}

func hasColumn(t *schema.TableDefinition, column string) bool {
	if _, ok := t.Field(column); ok {
		return true
	}
	for _, rel := range t.Relationships {
		if rel.Field == column {
			return true
		}
	}
	return false
}

func referenceable(t *schema.TableDefinition, column string) bool {
	if len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == column {
		return true
	}
	for _, u := range t.Unique {
		if len(u.Columns) == 1 && u.Columns[0] == column {
			return true
		}
	}
	return false
}

func isUniqueColumn(t *schema.ResolvedTable, column string) bool {
	if len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == column {
		return true
	}
	for _, u := range t.Uniques {
		if len(u.Columns) == 1 && u.Columns[0] == column {
			return true
		}
	}
	return false
}

func sameForeignKey(a, b schema.ForeignKey) bool {
	if a.TargetTable != b.TargetTable || a.OnDelete != b.OnDelete || a.Cardinality != b.Cardinality {
		return false
	}
	if len(a.TargetColumns) != len(b.TargetColumns) {
		return false
	}
	for i := range a.TargetColumns {
		if a.TargetColumns[i] != b.TargetColumns[i] {
			return false
		}
	}
	return true
}
