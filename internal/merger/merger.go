// Package merger combines the tables of several documents into one schema.
package merger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/metaddl/internal/schema"
)

// Merge combines per-document table lists into a single schema.
//
// A table declared by more than one definition is a DuplicateTable error unless
// all but at most one of the definitions are marked as extensions. Extensions
// contribute their fields after the base definition, ordered by document name,
// so the merged result does not depend on document order. Errors are reported
// in document order and no partial schema is returned.
func Merge(docs [][]schema.TableDefinition) (*schema.Schema, error) {
	groups := make(map[string][]schema.TableDefinition)
	var order []string

	for _, tables := range docs {
		for _, t := range tables {
			name := t.QualifiedName()
			existing, seen := groups[name]
			if !seen {
				order = append(order, name)
			}
			if !t.Extends {
				for _, prev := range existing {
					if !prev.Extends {
						return nil, &schema.Error{
							Kind:     schema.DuplicateTable,
							Document: t.Document,
							Table:    name,
							Detail:   fmt.Sprintf("already declared in document %q", prev.Document),
						}
					}
				}
			}
			groups[name] = append(existing, t)
		}
	}

	s := &schema.Schema{Tables: make(map[string]*schema.TableDefinition, len(groups))}
	for _, name := range order {
		merged, err := mergeGroup(groups[name])
		if err != nil {
			return nil, err
		}
		s.Tables[name] = merged
	}
	return s, nil
}

func mergeGroup(defs []schema.TableDefinition) (*schema.TableDefinition, error) {
	var base *schema.TableDefinition
	var extensions []schema.TableDefinition
	for i := range defs {
		if !defs[i].Extends && base == nil {
			base = &defs[i]
			continue
		}
		extensions = append(extensions, defs[i])
	}
	sort.SliceStable(extensions, func(i, j int) bool {
		return extensions[i].Document < extensions[j].Document
	})
	if base == nil {
		base = &extensions[0]
		extensions = extensions[1:]
	}

	merged := clone(base)
	merged.Extends = false
	for i := range extensions {
		if err := extend(merged, &extensions[i]); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func extend(merged, ext *schema.TableDefinition) error {
	name := merged.QualifiedName()

	for _, f := range ext.Fields {
		existing, ok := merged.Field(f.Name)
		if !ok {
			merged.Fields = append(merged.Fields, f)
			continue
		}
		if !sameField(*existing, f) {
			return &schema.Error{
				Kind:     schema.ConflictingFieldDefinition,
				Document: ext.Document,
				Table:    name,
				Field:    f.Name,
				Detail:   fmt.Sprintf("differs from the definition in document %q", merged.Document),
			}
		}
	}

	if len(ext.PrimaryKey) > 0 {
		switch {
		case len(merged.PrimaryKey) == 0:
			merged.PrimaryKey = append([]string(nil), ext.PrimaryKey...)
		case !sameColumns(merged.PrimaryKey, ext.PrimaryKey):
			return &schema.Error{
				Kind:     schema.ConflictingFieldDefinition,
				Document: ext.Document,
				Table:    name,
				Detail: fmt.Sprintf("primary key [%s] differs from [%s] in document %q",
					strings.Join(ext.PrimaryKey, ", "), strings.Join(merged.PrimaryKey, ", "), merged.Document),
			}
		}
	}
	markPrimaryKey(merged)

	if merged.Description == "" {
		merged.Description = ext.Description
	}
	for _, u := range ext.Unique {
		if !containsUnique(merged.Unique, u) {
			merged.Unique = append(merged.Unique, u)
		}
	}
	for _, idx := range ext.Indexes {
		if !containsIndex(merged.Indexes, idx) {
			merged.Indexes = append(merged.Indexes, idx)
		}
	}
	for _, rel := range ext.Relationships {
		if !containsRelationship(merged.Relationships, rel) {
			merged.Relationships = append(merged.Relationships, rel)
		}
	}
	return nil
}

// markPrimaryKey keeps field flags in line with the table level primary key
func markPrimaryKey(t *schema.TableDefinition) {
	inPK := make(map[string]bool, len(t.PrimaryKey))
	for _, col := range t.PrimaryKey {
		inPK[col] = true
	}
	for i := range t.Fields {
		if inPK[t.Fields[i].Name] {
			t.Fields[i].PrimaryKey = true
			t.Fields[i].Nullable = false
		}
	}
}

func clone(t *schema.TableDefinition) *schema.TableDefinition {
	c := *t
	c.Fields = append([]schema.FieldDefinition(nil), t.Fields...)
	c.Relationships = append([]schema.RelationshipDefinition(nil), t.Relationships...)
	c.PrimaryKey = append([]string(nil), t.PrimaryKey...)
	c.Unique = append([]schema.UniqueConstraint(nil), t.Unique...)
	c.Indexes = append([]schema.IndexDefinition(nil), t.Indexes...)
	return &c
}

func sameField(a, b schema.FieldDefinition) bool {
	if a.Name != b.Name || a.Type != b.Type || a.Nullable != b.Nullable ||
		a.PrimaryKey != b.PrimaryKey || a.AutoIncrement != b.AutoIncrement || a.Description != b.Description {
		return false
	}
	if (a.Default == nil) != (b.Default == nil) {
		return false
	}
	return a.Default == nil || *a.Default == *b.Default
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsUnique(list []schema.UniqueConstraint, u schema.UniqueConstraint) bool {
	for _, existing := range list {
		if sameColumns(existing.Columns, u.Columns) {
			return true
		}
	}
	return false
}

func containsIndex(list []schema.IndexDefinition, idx schema.IndexDefinition) bool {
	for _, existing := range list {
		if existing.Name == idx.Name && existing.Unique == idx.Unique && sameColumns(existing.Columns, idx.Columns) {
			return true
		}
	}
	return false
}

func containsRelationship(list []schema.RelationshipDefinition, rel schema.RelationshipDefinition) bool {
	for _, existing := range list {
		if existing == rel {
			return true
		}
	}
	return false
}
