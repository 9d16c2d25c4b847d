package loader

import (
	"fmt"

	"github.com/AlekSi/pointer"
	"github.com/tordrt/metaddl/internal/schema"
)

// loadResources reads the OEP / frictionless layout:
//
//	resources:
//	  - name: model_draft.tablename
//	    schema:
//	      fields: [{name: id, type: bigint, description: ...}]
//	      primaryKey: [id]
//	      foreignKeys: [{fields: [region_id], reference: {resource: model_draft.regions, fields: [id]}}]
//
// Keys outside of what is needed for table creation (licenses, sources, ...) are ignored.
func (p *parser) loadResources(list []any) ([]schema.TableDefinition, error) {
	tables := make([]schema.TableDefinition, 0, len(list))
	for i, item := range list {
		m, ok := toMap(item)
		if !ok {
			return nil, p.malformed("", "", fmt.Sprintf("resources[%d] must be a mapping", i))
		}
		table, err := p.loadResource(m, i)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *table)
	}
	return tables, nil
}

func (p *parser) loadResource(m map[string]any, index int) (*schema.TableDefinition, error) {
	rawName, err := p.optString(m, "name", "", "")
	if err != nil {
		return nil, err
	}
	if rawName == "" {
		return nil, p.malformed("", "", fmt.Sprintf("resources[%d] has no name", index))
	}

	table := &schema.TableDefinition{Document: p.doc}
	if table.Namespace, table.Name, err = p.tableName(rawName, ""); err != nil {
		return nil, err
	}
	tableName := table.QualifiedName()
	if table.Description, err = p.optString(m, "description", tableName, ""); err != nil {
		return nil, err
	}

	body, ok := toMap(m["schema"])
	if !ok {
		return nil, p.malformed(tableName, "", `resource has no "schema" mapping`)
	}
	rawFields, ok := toList(body["fields"])
	if !ok || len(rawFields) == 0 {
		return nil, p.malformed(tableName, "", "resource schema has no fields")
	}

	var decls []fieldDecl
	for i, item := range rawFields {
		fm, ok := toMap(item)
		if !ok {
			return nil, p.malformed(tableName, "", fmt.Sprintf("fields[%d] must be a mapping", i))
		}
		decl, unique, err := p.loadResourceField(fm, tableName, i)
		if err != nil {
			return nil, err
		}
		decls = append(decls, *decl)
		if unique {
			table.Unique = append(table.Unique, schema.UniqueConstraint{Columns: []string{decl.def.Name}})
		}
	}

	if body["primaryKey"] != nil {
		if table.PrimaryKey, err = p.stringList(body["primaryKey"], tableName, "primaryKey"); err != nil {
			return nil, err
		}
	}
	if err := p.finishFields(table, decls); err != nil {
		return nil, err
	}

	if table.Relationships, err = p.loadForeignKeys(body["foreignKeys"], table); err != nil {
		return nil, err
	}
	return table, nil
}

func (p *parser) loadResourceField(m map[string]any, table string, index int) (*fieldDecl, bool, error) {
	name, err := p.optString(m, "name", table, "")
	if err != nil {
		return nil, false, err
	}
	if name == "" {
		return nil, false, p.malformed(table, "", fmt.Sprintf("fields[%d] has no name", index))
	}

	token, err := p.optString(m, "type", table, name)
	if err != nil {
		return nil, false, err
	}
	if token == "" {
		return nil, false, p.malformed(table, name, "field has no type")
	}
	ft, auto, ok := ParseFieldType(token)
	if !ok {
		return nil, false, &schema.Error{Kind: schema.UnknownFieldType, Document: p.doc, Table: table, Field: name, Type: token}
	}

	decl := &fieldDecl{def: schema.FieldDefinition{Name: name, Type: ft, AutoIncrement: auto}}
	if decl.def.Description, err = p.optString(m, "description", table, name); err != nil {
		return nil, false, err
	}
	if decl.nullable, err = p.optBool(m, "nullable", table, name); err != nil {
		return nil, false, err
	}

	var unique bool
	if raw, present := m["constraints"]; present && raw != nil {
		cm, ok := toMap(raw)
		if !ok {
			return nil, false, p.malformed(table, name, `"constraints" must be a mapping`)
		}
		required, err := p.optBool(cm, "required", table, name)
		if err != nil {
			return nil, false, err
		}
		if pointer.GetBool(required) {
			decl.nullable = pointer.ToBool(false)
		}
		u, err := p.optBool(cm, "unique", table, name)
		if err != nil {
			return nil, false, err
		}
		unique = pointer.GetBool(u)
	}
	return decl, unique, nil
}

func (p *parser) loadForeignKeys(raw any, table *schema.TableDefinition) ([]schema.RelationshipDefinition, error) {
	if raw == nil {
		return nil, nil
	}
	tableName := table.QualifiedName()
	list, ok := toList(raw)
	if !ok {
		return nil, p.malformed(tableName, "", `"foreignKeys" must be a list`)
	}

	rels := make([]schema.RelationshipDefinition, 0, len(list))
	for i, item := range list {
		fk, ok := toMap(item)
		if !ok {
			return nil, p.malformed(tableName, "", fmt.Sprintf("foreignKeys[%d] must be a mapping", i))
		}
		fields, err := p.stringList(fk["fields"], tableName, "fields")
		if err != nil {
			return nil, err
		}
		if len(fields) != 1 {
			return nil, p.malformed(tableName, "", fmt.Sprintf("foreignKeys[%d]: composite foreign keys are not supported", i))
		}

		ref, ok := toMap(fk["reference"])
		if !ok {
			return nil, p.malformed(tableName, fields[0], "foreign key has no reference")
		}
		target, err := p.optString(ref, "resource", tableName, fields[0])
		if err != nil {
			return nil, err
		}
		if target == "" {
			// frictionless: an empty resource references the table itself
			target = tableName
		}

		rel := schema.RelationshipDefinition{Field: fields[0], Target: canonicalTarget(target), Cardinality: schema.OneToMany}
		if ref["fields"] != nil {
			cols, err := p.stringList(ref["fields"], tableName, "reference.fields")
			if err != nil {
				return nil, err
			}
			if len(cols) != 1 {
				return nil, p.malformed(tableName, fields[0], "reference must name exactly one column")
			}
			rel.TargetColumn = cols[0]
		}

		token, err := p.optString(fk, "onDelete", tableName, fields[0])
		if err != nil {
			return nil, err
		}
		if rel.OnDelete, ok = parseOnDelete(token); !ok {
			return nil, p.malformed(tableName, fields[0], fmt.Sprintf("unknown onDelete policy %q", token))
		}
		rels = append(rels, rel)
	}
	return rels, nil
}
