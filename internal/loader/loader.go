// Package loader turns decoded metadata documents into typed table definitions.
//
// Two layouts are understood. The native layout lists tables under "tables";
// the OEP / frictionless data package layout lists them under "resources"
// with a nested "schema" block. Both produce the same schema.TableDefinition
// values, and nothing untyped leaves this package.
package loader

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/AlekSi/pointer"
	"github.com/tordrt/metaddl/internal/schema"
)

// Document is one metadata document, already decoded into mapping and sequence primitives
type Document struct {
	Name    string
	Content map[string]any
}

var (
	tableKeys        = keySet("name", "namespace", "extends", "description", "fields", "primary_key", "unique", "indexes", "relationships")
	fieldKeys        = keySet("name", "type", "nullable", "primary_key", "auto_increment", "unique", "default", "default_expression", "description", "reference")
	referenceKeys    = keySet("table", "column", "cardinality", "on_delete")
	relationshipKeys = keySet("target", "field", "column", "cardinality", "on_delete", "required")
	indexKeys        = keySet("name", "columns", "unique")
)

// Load parses a single document into its table definitions.
// It never looks at other documents.
func Load(doc Document) ([]schema.TableDefinition, error) {
	p := &parser{doc: doc.Name}
	if doc.Content == nil {
		return nil, p.malformed("", "", "document is empty")
	}

	ns, err := p.optString(doc.Content, "namespace", "", "")
	if err != nil {
		return nil, err
	}
	p.namespace = canonicalNamespace(ns)

	tables, hasTables := doc.Content["tables"]
	resources, hasResources := doc.Content["resources"]
	switch {
	case hasTables && hasResources:
		return nil, p.malformed("", "", `document declares both "tables" and "resources"`)
	case hasTables:
		list, ok := toList(tables)
		if !ok && tables != nil {
			return nil, p.malformed("", "", `"tables" must be a list`)
		}
		return p.loadTables(list)
	case hasResources:
		list, ok := toList(resources)
		if !ok && resources != nil {
			return nil, p.malformed("", "", `"resources" must be a list`)
		}
		return p.loadResources(list)
	default:
		return nil, p.malformed("", "", `document declares neither "tables" nor "resources"`)
	}
}

type parser struct {
	doc       string
	namespace string
}

// fieldDecl keeps whether nullability was stated explicitly until the primary key is known
type fieldDecl struct {
	def      schema.FieldDefinition
	nullable *bool
}

func (p *parser) loadTables(list []any) ([]schema.TableDefinition, error) {
	tables := make([]schema.TableDefinition, 0, len(list))
	for i, item := range list {
		m, ok := toMap(item)
		if !ok {
			return nil, p.malformed("", "", fmt.Sprintf("tables[%d] must be a mapping", i))
		}
		table, err := p.loadTable(m, i)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *table)
	}
	return tables, nil
}

func (p *parser) loadTable(m map[string]any, index int) (*schema.TableDefinition, error) {
	rawName, err := p.optString(m, "name", "", "")
	if err != nil {
		return nil, err
	}
	if rawName == "" {
		return nil, p.malformed("", "", fmt.Sprintf("tables[%d] has no name", index))
	}
	if err := p.checkKeys(m, tableKeys, rawName, ""); err != nil {
		return nil, err
	}

	table := &schema.TableDefinition{Document: p.doc}
	nsKey, err := p.optString(m, "namespace", rawName, "")
	if err != nil {
		return nil, err
	}
	table.Namespace, table.Name, err = p.tableName(rawName, nsKey)
	if err != nil {
		return nil, err
	}
	tableName := table.QualifiedName()

	extends, err := p.optBool(m, "extends", tableName, "")
	if err != nil {
		return nil, err
	}
	table.Extends = pointer.GetBool(extends)

	if table.Description, err = p.optString(m, "description", tableName, ""); err != nil {
		return nil, err
	}

	rawFields, ok := toList(m["fields"])
	if !ok && m["fields"] != nil {
		return nil, p.malformed(tableName, "", `"fields" must be a list`)
	}

	var decls []fieldDecl
	var refs []schema.RelationshipDefinition
	for i, item := range rawFields {
		fm, ok := toMap(item)
		if !ok {
			return nil, p.malformed(tableName, "", fmt.Sprintf("fields[%d] must be a mapping", i))
		}
		decl, ref, err := p.loadField(fm, tableName, i)
		if err != nil {
			return nil, err
		}
		decls = append(decls, *decl)
		if ref != nil {
			refs = append(refs, *ref)
		}
		if unique, err := p.optBool(fm, "unique", tableName, decl.def.Name); err != nil {
			return nil, err
		} else if pointer.GetBool(unique) {
			table.Unique = append(table.Unique, schema.UniqueConstraint{Columns: []string{decl.def.Name}})
		}
	}

	if m["primary_key"] != nil {
		if table.PrimaryKey, err = p.stringList(m["primary_key"], tableName, "primary_key"); err != nil {
			return nil, err
		}
	}
	if err := p.finishFields(table, decls); err != nil {
		return nil, err
	}

	if m["unique"] != nil {
		groups, ok := toList(m["unique"])
		if !ok {
			return nil, p.malformed(tableName, "", `"unique" must be a list of column lists`)
		}
		for _, g := range groups {
			cols, err := p.stringList(g, tableName, "unique")
			if err != nil {
				return nil, err
			}
			table.Unique = append(table.Unique, schema.UniqueConstraint{Columns: cols})
		}
	}

	if table.Indexes, err = p.loadIndexes(m["indexes"], tableName); err != nil {
		return nil, err
	}

	table.Relationships = refs
	rels, err := p.loadRelationships(m["relationships"], tableName)
	if err != nil {
		return nil, err
	}
	table.Relationships = append(table.Relationships, rels...)

	if !table.Extends && len(table.Fields) == 0 && len(table.Relationships) == 0 {
		return nil, p.malformed(tableName, "", "table has no fields")
	}
	return table, nil
}

func (p *parser) loadField(m map[string]any, table string, index int) (*fieldDecl, *schema.RelationshipDefinition, error) {
	name, err := p.optString(m, "name", table, "")
	if err != nil {
		return nil, nil, err
	}
	if name == "" {
		return nil, nil, p.malformed(table, "", fmt.Sprintf("fields[%d] has no name", index))
	}
	if err := p.checkKeys(m, fieldKeys, table, name); err != nil {
		return nil, nil, err
	}

	decl := &fieldDecl{def: schema.FieldDefinition{Name: name}}
	def := &decl.def

	token, err := p.optString(m, "type", table, name)
	if err != nil {
		return nil, nil, err
	}
	if token != "" {
		ft, auto, ok := ParseFieldType(token)
		if !ok {
			return nil, nil, &schema.Error{Kind: schema.UnknownFieldType, Document: p.doc, Table: table, Field: name, Type: token}
		}
		def.Type = ft
		def.AutoIncrement = auto
	}

	if decl.nullable, err = p.optBool(m, "nullable", table, name); err != nil {
		return nil, nil, err
	}
	pk, err := p.optBool(m, "primary_key", table, name)
	if err != nil {
		return nil, nil, err
	}
	def.PrimaryKey = pointer.GetBool(pk)

	auto, err := p.optBool(m, "auto_increment", table, name)
	if err != nil {
		return nil, nil, err
	}
	if auto != nil {
		def.AutoIncrement = *auto
	}
	if def.AutoIncrement && !def.Type.IsZero() && !def.Type.Kind.IsInteger() {
		return nil, nil, p.malformed(table, name, "auto_increment requires an integer type")
	}

	if def.Description, err = p.optString(m, "description", table, name); err != nil {
		return nil, nil, err
	}
	if def.Default, err = p.loadDefault(m, def.Type, table, name); err != nil {
		return nil, nil, err
	}

	var ref *schema.RelationshipDefinition
	if raw, present := m["reference"]; present {
		if ref, err = p.loadReference(raw, table, name); err != nil {
			return nil, nil, err
		}
	} else if def.Type.IsZero() {
		return nil, nil, p.malformed(table, name, "field has no type")
	}
	return decl, ref, nil
}

func (p *parser) loadReference(raw any, table, field string) (*schema.RelationshipDefinition, error) {
	// shorthand: reference: users
	if target, ok := raw.(string); ok {
		if target == "" {
			return nil, p.malformed(table, field, "reference has no table")
		}
		return &schema.RelationshipDefinition{Field: field, Target: canonicalTarget(target), Cardinality: schema.OneToMany}, nil
	}

	m, ok := toMap(raw)
	if !ok {
		return nil, p.malformed(table, field, `"reference" must be a table name or a mapping`)
	}
	if err := p.checkKeys(m, referenceKeys, table, field); err != nil {
		return nil, err
	}

	rel := &schema.RelationshipDefinition{Field: field, Cardinality: schema.OneToMany}
	var err error
	if rel.Target, err = p.optString(m, "table", table, field); err != nil {
		return nil, err
	}
	if rel.Target == "" {
		return nil, p.malformed(table, field, "reference has no table")
	}
	rel.Target = canonicalTarget(rel.Target)
	if rel.TargetColumn, err = p.optString(m, "column", table, field); err != nil {
		return nil, err
	}
	if err := p.relationshipPolicy(m, rel, table, field); err != nil {
		return nil, err
	}
	if rel.Cardinality == schema.ManyToMany {
		return nil, p.malformed(table, field, "a field reference cannot be many-to-many, declare it under relationships")
	}
	return rel, nil
}

func (p *parser) loadRelationships(raw any, table string) ([]schema.RelationshipDefinition, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := toList(raw)
	if !ok {
		return nil, p.malformed(table, "", `"relationships" must be a list`)
	}

	rels := make([]schema.RelationshipDefinition, 0, len(list))
	for i, item := range list {
		m, ok := toMap(item)
		if !ok {
			return nil, p.malformed(table, "", fmt.Sprintf("relationships[%d] must be a mapping", i))
		}
		if err := p.checkKeys(m, relationshipKeys, table, ""); err != nil {
			return nil, err
		}

		rel := schema.RelationshipDefinition{Cardinality: schema.OneToMany}
		var err error
		if rel.Target, err = p.optString(m, "target", table, ""); err != nil {
			return nil, err
		}
		if rel.Target == "" {
			return nil, p.malformed(table, "", fmt.Sprintf("relationships[%d] has no target", i))
		}
		rel.Target = canonicalTarget(rel.Target)
		if rel.Field, err = p.optString(m, "field", table, ""); err != nil {
			return nil, err
		}
		if rel.TargetColumn, err = p.optString(m, "column", table, rel.Field); err != nil {
			return nil, err
		}
		if err := p.relationshipPolicy(m, &rel, table, rel.Field); err != nil {
			return nil, err
		}
		required, err := p.optBool(m, "required", table, rel.Field)
		if err != nil {
			return nil, err
		}
		rel.Required = pointer.GetBool(required)

		if rel.Cardinality == schema.ManyToMany && (rel.Field != "" || rel.TargetColumn != "") {
			return nil, p.malformed(table, rel.Field, "many-to-many relationships generate their columns and take no field or column")
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func (p *parser) relationshipPolicy(m map[string]any, rel *schema.RelationshipDefinition, table, field string) error {
	token, err := p.optString(m, "cardinality", table, field)
	if err != nil {
		return err
	}
	if token != "" {
		c, ok := parseCardinality(token)
		if !ok {
			return p.malformed(table, field, fmt.Sprintf("unknown cardinality %q", token))
		}
		rel.Cardinality = c
	}

	token, err = p.optString(m, "on_delete", table, field)
	if err != nil {
		return err
	}
	od, ok := parseOnDelete(token)
	if !ok {
		return p.malformed(table, field, fmt.Sprintf("unknown on_delete policy %q", token))
	}
	rel.OnDelete = od
	return nil
}

func (p *parser) loadIndexes(raw any, table string) ([]schema.IndexDefinition, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := toList(raw)
	if !ok {
		return nil, p.malformed(table, "", `"indexes" must be a list`)
	}

	indexes := make([]schema.IndexDefinition, 0, len(list))
	for i, item := range list {
		m, ok := toMap(item)
		if !ok {
			return nil, p.malformed(table, "", fmt.Sprintf("indexes[%d] must be a mapping", i))
		}
		if err := p.checkKeys(m, indexKeys, table, ""); err != nil {
			return nil, err
		}

		var idx schema.IndexDefinition
		var err error
		if idx.Name, err = p.optString(m, "name", table, ""); err != nil {
			return nil, err
		}
		if m["columns"] == nil {
			return nil, p.malformed(table, "", fmt.Sprintf("indexes[%d] has no columns", i))
		}
		if idx.Columns, err = p.stringList(m["columns"], table, "columns"); err != nil {
			return nil, err
		}
		unique, err := p.optBool(m, "unique", table, "")
		if err != nil {
			return nil, err
		}
		idx.Unique = pointer.GetBool(unique)
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

func (p *parser) loadDefault(m map[string]any, ft schema.FieldType, table, field string) (*schema.Default, error) {
	raw, hasValue := m["default"]
	expr, err := p.optString(m, "default_expression", table, field)
	if err != nil {
		return nil, err
	}
	if hasValue && raw != nil && expr != "" {
		return nil, p.malformed(table, field, `"default" and "default_expression" are mutually exclusive`)
	}
	if expr != "" {
		return &schema.Default{Kind: schema.DefaultExpression, Value: expr}, nil
	}
	if !hasValue || raw == nil {
		return nil, nil
	}

	var d schema.Default
	switch v := raw.(type) {
	case string:
		d = schema.Default{Kind: schema.DefaultString, Value: v}
	case bool:
		d = schema.Default{Kind: schema.DefaultBool, Value: strconv.FormatBool(v)}
	case int:
		d = schema.Default{Kind: schema.DefaultInteger, Value: strconv.Itoa(v)}
	case int64:
		d = schema.Default{Kind: schema.DefaultInteger, Value: strconv.FormatInt(v, 10)}
	case uint64:
		d = schema.Default{Kind: schema.DefaultInteger, Value: strconv.FormatUint(v, 10)}
	case float64:
		if v == float64(int64(v)) && ft.Kind.IsInteger() {
			d = schema.Default{Kind: schema.DefaultInteger, Value: strconv.FormatInt(int64(v), 10)}
		} else {
			d = schema.Default{Kind: schema.DefaultFloat, Value: strconv.FormatFloat(v, 'g', -1, 64)}
		}
	default:
		return nil, p.malformed(table, field, fmt.Sprintf("unsupported default value %v", raw))
	}

	if ft.IsZero() {
		return &d, nil
	}
	switch d.Kind {
	case schema.DefaultString:
		if ft.Kind == schema.TypeBoolean || isNumeric(ft.Kind) {
			converted, ok := stringDefault(d.Value, ft)
			if !ok {
				return nil, p.malformed(table, field, fmt.Sprintf("default %q is not a valid %s value", d.Value, ft))
			}
			d = converted
		}
	case schema.DefaultBool:
		if ft.Kind != schema.TypeBoolean {
			return nil, p.malformed(table, field, fmt.Sprintf("boolean default on %s field", ft))
		}
	case schema.DefaultInteger, schema.DefaultFloat:
		if !isNumeric(ft.Kind) {
			return nil, p.malformed(table, field, fmt.Sprintf("numeric default on %s field", ft))
		}
		if d.Kind == schema.DefaultFloat && ft.Kind.IsInteger() {
			return nil, p.malformed(table, field, fmt.Sprintf("fractional default on %s field", ft))
		}
	}
	return &d, nil
}

// stringDefault reads a quoted default on a boolean or numeric field
func stringDefault(v string, ft schema.FieldType) (schema.Default, bool) {
	v = strings.TrimSpace(v)
	switch {
	case ft.Kind == schema.TypeBoolean:
		if v == "true" || v == "false" {
			return schema.Default{Kind: schema.DefaultBool, Value: v}, true
		}
	case ft.Kind.IsInteger():
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return schema.Default{Kind: schema.DefaultInteger, Value: strconv.FormatInt(n, 10)}, true
		}
	default:
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return schema.Default{Kind: schema.DefaultFloat, Value: strconv.FormatFloat(f, 'g', -1, 64)}, true
		}
	}
	return schema.Default{}, false
}

// finishFields settles the primary key from field flags and the table-level list
// and applies nullability defaults
func (p *parser) finishFields(table *schema.TableDefinition, decls []fieldDecl) error {
	tableName := table.QualifiedName()
	seen := make(map[string]bool, len(decls))
	var flagged []string
	for _, d := range decls {
		if seen[d.def.Name] {
			return p.malformed(tableName, d.def.Name, "duplicate field")
		}
		seen[d.def.Name] = true
		if d.def.PrimaryKey {
			flagged = append(flagged, d.def.Name)
		}
	}

	if len(table.PrimaryKey) > 0 && len(flagged) > 0 && !equalStrings(table.PrimaryKey, flagged) {
		return p.malformed(tableName, "", fmt.Sprintf("primary key [%s] disagrees with primary_key flags on [%s]",
			strings.Join(table.PrimaryKey, ", "), strings.Join(flagged, ", ")))
	}
	if len(table.PrimaryKey) == 0 {
		table.PrimaryKey = flagged
	}
	inPK := make(map[string]bool, len(table.PrimaryKey))
	for _, col := range table.PrimaryKey {
		if inPK[col] {
			return p.malformed(tableName, col, "column listed twice in primary key")
		}
		inPK[col] = true
	}

	table.Fields = make([]schema.FieldDefinition, 0, len(decls))
	for _, d := range decls {
		def := d.def
		if inPK[def.Name] {
			if pointer.GetBool(d.nullable) {
				return p.malformed(tableName, def.Name, "primary key field cannot be nullable")
			}
			def.PrimaryKey = true
			def.Nullable = false
		} else if d.nullable != nil {
			def.Nullable = *d.nullable
		} else {
			def.Nullable = true
		}
		table.Fields = append(table.Fields, def)
	}
	return nil
}

// defaultNamespace is where unqualified tables live; naming it explicitly
// is the same as leaving it out
const defaultNamespace = "public"

func canonicalNamespace(ns string) string {
	if ns == defaultNamespace {
		return ""
	}
	return ns
}

// canonicalTarget drops an explicit default namespace from a reference target
func canonicalTarget(target string) string {
	if ns, name := schema.SplitQualifiedName(target); ns != "" && canonicalNamespace(ns) == "" {
		return name
	}
	return target
}

func (p *parser) tableName(raw, namespace string) (string, string, error) {
	ns, name := schema.SplitQualifiedName(raw)
	if strings.Count(raw, ".") > 1 || name == "" {
		return "", "", p.malformed(raw, "", "cannot read table name (and namespace)")
	}
	ns, namespace = canonicalNamespace(ns), canonicalNamespace(namespace)
	if ns != "" && namespace != "" && ns != namespace {
		return "", "", p.malformed(raw, "", fmt.Sprintf("qualified name conflicts with namespace %q", namespace))
	}
	if ns == "" {
		ns = namespace
	}
	if ns == "" {
		ns = p.namespace
	}
	return ns, name, nil
}

func (p *parser) malformed(table, field, detail string) error {
	return &schema.Error{Kind: schema.MalformedMetadata, Document: p.doc, Table: table, Field: field, Detail: detail}
}

func (p *parser) checkKeys(m map[string]any, allowed map[string]bool, table, field string) error {
	var unknown []string
	for k := range m {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return p.malformed(table, field, fmt.Sprintf("unknown keys %s", strings.Join(unknown, ", ")))
}

func (p *parser) optString(m map[string]any, key, table, field string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", p.malformed(table, field, fmt.Sprintf("%q must be a string", key))
	}
	return strings.TrimSpace(s), nil
}

func (p *parser) optBool(m map[string]any, key, table, field string) (*bool, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return nil, p.malformed(table, field, fmt.Sprintf("%q must be a boolean", key))
	}
	return pointer.ToBool(b), nil
}

// stringList accepts a single string or a list of strings
func (p *parser) stringList(raw any, table, key string) ([]string, error) {
	if s, ok := raw.(string); ok && s != "" {
		return []string{s}, nil
	}
	list, ok := toList(raw)
	if !ok || len(list) == 0 {
		return nil, p.malformed(table, "", fmt.Sprintf("%q must be a non-empty list of names", key))
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, p.malformed(table, "", fmt.Sprintf("%q must be a non-empty list of names", key))
		}
		out = append(out, s)
	}
	return out, nil
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func toList(v any) ([]any, bool) {
	list, ok := v.([]any)
	return list, ok
}

func isNumeric(k schema.TypeKind) bool {
	return k.IsInteger() || k == schema.TypeDecimal || k == schema.TypeReal || k == schema.TypeDouble
}

func equalStrings(a, b []string) bool {
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

func keySet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}
