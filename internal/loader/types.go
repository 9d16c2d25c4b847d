package loader

import (
	"strconv"
	"strings"

	"github.com/tordrt/metaddl/internal/schema"
)

// typeAliases maps lower-case type tokens (without parameters) to semantic kinds.
// Read-only after package initialization.
var typeAliases = map[string]schema.TypeKind{
	"integer":                     schema.TypeInteger,
	"int":                         schema.TypeInteger,
	"int4":                        schema.TypeInteger,
	"bigint":                      schema.TypeBigInt,
	"int8":                        schema.TypeBigInt,
	"smallint":                    schema.TypeSmallInt,
	"int2":                        schema.TypeSmallInt,
	"text":                        schema.TypeText,
	"string":                      schema.TypeText,
	"varchar":                     schema.TypeVarchar,
	"character varying":           schema.TypeVarchar,
	"char":                        schema.TypeChar,
	"character":                   schema.TypeChar,
	"boolean":                     schema.TypeBoolean,
	"bool":                        schema.TypeBoolean,
	"date":                        schema.TypeDate,
	"time":                        schema.TypeTime,
	"timestamp":                   schema.TypeTimestamp,
	"datetime":                    schema.TypeTimestamp,
	"timestamp without time zone": schema.TypeTimestamp,
	"timestamptz":                 schema.TypeTimestampTZ,
	"timestamp with time zone":    schema.TypeTimestampTZ,
	"interval":                    schema.TypeInterval,
	"decimal":                     schema.TypeDecimal,
	"numeric":                     schema.TypeDecimal,
	"number":                      schema.TypeDecimal,
	"real":                        schema.TypeReal,
	"float":                       schema.TypeReal,
	"float4":                      schema.TypeReal,
	"double":                      schema.TypeDouble,
	"double precision":            schema.TypeDouble,
	"float8":                      schema.TypeDouble,
	"uuid":                        schema.TypeUUID,
	"json":                        schema.TypeJSON,
	"jsonb":                       schema.TypeJSON,
	"object":                      schema.TypeJSON,
	"array":                       schema.TypeJSON,
	"binary":                      schema.TypeBinary,
	"bytea":                       schema.TypeBinary,
	"blob":                        schema.TypeBinary,
	"geometry":                    schema.TypeGeometry,
}

// serialAliases are integer kinds that imply auto-increment
var serialAliases = map[string]schema.TypeKind{
	"serial":      schema.TypeInteger,
	"serial4":     schema.TypeInteger,
	"bigserial":   schema.TypeBigInt,
	"serial8":     schema.TypeBigInt,
	"smallserial": schema.TypeSmallInt,
	"serial2":     schema.TypeSmallInt,
}

// ParseFieldType parses a type token such as "integer", "varchar(20)",
// "decimal(10, 2)" or "geometry(point, 4326)". The auto result is true for
// serial tokens. ok is false for unrecognized tokens or bad parameters.
func ParseFieldType(token string) (t schema.FieldType, auto bool, ok bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	base, args, hasArgs := splitTypeArgs(token)
	if base == "" {
		return schema.FieldType{}, false, false
	}
	base = strings.Join(strings.Fields(base), " ")

	if kind, found := serialAliases[base]; found {
		if hasArgs {
			return schema.FieldType{}, false, false
		}
		return schema.FieldType{Kind: kind}, true, true
	}

	kind, found := typeAliases[base]
	if !found {
		return schema.FieldType{}, false, false
	}
	t.Kind = kind
	if !hasArgs {
		return t, false, true
	}

	switch kind {
	case schema.TypeVarchar, schema.TypeChar:
		if len(args) != 1 {
			return schema.FieldType{}, false, false
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return schema.FieldType{}, false, false
		}
		t.Length = n
	case schema.TypeDecimal:
		if len(args) < 1 || len(args) > 2 {
			return schema.FieldType{}, false, false
		}
		p, err := strconv.Atoi(args[0])
		if err != nil || p <= 0 {
			return schema.FieldType{}, false, false
		}
		t.Precision = p
		if len(args) == 2 {
			s, err := strconv.Atoi(args[1])
			if err != nil || s < 0 || s > p {
				return schema.FieldType{}, false, false
			}
			t.Scale = s
		}
	case schema.TypeGeometry:
		if len(args) < 1 || len(args) > 2 || !isIdentifier(args[0]) {
			return schema.FieldType{}, false, false
		}
		t.Subtype = args[0]
		if len(args) == 2 {
			srid, err := strconv.Atoi(args[1])
			if err != nil || srid <= 0 {
				return schema.FieldType{}, false, false
			}
			t.SRID = srid
		}
	default:
		return schema.FieldType{}, false, false
	}
	return t, false, true
}

func splitTypeArgs(token string) (base string, args []string, hasArgs bool) {
	open := strings.IndexByte(token, '(')
	if open < 0 {
		return token, nil, false
	}
	if !strings.HasSuffix(token, ")") {
		return "", nil, false
	}
	base = strings.TrimSpace(token[:open])
	inner := token[open+1 : len(token)-1]
	for _, a := range strings.Split(inner, ",") {
		args = append(args, strings.TrimSpace(a))
	}
	return base, args, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func parseCardinality(token string) (schema.Cardinality, bool) {
	switch normalizeToken(token) {
	case "one-to-one", "1:1":
		return schema.OneToOne, true
	case "one-to-many", "many-to-one", "1:n", "n:1":
		return schema.OneToMany, true
	case "many-to-many", "n:n", "n:m", "m:n":
		return schema.ManyToMany, true
	}
	return "", false
}

func parseOnDelete(token string) (schema.OnDelete, bool) {
	switch normalizeToken(token) {
	case "":
		return schema.OnDeleteUnset, true
	case "cascade":
		return schema.OnDeleteCascade, true
	case "restrict":
		return schema.OnDeleteRestrict, true
	case "set-null":
		return schema.OnDeleteSetNull, true
	case "no-action":
		return schema.OnDeleteNoAction, true
	}
	return "", false
}

// normalizeToken lower-cases and turns "set null" / "set_null" into "set-null"
func normalizeToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.ReplaceAll(token, "_", "-")
	return strings.Join(strings.Fields(token), "-")
}
