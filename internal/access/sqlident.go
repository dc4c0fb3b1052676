package access

import (
	"fmt"
	"strings"

	"designer/internal/datadef"
)

// quoteIdent экранирует имя таблицы/колонки под диалект.
// "schema.table" квотируется по частям. Регистр не меняем: имена берутся из источника как есть.
func quoteIdent(t datadef.SourceType, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrBadValue)
	}
	q := `"`
	if t == datadef.SourceMySQL {
		q = "`"
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" || strings.ContainsRune(p, 0) {
			return "", fmt.Errorf("%w: invalid identifier %q", ErrBadValue, name)
		}
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, "."), nil
}

// placeholder — "?" для MySQL, "$n" для Postgres.
func placeholder(t datadef.SourceType, n int) string {
	if t == datadef.SourcePostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// MapSQLType — тип колонки (DESCRIBE / information_schema) в тип поля.
func MapSQLType(sqlType string) datadef.FieldType {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if strings.HasSuffix(t, "[]") || t == "array" {
		return datadef.FieldArray
	}
	if strings.HasPrefix(t, "tinyint(1)") || t == "bit" || strings.HasPrefix(t, "bit(1)") {
		return datadef.FieldBoolean
	}
	// имя типа без длины и модификаторов: "int(11) unsigned" -> "int", "timestamp with time zone" -> "timestamp"
	name, _, _ := strings.Cut(t, "(")
	words := strings.Fields(name)
	if len(words) == 0 {
		return datadef.FieldString
	}
	if ft, ok := sqlTypes[words[0]]; ok {
		return ft
	}
	return datadef.FieldString
}

var sqlTypes = map[string]datadef.FieldType{
	"tinyint": datadef.FieldNumber, "smallint": datadef.FieldNumber, "mediumint": datadef.FieldNumber,
	"int": datadef.FieldNumber, "integer": datadef.FieldNumber, "bigint": datadef.FieldNumber,
	"int2": datadef.FieldNumber, "int4": datadef.FieldNumber, "int8": datadef.FieldNumber,
	"smallserial": datadef.FieldNumber, "serial": datadef.FieldNumber, "bigserial": datadef.FieldNumber,
	"decimal": datadef.FieldNumber, "dec": datadef.FieldNumber, "numeric": datadef.FieldNumber,
	"float": datadef.FieldNumber, "float4": datadef.FieldNumber, "float8": datadef.FieldNumber,
	"double": datadef.FieldNumber, "real": datadef.FieldNumber,

	"bool": datadef.FieldBoolean, "boolean": datadef.FieldBoolean,

	"date": datadef.FieldDate, "datetime": datadef.FieldDate, "timestamp": datadef.FieldDate,
	"timestamptz": datadef.FieldDate, "time": datadef.FieldDate, "timetz": datadef.FieldDate,

	"json": datadef.FieldObject, "jsonb": datadef.FieldObject,
}
