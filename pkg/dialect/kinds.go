package dialect

import (
	"regexp"
	"strings"
)

var (
	typeParams = regexp.MustCompile(`\([^)]*\)`)
	spaces     = regexp.MustCompile(`\s+`)
)

var numericTypes = map[string]bool{
	"smallint": true, "integer": true, "int": true, "bigint": true, "tinyint": true, "byteint": true,
	"int2": true, "int4": true, "int8": true, "serial": true, "bigserial": true, "smallserial": true,
	"real": true, "float": true, "float4": true, "float8": true, "double": true, "double precision": true,
	"numeric": true, "decimal": true, "number": true, "money": true,
}

var textTypes = map[string]bool{
	"text": true, "string": true, "varchar": true, "char": true, "character": true,
	"character varying": true, "bpchar": true, "nvarchar": true, "nchar": true, "citext": true,
	"name": true,
}

var dateTypes = map[string]bool{
	"date": true, "datetime": true, "timestamp": true, "timestamptz": true,
	"timestamp with time zone": true, "timestamp without time zone": true,
}

// normalizeType lower-cases a type name and strips precision and length
// parameters so "NUMERIC(18, 2)" and "numeric" compare equal. Array suffixes
// are kept; arrays are never scalar kinds.
func normalizeType(dataType string) string {
	t := strings.ToLower(dataType)
	t = typeParams.ReplaceAllString(t, "")
	return strings.TrimSpace(spaces.ReplaceAllString(t, " "))
}

func inferKind(dataType string) Kind {
	t := normalizeType(dataType)
	switch {
	case strings.HasSuffix(t, "[]"):
		return KindOther
	case numericTypes[t]:
		return KindNumeric
	case textTypes[t]:
		return KindText
	case dateTypes[t]:
		return KindDate
	case strings.HasPrefix(t, "timestamp"):
		return KindDate
	}
	return KindOther
}
