package schema

import "strings"

// DataType identifies the declared type of a field. The set is closed:
// free-form names coming off the wire or out of configuration are
// normalized through ParseDataType exactly once, at the boundary.
type DataType string

const (
	TypeText      DataType = "TEXT"
	TypeInteger   DataType = "INTEGER"
	TypeReal      DataType = "REAL"
	TypeBoolean   DataType = "BOOLEAN"
	TypeDate      DataType = "DATE"
	TypeDatetime  DataType = "DATETIME"
	TypeTimestamp DataType = "TIMESTAMP"
	TypeDecimal   DataType = "DECIMAL"
	TypeBlob      DataType = "BLOB"
)

// Default digit budget for DECIMAL fields that do not declare one.
const (
	DefaultPrecision = 18
	DefaultScale     = 2

	// MaxPrecision is the largest accepted DECIMAL precision.
	MaxPrecision = 38
)

// typeSynonyms maps common SQL spellings onto the canonical type set.
var typeSynonyms = map[string]DataType{
	"text":      TypeText,
	"string":    TypeText,
	"varchar":   TypeText,
	"char":      TypeText,
	"integer":   TypeInteger,
	"int":       TypeInteger,
	"bigint":    TypeInteger,
	"smallint":  TypeInteger,
	"real":      TypeReal,
	"float":     TypeReal,
	"double":    TypeReal,
	"boolean":   TypeBoolean,
	"bool":      TypeBoolean,
	"date":      TypeDate,
	"datetime":  TypeDatetime,
	"timestamp": TypeTimestamp,
	"decimal":   TypeDecimal,
	"numeric":   TypeDecimal,
	"blob":      TypeBlob,
	"binary":    TypeBlob,
	"bytea":     TypeBlob,
}

// ParseDataType normalizes a type name to its canonical DataType.
// Unknown names fail with a SchemaError of code ErrCodeUnknownType.
func ParseDataType(name string) (DataType, error) {
	t, ok := typeSynonyms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &SchemaError{Code: ErrCodeUnknownType, Detail: "unknown field type: " + name}
	}
	return t, nil
}

// Valid reports whether t is one of the canonical types.
func (t DataType) Valid() bool {
	switch t {
	case TypeText, TypeInteger, TypeReal, TypeBoolean,
		TypeDate, TypeDatetime, TypeTimestamp, TypeDecimal, TypeBlob:
		return true
	}
	return false
}

// Ordered reports whether values of this type have a total order.
// BLOB values compare for equality only.
func (t DataType) Ordered() bool {
	return t != TypeBlob
}
