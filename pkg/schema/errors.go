package schema

import "fmt"

// Error codes for schema validation failures
const (
	ErrCodeDuplicateField     = "DUPLICATE_FIELD"      // two fields share a name
	ErrCodeInvalidName        = "INVALID_NAME"         // empty or oversized field name
	ErrCodeInvalidNumericSpec = "INVALID_NUMERIC_SPEC" // precision/scale out of range
	ErrCodeUnknownType        = "UNKNOWN_TYPE"         // type name not in the closed set
)

// SchemaError describes a structural defect in a schema definition.
type SchemaError struct {
	// Code is a machine-readable error code
	Code string

	// Field names the offending field, when one is identifiable
	Field string

	// Detail is a human-readable description
	Detail string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema: %s: field %q: %s", e.Code, e.Field, e.Detail)
	}
	return fmt.Sprintf("schema: %s: %s", e.Code, e.Detail)
}
