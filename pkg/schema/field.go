package schema

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// MaxFieldNameLen is the longest accepted field name, in runes.
const MaxFieldNameLen = 256

// Field describes one column of a tabular packet.
type Field struct {
	// Name is unique within a schema (case-insensitive) and non-empty
	Name string `msgpack:"name" json:"name"`

	// Type is the canonical data type
	Type DataType `msgpack:"type" json:"type"`

	// Length bounds TEXT values in runes; 0 means unbounded
	Length int `msgpack:"length,omitempty" json:"length,omitempty"`

	// Precision and Scale apply to DECIMAL fields only; zero values
	// fall back to DefaultPrecision/DefaultScale
	Precision int `msgpack:"precision,omitempty" json:"precision,omitempty"`
	Scale     int `msgpack:"scale,omitempty" json:"scale,omitempty"`

	// IsKey marks the field as part of row identity
	IsKey bool `msgpack:"is_key,omitempty" json:"is_key,omitempty"`

	// IsReadonly is advisory; see the masking engine for how it is honored
	IsReadonly bool `msgpack:"is_readonly,omitempty" json:"is_readonly,omitempty"`
}

// EffectivePrecision returns the declared precision or the default.
func (f Field) EffectivePrecision() int {
	if f.Precision == 0 {
		return DefaultPrecision
	}
	return f.Precision
}

// EffectiveScale returns the declared scale or the default.
func (f Field) EffectiveScale() int {
	if f.Precision == 0 && f.Scale == 0 {
		return DefaultScale
	}
	return f.Scale
}

// Schema is an ordered field list. Rows are positionally aligned with it.
// A Schema is immutable after construction; the name index is built once
// and is safe for concurrent readers.
type Schema struct {
	fields []Field

	once  sync.Once
	index map[string]int
}

// New builds a Schema from the given fields. The slice is copied.
func New(fields ...Field) *Schema {
	s := &Schema{fields: make([]Field, len(fields))}
	copy(s.fields, fields)
	return s
}

// Fields returns the descriptor list. Callers must treat it as read-only.
func (s *Schema) Fields() []Field { return s.fields }

// FieldCount returns the number of fields.
func (s *Schema) FieldCount() int { return len(s.fields) }

// FieldAt returns the field at position i.
func (s *Schema) FieldAt(i int) Field { return s.fields[i] }

// Index resolves a field name to its position. Lookup is
// case-insensitive. This is the sole name resolver used by the filter,
// mask, merge and sorting engines.
func (s *Schema) Index(name string) (int, bool) {
	s.once.Do(s.buildIndex)
	i, ok := s.index[strings.ToLower(name)]
	return i, ok
}

func (s *Schema) buildIndex() {
	s.index = make(map[string]int, len(s.fields))
	for i, f := range s.fields {
		key := strings.ToLower(f.Name)
		if _, dup := s.index[key]; dup {
			continue // Validate reports duplicates; first position wins here
		}
		s.index[key] = i
	}
}

// Validate checks structural soundness: unique non-empty names, known
// types, and DECIMAL precision/scale ranges. Failures are *SchemaError.
func (s *Schema) Validate() error {
	seen := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		if f.Name == "" {
			return &SchemaError{Code: ErrCodeInvalidName, Detail: "field name must not be empty"}
		}
		if utf8.RuneCountInString(f.Name) > MaxFieldNameLen {
			return &SchemaError{Code: ErrCodeInvalidName, Field: f.Name, Detail: "field name too long"}
		}
		key := strings.ToLower(f.Name)
		if prev, dup := seen[key]; dup {
			return &SchemaError{Code: ErrCodeDuplicateField, Field: f.Name,
				Detail: "duplicate of field " + prev}
		}
		seen[key] = f.Name

		if !f.Type.Valid() {
			return &SchemaError{Code: ErrCodeUnknownType, Field: f.Name,
				Detail: "unknown field type " + string(f.Type)}
		}
		if f.Length < 0 {
			return &SchemaError{Code: ErrCodeInvalidNumericSpec, Field: f.Name,
				Detail: "negative length"}
		}
		if f.Type == TypeDecimal {
			p, sc := f.EffectivePrecision(), f.EffectiveScale()
			if p < 1 || p > MaxPrecision {
				return &SchemaError{Code: ErrCodeInvalidNumericSpec, Field: f.Name,
					Detail: "precision out of range 1..38"}
			}
			if sc < 0 || sc > p {
				return &SchemaError{Code: ErrCodeInvalidNumericSpec, Field: f.Name,
					Detail: "scale out of range 0..precision"}
			}
		}
	}
	return nil
}

// KeyFields returns the positions of fields flagged IsKey, in order.
func (s *Schema) KeyFields() []int {
	var keys []int
	for i, f := range s.fields {
		if f.IsKey {
			keys = append(keys, i)
		}
	}
	return keys
}

// Equal reports whether two schemas declare the same fields in the same
// order. Names compare case-insensitively; length, precision, scale and
// flags must match exactly.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		g := other.fields[i]
		if !strings.EqualFold(f.Name, g.Name) || f.Type != g.Type ||
			f.Length != g.Length || f.Precision != g.Precision ||
			f.Scale != g.Scale || f.IsKey != g.IsKey || f.IsReadonly != g.IsReadonly {
			return false
		}
	}
	return true
}
