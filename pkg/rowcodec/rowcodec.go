// Package rowcodec converts between schema-typed rows and their
// loosely-typed wire representation: ordered sequences of text values with
// a distinct null. Decoding validates arity payload-first, parses each
// value against its field's declared type and canonicalizes the text;
// encoding is the exact inverse, so decode/encode round-trips are
// idempotent for every representable value.
package rowcodec

import (
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tabwire/tabwire/pkg/schema"
)

// LengthPolicy controls what happens when a bounded TEXT value exceeds its
// field length.
type LengthPolicy string

const (
	// LengthReject fails the row with ErrCodeLengthExceeded. Default.
	LengthReject LengthPolicy = "reject"

	// LengthTruncate keeps the first Length runes and drops the rest.
	LengthTruncate LengthPolicy = "truncate"
)

// ParseLengthPolicy normalizes a policy name; empty means LengthReject.
func ParseLengthPolicy(s string) (LengthPolicy, error) {
	switch LengthPolicy(s) {
	case "", LengthReject:
		return LengthReject, nil
	case LengthTruncate:
		return LengthTruncate, nil
	}
	return "", fmt.Errorf("unknown length policy %q", s)
}

// Error codes for row defects
const (
	ErrCodeArity          = "ARITY"           // value count does not match field count
	ErrCodeTypeMismatch   = "TYPE_MISMATCH"   // value does not parse as the declared type
	ErrCodeLengthExceeded = "LENGTH_EXCEEDED" // bounded TEXT value too long
)

// RowError describes a defect in a single row.
type RowError struct {
	// Code is a machine-readable error code
	Code string

	// Field names the offending field; empty for arity errors
	Field string

	// Raw is the offending raw value
	Raw string

	// Index is the row's position within a batch; -1 for single-row calls
	Index int

	// Detail is a human-readable description
	Detail string
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: field %q: %s", e.Index, e.Code, e.Field, e.Detail)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Index, e.Code, e.Detail)
}

// Codec validates and canonicalizes rows against a schema.
type Codec struct {
	policy LengthPolicy
	logger zerolog.Logger

	totalRows   uint64
	totalErrors uint64
}

// New creates a Codec with the reject length policy.
func New(logger zerolog.Logger) *Codec {
	return NewWithPolicy(logger, LengthReject)
}

// NewWithPolicy creates a Codec with an explicit length policy.
func NewWithPolicy(logger zerolog.Logger, policy LengthPolicy) *Codec {
	return &Codec{
		policy: policy,
		logger: logger.With().Str("component", "rowcodec").Logger(),
	}
}

// DecodeRow materializes one row: arity check first, then a type-directed
// parse of every value. Text equal to the null sentinel decodes as null
// regardless of type. Canonical text forms are substituted so the result
// re-encodes byte-identically.
func (c *Codec) DecodeRow(s *schema.Schema, raw []schema.Value) (schema.Row, error) {
	return c.decodeRow(s, raw, -1)
}

func (c *Codec) decodeRow(s *schema.Schema, raw []schema.Value, index int) (schema.Row, error) {
	if len(raw) != s.FieldCount() {
		c.totalErrors++
		return nil, &RowError{
			Code:   ErrCodeArity,
			Index:  index,
			Detail: fmt.Sprintf("got %d values, schema has %d fields", len(raw), s.FieldCount()),
		}
	}

	row := make(schema.Row, len(raw))
	for i, v := range raw {
		f := s.FieldAt(i)

		// The sentinel always wins over the declared type.
		if !v.IsNull() && v.Text() == schema.NullText {
			v = schema.Null()
		}
		if v.IsNull() {
			row[i] = v
			continue
		}

		if f.Type == schema.TypeText && f.Length > 0 {
			if n := utf8.RuneCountInString(v.Text()); n > f.Length {
				if c.policy == LengthReject {
					c.totalErrors++
					return nil, &RowError{
						Code:   ErrCodeLengthExceeded,
						Field:  f.Name,
						Raw:    v.Text(),
						Index:  index,
						Detail: fmt.Sprintf("%d runes exceeds length %d", n, f.Length),
					}
				}
				v = schema.String(string([]rune(v.Text())[:f.Length]))
				c.logger.Warn().
					Str("field", f.Name).
					Int("length", f.Length).
					Int("got", n).
					Msg("Truncated oversized text value")
			}
		}

		canon, err := schema.Canonicalize(f, v)
		if err != nil {
			c.totalErrors++
			return nil, &RowError{
				Code:   ErrCodeTypeMismatch,
				Field:  f.Name,
				Raw:    v.Text(),
				Index:  index,
				Detail: err.Error(),
			}
		}
		row[i] = canon
	}

	c.totalRows++
	return row, nil
}

// EncodeRow renders a row back to its wire values in canonical form. It is
// the inverse of DecodeRow for every row DecodeRow accepts.
func (c *Codec) EncodeRow(s *schema.Schema, row schema.Row) ([]schema.Value, error) {
	if len(row) != s.FieldCount() {
		return nil, &RowError{
			Code:   ErrCodeArity,
			Index:  -1,
			Detail: fmt.Sprintf("got %d values, schema has %d fields", len(row), s.FieldCount()),
		}
	}
	out := make([]schema.Value, len(row))
	for i, v := range row {
		canon, err := schema.Canonicalize(s.FieldAt(i), v)
		if err != nil {
			return nil, &RowError{
				Code:   ErrCodeTypeMismatch,
				Field:  s.FieldAt(i).Name,
				Raw:    v.Text(),
				Index:  -1,
				Detail: err.Error(),
			}
		}
		out[i] = canon
	}
	return out, nil
}

// DecodeAll materializes a batch, failing fast on the first bad row. The
// returned error carries the offending row's position.
func (c *Codec) DecodeAll(s *schema.Schema, raws [][]schema.Value) ([]schema.Row, error) {
	rows := make([]schema.Row, 0, len(raws))
	for i, raw := range raws {
		row, err := c.decodeRow(s, raw, i)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	c.logger.Debug().Int("rows", len(rows)).Msg("Decoded row batch")
	return rows, nil
}

// EncodeAll renders a batch of rows to wire values.
func (c *Codec) EncodeAll(s *schema.Schema, rows []schema.Row) ([][]schema.Value, error) {
	out := make([][]schema.Value, 0, len(rows))
	for i, row := range rows {
		vals, err := c.EncodeRow(s, row)
		if err != nil {
			if rerr, ok := err.(*RowError); ok {
				rerr.Index = i
			}
			return nil, err
		}
		out = append(out, vals)
	}
	return out, nil
}

// Stats reports decode counters.
func (c *Codec) Stats() map[string]uint64 {
	return map[string]uint64{
		"rows_decoded": c.totalRows,
		"rows_failed":  c.totalErrors,
	}
}
