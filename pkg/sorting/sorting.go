// Package sorting orders rows by one or more typed keys. Comparison is
// type-directed ("10" sorts after "9" on INTEGER fields) and null sorts
// below every non-null value, so ascending puts nulls first and
// descending puts them last.
package sorting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tabwire/tabwire/pkg/schema"
)

// Direction orders a single key.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection validates a direction name. The empty string means Asc.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case "":
		return Asc, nil
	case Asc, Desc:
		return d, nil
	default:
		return "", fmt.Errorf("sorting: unknown direction %q", s)
	}
}

// Spec names one sort key.
type Spec struct {
	Field     string    `json:"field" mapstructure:"field"`
	Direction Direction `json:"direction,omitempty" mapstructure:"direction"`
}

type sortKey struct {
	idx   int
	desc  bool
	field schema.Field
}

// Apply returns the rows ordered by the given keys. The sort is stable;
// rows equal under every key keep their input order. The input slice is
// not mutated. Keys must name orderable fields, and every keyed value
// must parse as its declared type; defects fail before any reordering.
func Apply(s *schema.Schema, rows []schema.Row, specs []Spec) ([]schema.Row, error) {
	out := make([]schema.Row, len(rows))
	copy(out, rows)
	if len(specs) == 0 {
		return out, nil
	}

	keys := make([]sortKey, len(specs))
	for i, spec := range specs {
		idx, ok := s.Index(spec.Field)
		if !ok {
			return nil, fmt.Errorf("sorting: unknown field %q", spec.Field)
		}
		f := s.FieldAt(idx)
		if !f.Type.Ordered() {
			return nil, fmt.Errorf("sorting: field %q of type %s has no ordering", f.Name, f.Type)
		}
		dir, err := ParseDirection(string(spec.Direction))
		if err != nil {
			return nil, err
		}
		keys[i] = sortKey{idx: idx, desc: dir == Desc, field: f}
	}

	// Validate up front so the comparison closure cannot fail mid-sort.
	for ri, row := range rows {
		if len(row) != s.FieldCount() {
			return nil, fmt.Errorf("sorting: row %d has %d values, schema has %d fields",
				ri, len(row), s.FieldCount())
		}
		for _, k := range keys {
			v := row[k.idx]
			if v.IsNull() {
				continue
			}
			if _, err := schema.Canonicalize(k.field, v); err != nil {
				return nil, fmt.Errorf("sorting: row %d field %q: %w", ri, k.field.Name, err)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			a, b := out[i][k.idx], out[j][k.idx]
			switch {
			case a.IsNull() && b.IsNull():
				continue
			case a.IsNull():
				return !k.desc
			case b.IsNull():
				return k.desc
			}
			c, _ := schema.Compare(k.field, a, b)
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out, nil
}
