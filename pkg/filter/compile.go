package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tabwire/tabwire/pkg/schema"
)

// compiledSpec is a spec resolved against one schema: field index bound,
// operands parsed to canonical form, pattern compiled. Compilation happens
// once per batch; match runs per row.
type compiledSpec struct {
	field    schema.Field
	fieldIdx int
	op       Op

	operand  schema.Value
	operand2 schema.Value
	list     []schema.Value
	pattern  *regexp.Regexp
}

func (e *Engine) compile(s *schema.Schema, spec Spec) (*compiledSpec, error) {
	op, err := ParseOp(string(spec.Op))
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(spec.Field) > MaxFieldLen {
		return nil, &FilterError{Code: ErrCodeUnknownField, Field: spec.Field, Op: op,
			Detail: "field name too long"}
	}
	for _, v := range []string{spec.Value, spec.Value2} {
		if utf8.RuneCountInString(v) > MaxValueLen {
			return nil, &FilterError{Code: ErrCodeInvalidOperand, Field: spec.Field, Op: op,
				Detail: "operand too long"}
		}
	}

	idx, ok := s.Index(spec.Field)
	if !ok {
		return nil, &FilterError{Code: ErrCodeUnknownField, Field: spec.Field, Op: op,
			Detail: "no such field in schema"}
	}
	cs := &compiledSpec{field: s.FieldAt(idx), fieldIdx: idx, op: op}

	switch op {
	case OpIsNull, OpIsNotNull:
		// Operands are ignored.

	case OpEq, OpNe:
		cs.operand, err = canonOperand(cs.field, spec.Value, op)
		if err != nil {
			return nil, err
		}

	case OpGt, OpGte, OpLt, OpLte:
		if !cs.field.Type.Ordered() {
			return nil, &FilterError{Code: ErrCodeUnsupportedOp, Field: cs.field.Name, Op: op,
				Detail: fmt.Sprintf("%s values have no ordering", cs.field.Type)}
		}
		cs.operand, err = canonOperand(cs.field, spec.Value, op)
		if err != nil {
			return nil, err
		}
		if cs.operand.IsNull() {
			return nil, &FilterError{Code: ErrCodeInvalidOperand, Field: cs.field.Name, Op: op,
				Detail: "ordering against null"}
		}

	case OpBetween:
		if !cs.field.Type.Ordered() {
			return nil, &FilterError{Code: ErrCodeUnsupportedOp, Field: cs.field.Name, Op: op,
				Detail: fmt.Sprintf("%s values have no ordering", cs.field.Type)}
		}
		cs.operand, err = canonOperand(cs.field, spec.Value, op)
		if err != nil {
			return nil, err
		}
		cs.operand2, err = canonOperand(cs.field, spec.Value2, op)
		if err != nil {
			return nil, err
		}
		if cs.operand.IsNull() || cs.operand2.IsNull() {
			return nil, &FilterError{Code: ErrCodeInvalidOperand, Field: cs.field.Name, Op: op,
				Detail: "range bound is null"}
		}
		c, err := schema.Compare(cs.field, cs.operand2, cs.operand)
		if err != nil {
			return nil, &FilterError{Code: ErrCodeInvalidOperand, Field: cs.field.Name, Op: op,
				Detail: err.Error()}
		}
		if c < 0 {
			return nil, &FilterError{Code: ErrCodeInvalidOperand, Field: cs.field.Name, Op: op,
				Detail: "upper bound below lower bound"}
		}

	case OpIn, OpNotIn:
		parts := strings.Split(spec.Value, ",")
		cs.list = make([]schema.Value, 0, len(parts))
		for _, p := range parts {
			v, err := canonOperand(cs.field, strings.TrimSpace(p), op)
			if err != nil {
				return nil, err
			}
			cs.list = append(cs.list, v)
		}

	case OpLike, OpNotLike:
		if cs.field.Type != schema.TypeText {
			return nil, &FilterError{Code: ErrCodeUnsupportedOp, Field: cs.field.Name, Op: op,
				Detail: "pattern match requires a TEXT field"}
		}
		cs.pattern, err = likePattern(spec.Value)
		if err != nil {
			return nil, &FilterError{Code: ErrCodeInvalidOperand, Field: cs.field.Name, Op: op,
				Detail: err.Error()}
		}
	}

	return cs, nil
}

// canonOperand parses a textual operand for the field's type, mapping the
// null sentinel to null.
func canonOperand(f schema.Field, raw string, op Op) (schema.Value, error) {
	v := schema.FromText(raw)
	if v.IsNull() {
		return v, nil
	}
	canon, err := schema.Canonicalize(f, v)
	if err != nil {
		return schema.Value{}, &FilterError{Code: ErrCodeInvalidOperand, Field: f.Name, Op: op,
			Detail: err.Error()}
	}
	return canon, nil
}

// likePattern converts a SQL LIKE pattern to an anchored regexp:
// % matches any run, _ any single character, everything else literally.
func likePattern(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, "%", ".*")
	quoted = strings.ReplaceAll(quoted, "_", ".")
	return regexp.Compile("^" + quoted + "$")
}

func (cs *compiledSpec) match(row schema.Row) (bool, error) {
	if cs.fieldIdx >= len(row) {
		return false, fmt.Errorf("row has %d values, field %q is at position %d",
			len(row), cs.field.Name, cs.fieldIdx)
	}
	v := row[cs.fieldIdx]

	switch cs.op {
	case OpIsNull:
		return v.IsNull(), nil
	case OpIsNotNull:
		return !v.IsNull(), nil

	case OpEq, OpNe:
		eq, err := schema.Equal(cs.field, v, cs.operand)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", cs.field.Name, err)
		}
		if cs.op == OpNe {
			return !eq, nil
		}
		return eq, nil

	case OpGt, OpGte, OpLt, OpLte:
		if v.IsNull() {
			return false, nil
		}
		c, err := schema.Compare(cs.field, v, cs.operand)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", cs.field.Name, err)
		}
		switch cs.op {
		case OpGt:
			return c > 0, nil
		case OpGte:
			return c >= 0, nil
		case OpLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}

	case OpBetween:
		if v.IsNull() {
			return false, nil
		}
		lo, err := schema.Compare(cs.field, v, cs.operand)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", cs.field.Name, err)
		}
		hi, err := schema.Compare(cs.field, v, cs.operand2)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", cs.field.Name, err)
		}
		return lo >= 0 && hi <= 0, nil

	case OpIn, OpNotIn:
		found := false
		for _, elem := range cs.list {
			eq, err := schema.Equal(cs.field, v, elem)
			if err != nil {
				return false, fmt.Errorf("field %q: %w", cs.field.Name, err)
			}
			if eq {
				found = true
				break
			}
		}
		if cs.op == OpNotIn {
			return !found, nil
		}
		return found, nil

	case OpLike, OpNotLike:
		if v.IsNull() {
			return false, nil
		}
		matched := cs.pattern.MatchString(v.Text())
		if cs.op == OpNotLike {
			return !matched, nil
		}
		return matched, nil
	}

	return false, &FilterError{Code: ErrCodeUnknownOp, Field: cs.field.Name, Op: cs.op,
		Detail: "unknown operator"}
}
