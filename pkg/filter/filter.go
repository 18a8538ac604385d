// Package filter evaluates predicate specifications against rows. Specs
// are validated and compiled once per batch; evaluation is pure, so the
// order specs are applied in never changes the outcome.
package filter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tabwire/tabwire/pkg/schema"
)

// Op is a predicate operator. The set is closed; free-form operator names
// (including symbolic spellings like ">=") normalize through ParseOp at
// the boundary.
//
// Null handling: eq/ne follow the null-equality rule (null equals only
// null, ne is its exact negation), and in/not_in apply that same rule per
// list element, so a null row value matches a list containing the null
// sentinel. Ordering, range and pattern operators treat a null row value
// as "no match" rather than an error; is_null/is_not_null test nullness
// explicitly and ignore the operands.
type Op string

const (
	OpEq        Op = "eq"
	OpNe        Op = "ne"
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpLt        Op = "lt"
	OpLte       Op = "lte"
	OpIn        Op = "in"
	OpNotIn     Op = "not_in"
	OpBetween   Op = "between"
	OpLike      Op = "like"
	OpNotLike   Op = "not_like"
	OpIsNull    Op = "is_null"
	OpIsNotNull Op = "is_not_null"
)

// Bounds on filter specification strings, in runes.
const (
	MaxFieldLen = 256
	MaxOpLen    = 32
	MaxValueLen = 1024
)

var opAliases = map[string]Op{
	"=":  OpEq,
	"==": OpEq,
	"!=": OpNe,
	"<>": OpNe,
	">":  OpGt,
	">=": OpGte,
	"<":  OpLt,
	"<=": OpLte,
}

// ParseOp normalizes an operator name to its canonical Op.
func ParseOp(s string) (Op, error) {
	if utf8.RuneCountInString(s) > MaxOpLen {
		return "", &FilterError{Code: ErrCodeUnknownOp, Detail: "operator name too long"}
	}
	name := strings.ToLower(strings.TrimSpace(s))
	if op, ok := opAliases[name]; ok {
		return op, nil
	}
	op := Op(name)
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn,
		OpBetween, OpLike, OpNotLike, OpIsNull, OpIsNotNull:
		return op, nil
	}
	return "", &FilterError{Code: ErrCodeUnknownOp, Op: op, Detail: "unknown operator"}
}

// Spec is one predicate over a named field. Value2 is used only by
// between. The textual null sentinel is a legal operand for eq/ne/in.
type Spec struct {
	Field  string `json:"field" mapstructure:"field"`
	Op     Op     `json:"op" mapstructure:"op"`
	Value  string `json:"value,omitempty" mapstructure:"value"`
	Value2 string `json:"value2,omitempty" mapstructure:"value2"`
}

// Error codes for predicate defects
const (
	ErrCodeUnknownField   = "UNKNOWN_FIELD"   // field not present in the schema
	ErrCodeUnknownOp      = "UNKNOWN_OP"      // operator not in the closed set
	ErrCodeUnsupportedOp  = "UNSUPPORTED_OP"  // operator undefined for the field's type
	ErrCodeInvalidOperand = "INVALID_OPERAND" // operand unparsable or inconsistent
)

// FilterError describes a defective predicate.
type FilterError struct {
	Code   string
	Field  string
	Op     Op
	Detail string
}

func (e *FilterError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("filter: %s: field %q op %q: %s", e.Code, e.Field, e.Op, e.Detail)
	}
	return fmt.Sprintf("filter: %s: op %q: %s", e.Code, e.Op, e.Detail)
}

// Engine evaluates filter specs against rows.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a filter engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "filter").Logger()}
}

// ValidateSpec checks a spec against a schema without touching any rows:
// field resolution, operator support for the field's type, and operand
// parsing all happen here, so batch evaluation cannot fail halfway
// through on a config defect.
func (e *Engine) ValidateSpec(s *schema.Schema, spec Spec) error {
	_, err := e.compile(s, spec)
	return err
}

// Evaluate applies one spec to one row.
func (e *Engine) Evaluate(s *schema.Schema, row schema.Row, spec Spec) (bool, error) {
	cs, err := e.compile(s, spec)
	if err != nil {
		return false, err
	}
	return cs.match(row)
}

// ApplyAll keeps the rows that pass every spec (logical AND). Specs are
// compiled up front; each row is tested against all of them
// independently. The policy is strict: the first evaluation error fails
// the whole batch. ApplyAllLenient drops undecidable rows instead.
func (e *Engine) ApplyAll(s *schema.Schema, rows []schema.Row, specs []Spec) ([]schema.Row, error) {
	compiled, err := e.compileAll(s, specs)
	if err != nil {
		return nil, err
	}

	kept := make([]schema.Row, 0, len(rows))
	for i, row := range rows {
		pass, err := matchAll(compiled, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if pass {
			kept = append(kept, row)
		}
	}
	e.logger.Debug().Int("in", len(rows)).Int("out", len(kept)).
		Int("specs", len(specs)).Msg("Applied filter batch")
	return kept, nil
}

// ApplyAllLenient is ApplyAll with the lenient row policy: rows whose
// evaluation fails are excluded and counted instead of failing the batch.
// Spec compilation errors are still hard failures.
func (e *Engine) ApplyAllLenient(s *schema.Schema, rows []schema.Row, specs []Spec) ([]schema.Row, int, error) {
	compiled, err := e.compileAll(s, specs)
	if err != nil {
		return nil, 0, err
	}

	kept := make([]schema.Row, 0, len(rows))
	dropped := 0
	for i, row := range rows {
		pass, err := matchAll(compiled, row)
		if err != nil {
			dropped++
			e.logger.Warn().Err(err).Int("row", i).Msg("Dropped undecidable row")
			continue
		}
		if pass {
			kept = append(kept, row)
		}
	}
	return kept, dropped, nil
}

func (e *Engine) compileAll(s *schema.Schema, specs []Spec) ([]*compiledSpec, error) {
	compiled := make([]*compiledSpec, len(specs))
	for i, spec := range specs {
		cs, err := e.compile(s, spec)
		if err != nil {
			return nil, err
		}
		compiled[i] = cs
	}
	return compiled, nil
}

func matchAll(specs []*compiledSpec, row schema.Row) (bool, error) {
	pass := true
	for _, cs := range specs {
		ok, err := cs.match(row)
		if err != nil {
			return false, err
		}
		pass = pass && ok
	}
	return pass, nil
}
