// Package mask redacts selected field values in rows. Masking is a
// display/export transform: it is pure, length-preserving in runes, keeps
// nulls null, and never changes row shape or unmasked fields.
package mask

import (
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tabwire/tabwire/pkg/schema"
)

// DefaultMaskChar is used when a config does not name a mask character.
const DefaultMaskChar = "*"

// Config names the fields to redact and how.
type Config struct {
	// Fields to redact. Names missing from the target schema are skipped
	// silently; one config may serve heterogeneous schemas.
	Fields []string `json:"fields" mapstructure:"fields"`

	// MaskChar is the single replacement character
	MaskChar string `json:"mask_char,omitempty" mapstructure:"mask_char"`

	// VisibleChars is the rune count left unredacted at the value's tail.
	// Used by the default tail pattern only.
	VisibleChars int `json:"visible_chars,omitempty" mapstructure:"visible_chars"`

	// Pattern selects a named redaction shape; empty means tail
	Pattern Pattern `json:"pattern,omitempty" mapstructure:"pattern"`

	// RespectReadonly skips fields flagged IsReadonly. By default readonly
	// fields are masked like any other, since masking does not mutate the
	// record of truth.
	RespectReadonly bool `json:"respect_readonly,omitempty" mapstructure:"respect_readonly"`
}

// Validate checks the config in isolation from any schema.
func (c Config) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("mask: no fields configured")
	}
	mc := c.MaskChar
	if mc == "" {
		mc = DefaultMaskChar
	}
	if utf8.RuneCountInString(mc) != 1 {
		return fmt.Errorf("mask: mask_char must be exactly one character, got %q", c.MaskChar)
	}
	if c.VisibleChars < 0 {
		return fmt.Errorf("mask: visible_chars must not be negative")
	}
	if _, err := ParsePattern(string(c.Pattern)); err != nil {
		return err
	}
	return nil
}

func (c Config) maskRune() rune {
	mc := c.MaskChar
	if mc == "" {
		mc = DefaultMaskChar
	}
	r, _ := utf8.DecodeRuneInString(mc)
	return r
}

// Engine applies mask configs to rows.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a masking engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "mask").Logger()}
}

// MaskRow returns a redacted copy of the row. The input row is never
// mutated.
func (e *Engine) MaskRow(s *schema.Schema, row schema.Row, cfg Config) (schema.Row, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(row) != s.FieldCount() {
		return nil, fmt.Errorf("mask: row has %d values, schema has %d fields",
			len(row), s.FieldCount())
	}

	out := row.Clone()
	for _, name := range cfg.Fields {
		idx, ok := s.Index(name)
		if !ok {
			e.logger.Debug().Str("field", name).Msg("Skipping unknown mask field")
			continue
		}
		f := s.FieldAt(idx)
		if cfg.RespectReadonly && f.IsReadonly {
			e.logger.Debug().Str("field", f.Name).Msg("Skipping readonly field")
			continue
		}
		v := out[idx]
		if v.IsNull() {
			continue
		}
		out[idx] = schema.String(applyPattern(cfg.Pattern, v.Text(), cfg.maskRune(), cfg.VisibleChars))
	}
	return out, nil
}

// MaskAll applies MaskRow to every row independently; there is no
// cross-row state.
func (e *Engine) MaskAll(s *schema.Schema, rows []schema.Row, cfg Config) ([]schema.Row, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := make([]schema.Row, len(rows))
	for i, row := range rows {
		masked, err := e.MaskRow(s, row, cfg)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = masked
	}
	e.logger.Debug().Int("rows", len(out)).Int("fields", len(cfg.Fields)).
		Msg("Applied mask batch")
	return out, nil
}
