package mask

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabwire/tabwire/pkg/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.New(
		schema.Field{Name: "id", Type: schema.TypeInteger, IsKey: true},
		schema.Field{Name: "ssn", Type: schema.TypeText},
		schema.Field{Name: "email", Type: schema.TypeText},
		schema.Field{Name: "note", Type: schema.TypeText, IsReadonly: true},
	)
	require.NoError(t, s.Validate())
	return s
}

func TestMaskRowTail(t *testing.T) {
	s := testSchema(t)
	e := NewEngine(zerolog.Nop())

	row := schema.TextRow("42", "123-45-6789", "bob@example.com", "keep")
	out, err := e.MaskRow(s, row, Config{
		Fields:       []string{"ssn"},
		MaskChar:     "*",
		VisibleChars: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, "42", out[0].Text())
	assert.Equal(t, "*******6789", out[1].Text())
	assert.Equal(t, "bob@example.com", out[2].Text())
	assert.Equal(t, "keep", out[3].Text())

	// Input row untouched.
	assert.Equal(t, "123-45-6789", row[1].Text())
}

func TestMaskRowTailEdges(t *testing.T) {
	s := testSchema(t)
	e := NewEngine(zerolog.Nop())

	tests := []struct {
		name    string
		value   string
		visible int
		want    string
	}{
		{"visible exceeds length", "abc", 10, "abc"},
		{"visible equals length", "abc", 3, "abc"},
		{"visible zero masks all", "abc", 0, "***"},
		{"empty string", "", 4, ""},
		{"multibyte runes counted once", "héllo", 2, "***lo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := schema.TextRow("1", tt.value, "x", "x")
			out, err := e.MaskRow(s, row, Config{
				Fields:       []string{"ssn"},
				VisibleChars: tt.visible,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out[1].Text())
		})
	}
}

func TestMaskRowNullStaysNull(t *testing.T) {
	s := testSchema(t)
	e := NewEngine(zerolog.Nop())

	row := schema.Row{schema.String("1"), schema.Null(), schema.Null(), schema.String("x")}
	out, err := e.MaskRow(s, row, Config{Fields: []string{"ssn", "email"}})
	require.NoError(t, err)
	assert.True(t, out[1].IsNull())
	assert.True(t, out[2].IsNull())
}

func TestMaskRowUnknownFieldSkipped(t *testing.T) {
	s := testSchema(t)
	e := NewEngine(zerolog.Nop())

	row := schema.TextRow("1", "secret", "a@b.c", "x")
	out, err := e.MaskRow(s, row, Config{Fields: []string{"nope", "ssn"}})
	require.NoError(t, err)
	assert.Equal(t, "******", out[1].Text())
}

func TestMaskRowReadonly(t *testing.T) {
	s := testSchema(t)
	e := NewEngine(zerolog.Nop())
	row := schema.TextRow("1", "x", "x", "internal")

	// Readonly fields are masked by default.
	out, err := e.MaskRow(s, row, Config{Fields: []string{"note"}})
	require.NoError(t, err)
	assert.Equal(t, "********", out[3].Text())

	// RespectReadonly skips them.
	out, err = e.MaskRow(s, row, Config{Fields: []string{"note"}, RespectReadonly: true})
	require.NoError(t, err)
	assert.Equal(t, "internal", out[3].Text())
}

func TestMaskRowCustomChar(t *testing.T) {
	s := testSchema(t)
	e := NewEngine(zerolog.Nop())

	row := schema.TextRow("1", "abcdef", "x", "x")
	out, err := e.MaskRow(s, row, Config{
		Fields:       []string{"ssn"},
		MaskChar:     "•",
		VisibleChars: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "••••ef", out[1].Text())
}

func TestMaskRowArityMismatch(t *testing.T) {
	s := testSchema(t)
	e := NewEngine(zerolog.Nop())

	_, err := e.MaskRow(s, schema.TextRow("1", "2"), Config{Fields: []string{"ssn"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema has 4 fields")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"no fields", Config{}, "no fields"},
		{"multi-rune mask char", Config{Fields: []string{"a"}, MaskChar: "**"}, "exactly one character"},
		{"negative visible", Config{Fields: []string{"a"}, VisibleChars: -1}, "not be negative"},
		{"unknown pattern", Config{Fields: []string{"a"}, Pattern: "zigzag"}, "unknown pattern"},
		{"defaults ok", Config{Fields: []string{"a"}}, ""},
		{"multibyte mask char ok", Config{Fields: []string{"a"}, MaskChar: "•"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMaskAll(t *testing.T) {
	s := testSchema(t)
	e := NewEngine(zerolog.Nop())

	rows := []schema.Row{
		schema.TextRow("1", "111-11-1111", "a@x.io", "n1"),
		{schema.String("2"), schema.Null(), schema.String("b@x.io"), schema.String("n2")},
	}
	out, err := e.MaskAll(s, rows, Config{Fields: []string{"ssn"}, VisibleChars: 4})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "*******1111", out[0][1].Text())
	assert.True(t, out[1][1].IsNull())

	// Source rows are untouched.
	assert.Equal(t, "111-11-1111", rows[0][1].Text())
}
