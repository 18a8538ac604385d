package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		a, b  string
		want  int
	}{
		{"integer less", Field{Name: "n", Type: TypeInteger}, "9", "10", -1},
		{"integer equal", Field{Name: "n", Type: TypeInteger}, "10", "10", 0},
		{"integer negative", Field{Name: "n", Type: TypeInteger}, "-2", "1", -1},
		{"real", Field{Name: "x", Type: TypeReal}, "2.5", "2.25", 1},
		{"decimal trailing zeros equal", Field{Name: "m", Type: TypeDecimal}, "2.50", "2.5", 0},
		{"decimal magnitude", Field{Name: "m", Type: TypeDecimal}, "10.00", "9.99", 1},
		{"text lexical", Field{Name: "s", Type: TypeText}, "apple", "banana", -1},
		{"text numeric strings sort lexically", Field{Name: "s", Type: TypeText}, "10", "9", -1},
		{"bool false before true", Field{Name: "b", Type: TypeBoolean}, "0", "1", -1},
		{"date", Field{Name: "d", Type: TypeDate}, "2026-01-02", "2026-01-03", -1},
		{"timestamp across zones", Field{Name: "ts", Type: TypeTimestamp},
			"2026-08-26T10:00:00+03:00", "2026-08-26T07:00:00Z", 0},
		{"datetime", Field{Name: "dt", Type: TypeDatetime},
			"2026-08-26T10:00:00Z", "2026-08-26T09:00:00Z", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.field, String(tt.a), String(tt.b))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareErrors(t *testing.T) {
	_, err := Compare(Field{Name: "raw", Type: TypeBlob}, String("aGk="), String("aGk="))
	assert.Error(t, err, "blob has no ordering")

	_, err = Compare(Field{Name: "n", Type: TypeInteger}, Null(), String("1"))
	assert.Error(t, err, "null has no ordering")

	_, err = Compare(Field{Name: "n", Type: TypeInteger}, String("x"), String("1"))
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	intField := Field{Name: "n", Type: TypeInteger}

	eq, err := Equal(intField, Null(), Null())
	require.NoError(t, err)
	assert.True(t, eq, "null equals null")

	eq, err = Equal(intField, Null(), String("1"))
	require.NoError(t, err)
	assert.False(t, eq, "null never equals a non-null value")

	eq, err = Equal(intField, String("07"), String("7"))
	require.NoError(t, err)
	assert.True(t, eq)

	blob := Field{Name: "raw", Type: TypeBlob}
	eq, err = Equal(blob, String("aGVsbG8="), String("aGVsbG8="))
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(blob, String("aGVsbG8="), String("d29ybGQ="))
	require.NoError(t, err)
	assert.False(t, eq)

	text := Field{Name: "s", Type: TypeText}
	eq, err = Equal(text, String(""), String(""))
	require.NoError(t, err)
	assert.True(t, eq, "empty text is a value, not null")

	eq, err = Equal(text, String(""), Null())
	require.NoError(t, err)
	assert.False(t, eq)
}
