package schema

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// NullText is the textual null sentinel. A raw value equal to it decodes
// as null regardless of the declared field type. On the msgpack wire null
// travels as nil, never as this marker.
const NullText = `\N`

// Value is one cell of a row: lossless text plus a null flag. Null is
// distinct from the empty string; empty text is a valid TEXT value and a
// parse error for every other type.
type Value struct {
	text string
	null bool
}

// String returns a non-null text value.
func String(s string) Value { return Value{text: s} }

// Null returns the null value.
func Null() Value { return Value{null: true} }

// FromText converts raw text to a Value, mapping the null sentinel to null.
func FromText(s string) Value {
	if s == NullText {
		return Null()
	}
	return Value{text: s}
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.null }

// Text returns the textual content; empty for null values.
func (v Value) Text() string {
	if v.null {
		return ""
	}
	return v.text
}

// String renders the value for display, using the null sentinel for null.
func (v Value) String() string {
	if v.null {
		return NullText
	}
	return v.text
}

// EncodeMsgpack writes the value as a msgpack string, or nil when null.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if v.null {
		return enc.EncodeNil()
	}
	return enc.EncodeString(v.text)
}

// DecodeMsgpack reads a msgpack string or nil.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if code == msgpcode.Nil {
		if err := dec.DecodeNil(); err != nil {
			return err
		}
		v.text, v.null = "", true
		return nil
	}
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	v.text, v.null = s, false
	return nil
}

// MarshalJSON renders null values as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.null {
		return []byte("null"), nil
	}
	return json.Marshal(v.text)
}

// Row is one record, positionally aligned with a Schema.
type Row []Value

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// TextRow builds a Row from raw text values, mapping null sentinels.
func TextRow(values ...string) Row {
	row := make(Row, len(values))
	for i, s := range values {
		row[i] = FromText(s)
	}
	return row
}

// Canonicalize parses a value against the field's declared type and
// returns its canonical textual form. Null is always canonical. The
// canonical forms are stable: canonicalizing a canonical value yields it
// unchanged, which is what makes row encoding idempotent.
func Canonicalize(f Field, v Value) (Value, error) {
	if v.null {
		return v, nil
	}
	var (
		text string
		err  error
	)
	switch f.Type {
	case TypeText:
		return v, nil
	case TypeInteger:
		text, err = canonInteger(v.text)
	case TypeReal:
		text, err = canonReal(v.text)
	case TypeBoolean:
		text, err = canonBoolean(v.text)
	case TypeDate:
		text, err = canonDate(v.text)
	case TypeDatetime:
		text, err = canonDatetime(v.text)
	case TypeTimestamp:
		text, err = canonTimestamp(v.text)
	case TypeDecimal:
		text, err = canonDecimal(v.text, f.EffectivePrecision(), f.EffectiveScale())
	case TypeBlob:
		text, err = canonBlob(v.text)
	default:
		return Value{}, fmt.Errorf("unknown field type %s", f.Type)
	}
	if err != nil {
		return Value{}, err
	}
	return Value{text: text}, nil
}

func canonInteger(s string) (string, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid integer %q", s)
	}
	return strconv.FormatInt(n, 10), nil
}

func canonReal(s string) (string, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("invalid real %q", s)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// canonBoolean accepts exactly "0" and "1".
func canonBoolean(s string) (string, error) {
	if s != "0" && s != "1" {
		return "", fmt.Errorf("invalid boolean %q (want 0 or 1)", s)
	}
	return s, nil
}

const dateLayout = "2006-01-02"

func canonDate(s string) (string, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	// Accept a full timestamp and keep the date part.
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", s)
	}
	return t.Format(dateLayout), nil
}

func canonDatetime(s string) (string, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", fmt.Errorf("invalid datetime %q", s)
	}
	return t.Format(time.RFC3339), nil
}

// canonTimestamp normalizes to UTC; DATETIME keeps the original offset.
func canonTimestamp(s string) (string, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp %q", s)
	}
	return t.UTC().Format(time.RFC3339), nil
}

// canonDecimal enforces the DECIMAL(p,s) digit budget: at most p-s digits
// before the point and at most s after, so the fixed-scale canonical form
// always re-parses within budget.
func canonDecimal(s string, precision, scale int) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid decimal %q", s)
	}
	fracDigits := 0
	if d.Exponent() < 0 {
		fracDigits = int(-d.Exponent())
	}
	if fracDigits > scale {
		return "", fmt.Errorf("decimal %q exceeds scale %d", s, scale)
	}
	intDigits := 0
	if intPart := d.Abs().Truncate(0); !intPart.IsZero() {
		intDigits = len(intPart.String())
	}
	if intDigits > precision-scale {
		return "", fmt.Errorf("decimal %q exceeds precision %d", s, precision)
	}
	return d.StringFixed(int32(scale)), nil
}

func canonBlob(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid base64 blob: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
