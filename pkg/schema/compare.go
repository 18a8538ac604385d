package schema

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Compare orders two non-null values under the field's type: numerically
// for INTEGER/REAL/DECIMAL, chronologically for date/time types, lexically
// for TEXT, and false<true for BOOLEAN. BLOB has no ordering, and neither
// do nulls; both fail with an error.
func Compare(f Field, a, b Value) (int, error) {
	if !f.Type.Ordered() {
		return 0, fmt.Errorf("%s values have no ordering", f.Type)
	}
	if a.null || b.null {
		return 0, fmt.Errorf("null values have no ordering")
	}
	switch f.Type {
	case TypeText:
		return strings.Compare(a.text, b.text), nil

	case TypeInteger:
		x, err := strconv.ParseInt(a.text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", a.text)
		}
		y, err := strconv.ParseInt(b.text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", b.text)
		}
		return cmpInt64(x, y), nil

	case TypeReal:
		x, err := strconv.ParseFloat(a.text, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid real %q", a.text)
		}
		y, err := strconv.ParseFloat(b.text, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid real %q", b.text)
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil

	case TypeDecimal:
		x, err := decimal.NewFromString(a.text)
		if err != nil {
			return 0, fmt.Errorf("invalid decimal %q", a.text)
		}
		y, err := decimal.NewFromString(b.text)
		if err != nil {
			return 0, fmt.Errorf("invalid decimal %q", b.text)
		}
		return x.Cmp(y), nil

	case TypeBoolean:
		x, err := boolOrd(a.text)
		if err != nil {
			return 0, err
		}
		y, err := boolOrd(b.text)
		if err != nil {
			return 0, err
		}
		return cmpInt64(x, y), nil

	case TypeDate, TypeDatetime, TypeTimestamp:
		x, err := parseTime(f.Type, a.text)
		if err != nil {
			return 0, err
		}
		y, err := parseTime(f.Type, b.text)
		if err != nil {
			return 0, err
		}
		switch {
		case x.Before(y):
			return -1, nil
		case x.After(y):
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unknown field type %s", f.Type)
}

// Equal applies the null-aware equality rule: null equals only null, and
// never any non-null value. BLOB values compare by decoded bytes.
func Equal(f Field, a, b Value) (bool, error) {
	if a.null || b.null {
		return a.null && b.null, nil
	}
	switch f.Type {
	case TypeText:
		return a.text == b.text, nil
	case TypeBlob:
		x, err := base64.StdEncoding.DecodeString(a.text)
		if err != nil {
			return false, fmt.Errorf("invalid base64 blob: %w", err)
		}
		y, err := base64.StdEncoding.DecodeString(b.text)
		if err != nil {
			return false, fmt.Errorf("invalid base64 blob: %w", err)
		}
		return bytes.Equal(x, y), nil
	}
	c, err := Compare(f, a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

func cmpInt64(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func boolOrd(s string) (int64, error) {
	switch s {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, fmt.Errorf("invalid boolean %q (want 0 or 1)", s)
}

// parseTime parses a value of a temporal type, accepting the canonical
// layout plus RFC3339 for DATE (truncated to the day).
func parseTime(t DataType, s string) (time.Time, error) {
	switch t {
	case TypeDate:
		if v, err := time.Parse(dateLayout, s); err == nil {
			return v, nil
		}
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q", s)
		}
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC), nil
	case TypeDatetime:
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid datetime %q", s)
		}
		return v, nil
	case TypeTimestamp:
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
		}
		return v.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%s is not a temporal type", t)
}
