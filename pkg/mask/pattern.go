package mask

import (
	"fmt"
	"strings"
)

// Pattern is a named redaction shape. All patterns preserve the value's
// rune count; they differ only in which runes survive.
type Pattern string

const (
	// PatternTail keeps the last VisibleChars runes, the default.
	PatternTail Pattern = "tail"
	// PatternStars redacts every rune.
	PatternStars Pattern = "stars"
	// PatternMiddle keeps the first and last rune. Values shorter than
	// three runes are fully redacted.
	PatternMiddle Pattern = "middle"
	// PatternFirst2Last2 keeps two runes at each end. Values of four runes
	// or fewer are fully redacted.
	PatternFirst2Last2 Pattern = "first2_last2"
	// PatternPartial applies the middle rule to the local part of an
	// email-shaped value, leaving the domain readable. Values without an
	// "@" fall back to the middle rule.
	PatternPartial Pattern = "partial"
)

// ParsePattern validates a pattern name. The empty string selects
// PatternTail.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PatternTail, nil
	case PatternTail, PatternStars, PatternMiddle, PatternFirst2Last2, PatternPartial:
		return p, nil
	default:
		return "", fmt.Errorf("mask: unknown pattern %q", s)
	}
}

func applyPattern(p Pattern, text string, maskChar rune, visible int) string {
	runes := []rune(text)
	switch p {
	case PatternStars:
		maskRange(runes, maskChar, 0, len(runes))
	case PatternMiddle:
		maskMiddle(runes, maskChar, 1)
	case PatternFirst2Last2:
		maskMiddle(runes, maskChar, 2)
	case PatternPartial:
		maskPartial(runes, maskChar)
	default: // PatternTail
		keep := visible
		if keep > len(runes) {
			keep = len(runes)
		}
		maskRange(runes, maskChar, 0, len(runes)-keep)
	}
	return string(runes)
}

func maskRange(runes []rune, maskChar rune, from, to int) {
	for i := from; i < to; i++ {
		runes[i] = maskChar
	}
}

// maskMiddle keeps edge runes at each end of the slice. Slices too short
// to keep both edges and still hide something are fully redacted.
func maskMiddle(runes []rune, maskChar rune, edge int) {
	if len(runes) <= 2*edge {
		maskRange(runes, maskChar, 0, len(runes))
		return
	}
	maskRange(runes, maskChar, edge, len(runes)-edge)
}

func maskPartial(runes []rune, maskChar rune) {
	at := -1
	for i, r := range runes {
		if r == '@' {
			at = i
			break
		}
	}
	if at < 0 {
		maskMiddle(runes, maskChar, 1)
		return
	}
	maskMiddle(runes[:at], maskChar, 1)
}
