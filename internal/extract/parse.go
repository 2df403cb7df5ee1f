package extract

import (
	"strconv"
	"strings"
	"time"
)

// ParsePrice reads an asking price in whole currency units from strings such
// as "450.000 €", "€1,250,000" or "450.000,50". Cents are dropped. A value
// without digits, or not greater than zero, is unknown and yields nil.
func ParsePrice(s string) *int64 {
	n, ok := parseNumber(s)
	if !ok || n < 1 {
		return nil
	}
	v := int64(n)
	return &v
}

// parseNumber extracts the first number in s, accepting either '.' or ','
// as the thousands or decimal separator.
func parseNumber(s string) (float64, bool) {
	tok := numberToken(s)
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(canonicalNumber(tok), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func numberToken(s string) string {
	rs := []rune(s)
	start := -1
	for i, r := range rs {
		if isDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	var b strings.Builder
	for i := start; i < len(rs); i++ {
		r := rs[i]
		switch {
		case isDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case isGroupSpace(r) && groupFollows(rs[i+1:]):
			// "450 000 €"
		default:
			return strings.TrimRight(b.String(), ".,")
		}
	}
	return strings.TrimRight(b.String(), ".,")
}

func isGroupSpace(r rune) bool {
	return r == ' ' || r == '\u00a0' || r == '\u202f'
}

// groupFollows reports whether rs starts with exactly three digits.
func groupFollows(rs []rune) bool {
	if len(rs) < 3 {
		return false
	}
	for _, r := range rs[:3] {
		if !isDigit(r) {
			return false
		}
	}
	return len(rs) == 3 || !isDigit(rs[3])
}

func canonicalNumber(tok string) string {
	lastDot := strings.LastIndexByte(tok, '.')
	lastComma := strings.LastIndexByte(tok, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		dec := byte('.')
		thousands := ","
		if lastComma > lastDot {
			dec, thousands = ',', "."
		}
		tok = strings.ReplaceAll(tok, thousands, "")
		return strings.Replace(tok, string(dec), ".", 1)
	case lastDot >= 0:
		return resolveSingleSeparator(tok, ".")
	case lastComma >= 0:
		return resolveSingleSeparator(tok, ",")
	default:
		return tok
	}
}

// resolveSingleSeparator treats sep as a thousands separator when it repeats
// or is followed by exactly three digits, and as the decimal point otherwise.
func resolveSingleSeparator(tok, sep string) string {
	if strings.Count(tok, sep) > 1 || len(tok)-strings.LastIndex(tok, sep)-1 == 3 {
		return strings.ReplaceAll(tok, sep, "")
	}
	return strings.Replace(tok, sep, ".", 1)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func parseCoordinate(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseTime returns nil for empty or unrecognized values. Values without a
// zone are read as UTC.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
