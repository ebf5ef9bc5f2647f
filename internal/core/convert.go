package core

// convert.go provides the scalar conversions shared by the normalizer, the
// stores and billing.
//
// Spreadsheet cells arrive as loosely formatted text:
//   - Currency symbols and thousand separators in numbers (₹1,250.00, Rs. 40)
//   - Accounting negatives ("(12.50)")
//   - Excel formula prefixes (="value")
//   - Expiry dates written as month/year (03/27, Mar-2027)
//
// ParseNumber and ParseDate report failure through their bool result so the
// caller can apply its own fallback.

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericPrefix matches the longest leading number in a string, the way a
// spreadsheet user expects "12 strips" or "500mg" to read as a number.
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// currencyPrefix matches rupee abbreviations written before an amount.
var currencyPrefix = regexp.MustCompile(`(?i)^(rs\.?|inr)\s*`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "02-01-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"Jan 2, 2006", "2 Jan 2006", "2-Jan-2006", "02-Jan-06",
		"20060102",
	}
	// Expiry dates on pharma stock are usually month and year only.
	monthYearLayouts = []string{
		"01/2006", "1/2006", "01-2006", "1-2006", "2006-01",
		"Jan-2006", "Jan 2006", "January 2006", "Jan-06", "Jan 06",
		"01/06", "1/06", "01-06", "1-06",
	}
)

// ParseNumber converts a cell value to a float64.
//
// Strings are cleaned of currency markers, thousands separators and
// accounting parentheses, then read up to the first non-numeric character.
// It reports false when no number can be read or the result is NaN/Inf.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		return parseNumericString(n)
	case time.Time:
		return 0, false
	case fmt.Stringer:
		return parseNumericString(n.String())
	}
	return 0, false
}

func parseNumericString(s string) (float64, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = currencyPrefix.ReplaceAllString(s, "")
	s = strings.NewReplacer("₹", "", "$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)

	m := numericPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if isNegative {
		f = -f
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDate converts a cell value to a date.
// Month/year values resolve to the last day of that month, which is when
// stock labelled with them expires.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case string:
		return parseDateString(d)
	}
	return time.Time{}, false
}

func parseDateString(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	for _, layout := range monthYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t.AddDate(0, 1, -1), true
		}
	}

	return time.Time{}, false
}

// FormatScalar renders a field value as text. It is the form used for index
// keys and for multi-token search refinement.
func FormatScalar(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case int32:
		return strconv.FormatInt(int64(s), 10)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	case time.Time:
		return s.Format("2006-01-02")
	case []string:
		return strings.Join(s, ",")
	case []any:
		parts := make([]string, len(s))
		for i, p := range s {
			parts[i] = FormatScalar(p)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

// IndexValue returns the case-folded index key for a field value.
// Absent (nil) values are not indexed.
func IndexValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	return strings.ToLower(FormatScalar(v)), true
}

// NormalizeHeader folds a column header for synonym matching: lowercase,
// with everything outside [a-z0-9] removed.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	var b strings.Builder
	b.Grow(len(h))
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
