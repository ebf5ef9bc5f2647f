package core

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   float64
		wantOK bool
	}{
		// Plain numbers
		{name: "integer string", input: "123", want: 123, wantOK: true},
		{name: "zero", input: "0", want: 0, wantOK: true},
		{name: "negative decimal", input: "-456.78", want: -456.78, wantOK: true},
		{name: "leading dot", input: ".5", want: 0.5, wantOK: true},
		{name: "surrounded by whitespace", input: "  999.99  ", want: 999.99, wantOK: true},
		{name: "scientific notation", input: "1.5e3", want: 1500, wantOK: true},

		// Currency and separators
		{name: "rupee symbol with separators", input: "₹1,250.00", want: 1250, wantOK: true},
		{name: "rs abbreviation", input: "Rs. 40", want: 40, wantOK: true},
		{name: "inr abbreviation", input: "INR 99.5", want: 99.5, wantOK: true},
		{name: "dollar amount", input: "$1,234.56", want: 1234.56, wantOK: true},
		{name: "lakh grouping", input: "1,00,000", want: 100000, wantOK: true},
		{name: "accounting negative", input: "(12.50)", want: -12.5, wantOK: true},

		// Leading number with trailing text
		{name: "unit suffix", input: "500mg", want: 500, wantOK: true},
		{name: "count with words", input: "12 strips", want: 12, wantOK: true},
		{name: "excel text formula", input: `="42"`, want: 42, wantOK: true},

		// Not numbers
		{name: "empty string", input: "", wantOK: false},
		{name: "only whitespace", input: "   ", wantOK: false},
		{name: "words", input: "abc", wantOK: false},
		{name: "NaN text", input: "NaN", wantOK: false},
		{name: "Infinity text", input: "Infinity", wantOK: false},
		{name: "overflow", input: "1e400", wantOK: false},
		{name: "nil", input: nil, wantOK: false},
		{name: "NaN float", input: math.NaN(), wantOK: false},
		{name: "infinite float", input: math.Inf(1), wantOK: false},
		{name: "time value", input: time.Now(), wantOK: false},
		{name: "bool", input: true, wantOK: false},

		// Native numeric types
		{name: "float64", input: 12.5, want: 12.5, wantOK: true},
		{name: "int", input: 7, want: 7, wantOK: true},
		{name: "int64", input: int64(-3), want: -3, wantOK: true},
		{name: "json number", input: json.Number("3.5"), want: 3.5, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseNumber(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string // 2006-01-02
		wantOK bool
	}{
		// Full dates
		{name: "ISO", input: "2027-03-15", want: "2027-03-15", wantOK: true},
		{name: "ISO with slashes", input: "2027/03/15", want: "2027-03-15", wantOK: true},
		{name: "day first slashes", input: "15/03/2027", want: "2027-03-15", wantOK: true},
		{name: "day first dashes", input: "15-03-2027", want: "2027-03-15", wantOK: true},
		{name: "day first dots", input: "15.03.2027", want: "2027-03-15", wantOK: true},
		{name: "day month name", input: "15-Mar-2027", want: "2027-03-15", wantOK: true},
		{name: "compact", input: "20240115", want: "2024-01-15", wantOK: true},
		{name: "two digit year", input: "1/5/24", want: "2024-05-01", wantOK: true},
		{name: "RFC3339", input: "2025-06-01T10:00:00Z", want: "2025-06-01", wantOK: true},

		// Month and year resolve to month end
		{name: "month/yy", input: "03/27", want: "2027-03-31", wantOK: true},
		{name: "month/yyyy", input: "12/2030", want: "2030-12-31", wantOK: true},
		{name: "leap february", input: "02/2028", want: "2028-02-29", wantOK: true},
		{name: "month name and year", input: "Mar-2027", want: "2027-03-31", wantOK: true},
		{name: "full month name", input: "April 2026", want: "2026-04-30", wantOK: true},
		{name: "year-month", input: "2027-03", want: "2027-03-31", wantOK: true},

		// Failures
		{name: "empty", input: "", wantOK: false},
		{name: "garbage", input: "soon", wantOK: false},
		{name: "number", input: 42, wantOK: false},
		{name: "zero time", input: time.Time{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDate(%v) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestParseDate_TwoDigitYearPivot(t *testing.T) {
	got, ok := ParseDate("1/1/99")
	if !ok {
		t.Fatal("ParseDate(1/1/99) failed")
	}
	if got.Year() != 1999 {
		t.Errorf("year = %d, want 1999", got.Year())
	}

	got, ok = ParseDate("1/1/30")
	if !ok {
		t.Fatal("ParseDate(1/1/30) failed")
	}
	if got.Year() != 2030 {
		t.Errorf("year = %d, want 2030", got.Year())
	}
}

// ----------------------------------------------------------------------------
// FormatScalar / IndexValue Tests
// ----------------------------------------------------------------------------

func TestFormatScalar(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "Paracetamol", "Paracetamol"},
		{"whole float", 10.0, "10"},
		{"fraction", 12.5, "12.5"},
		{"int", 3, "3"},
		{"int64", int64(42), "42"},
		{"bool", true, "true"},
		{"json number", json.Number("7.25"), "7.25"},
		{"time", time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC), "2027-03-31"},
		{"string slice", []string{"fever", "pain"}, "fever,pain"},
		{"any slice", []any{"a", 1.5}, "a,1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatScalar(tt.input); got != tt.want {
				t.Errorf("FormatScalar(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIndexValue(t *testing.T) {
	if _, ok := IndexValue(nil); ok {
		t.Error("IndexValue(nil) should report not indexed")
	}
	if got, ok := IndexValue("ParaCetamol"); !ok || got != "paracetamol" {
		t.Errorf("IndexValue(ParaCetamol) = %q, %v", got, ok)
	}
	if got, ok := IndexValue(500.0); !ok || got != "500" {
		t.Errorf("IndexValue(500.0) = %q, %v", got, ok)
	}
	if got, ok := IndexValue(""); !ok || got != "" {
		t.Errorf("IndexValue(\"\") = %q, %v; empty strings are indexed", got, ok)
	}
}

// ----------------------------------------------------------------------------
// NormalizeHeader Tests
// ----------------------------------------------------------------------------

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Batch No.", "batchno"},
		{"batch_no", "batchno"},
		{"  MRP ", "mrp"},
		{"Closing_Stock", "closingstock"},
		{"GST %", "gst"},
		{"DL No. (20B)", "dlno20b"},
		{"P-Rate", "prate"},
		{"", ""},
		{"ब्रांड", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeHeader(tt.input); got != tt.want {
				t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// Basic cleaning
		{name: "simple string unchanged", input: "hello", want: "hello"},
		{name: "empty string", input: "", want: ""},

		// Whitespace trimming
		{name: "leading whitespace", input: "  hello", want: "hello"},
		{name: "trailing whitespace", input: "hello  ", want: "hello"},

		// Excel formula prefix handling
		{name: "Excel formula with quotes", input: `="hello"`, want: "hello"},
		{name: "Excel formula batch as text", input: `="0012"`, want: "0012"},
		{name: "bare equals sign", input: "=SUM(A1)", want: "SUM(A1)"},

		// Quote handling
		{name: "double quotes removed", input: `"hello"`, want: "hello"},
		{name: "single quotes removed", input: "'hello'", want: "hello"},
		{name: "mixed quotes removed outer only", input: `"hello'`, want: "hello"},
		{name: "leading single quote (Excel text prefix)", input: "'12345", want: "12345"},

		// Combined cleaning
		{name: "whitespace and quotes", input: `  "hello"  `, want: "hello"},
		{name: "excel formula with whitespace", input: `  ="test"  `, want: "test"},

		// Edge cases
		{name: "only quotes", input: `""`, want: ""},
		{name: "equals with quoted number", input: `="0"`, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanCell(tt.input)
			if got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
