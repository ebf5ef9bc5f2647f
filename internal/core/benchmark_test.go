package core

import (
	"context"
	"fmt"
	"testing"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkParseNumber benchmarks numeric cell conversion.
// This is a hot path during import for every numeric column.
func BenchmarkParseNumber(b *testing.B) {
	testCases := []string{
		"123",
		"-456.78",
		"₹1,250.00",
		"Rs. 40",
		"(123.45)",
		"1,00,000",
		"500mg",
		"  999.99  ",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseNumber(tc)
		}
	}
}

// BenchmarkParseDate benchmarks expiry parsing, including the month/year
// forms that fall through every full-date layout first.
func BenchmarkParseDate(b *testing.B) {
	testCases := []string{
		"2027-03-15",
		"15/03/2027",
		"1/5/24",
		"03/27",
		"Mar-2027",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseDate(tc)
		}
	}
}

// BenchmarkNormalizeHeader benchmarks header folding, run once per column
// per row.
func BenchmarkNormalizeHeader(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NormalizeHeader("Batch No. (Lot)")
	}
}

// ============================================================================
// Normalizer and Search Benchmarks
// ============================================================================

// BenchmarkNormalize benchmarks a 1000-row inventory sheet.
func BenchmarkNormalize(b *testing.B) {
	rows := make([]RawRow, 1000)
	for i := range rows {
		rows[i] = RawRow{
			{Header: "Product Name", Value: fmt.Sprintf("Item %d", i)},
			{Header: "Mfg", Value: "Cipla"},
			{Header: "Batch No.", Value: fmt.Sprintf("B%04d", i)},
			{Header: "Exp", Value: "12/2027"},
			{Header: "MRP", Value: "₹45.50"},
			{Header: "Rate", Value: "38"},
			{Header: "GST %", Value: "12"},
			{Header: "Qty", Value: "120"},
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Normalize(rows, KindProduct)
	}
}

// BenchmarkSearch benchmarks a refined multi-field search over 5000 records.
func BenchmarkSearch(b *testing.B) {
	values := make([]Values, 5000)
	for i := range values {
		values[i] = Values{
			FieldName:         fmt.Sprintf("Paracetamol %d", i),
			FieldBatch:        fmt.Sprintf("P%05d", i),
			FieldManufacturer: "Cipla",
		}
	}
	table := newMemTable(values...)
	fields := []string{FieldName, FieldBatch, FieldManufacturer}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Search(ctx, table, "para 49", fields, 50)
	}
}
