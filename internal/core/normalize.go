package core

// Normalize maps raw spreadsheet rows onto the target schema for kind.
//
// Every row yields exactly one record. For each target field the first cell,
// in the row's column order, whose normalized header is a synonym of that
// field wins; later matching columns are ignored. Numeric fields that fail
// to parse take the schema fallback instead. Fields with no matching column
// keep their seeded default or stay absent.
//
// An unknown kind maps nothing, so each row becomes an empty record.
func Normalize(rows []RawRow, kind Kind) []Values {
	schema := SchemaFor(kind)
	out := make([]Values, len(rows))
	for i, row := range rows {
		out[i] = NormalizeRow(row, schema)
	}
	return out
}

// NormalizeRow maps a single row with an explicit schema.
func NormalizeRow(row RawRow, schema *ImportSchema) Values {
	rec := make(Values)
	if schema == nil {
		return rec
	}

	for field, def := range schema.Defaults {
		rec[field] = def
	}

	headers := make([]string, len(row))
	for i, c := range row {
		headers[i] = NormalizeHeader(c.Header)
	}

	for _, m := range schema.Fields {
		idx := -1
		for i, h := range headers {
			if schema.Matches(m.Field, h) {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		val := row[idx].Value
		if fallback, numeric := schema.Numeric[m.Field]; numeric {
			f, ok := ParseNumber(val)
			if !ok {
				f = fallback
			}
			val = f
		}
		rec[m.Field] = val
	}

	return rec
}
