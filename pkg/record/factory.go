package record

// Construction entry points for ingestion collaborators feeding decoded
// trace rows into tables.

// BuildRecords creates a table under the declared schema and appends one row
// per raw batch entry. Fields outside the declared schema auto-register
// after the declared columns, in first-population order.
func BuildRecords(columns []ColumnValue, rows []map[string]int64) *Records {
	records := NewRecords(columns...)
	for _, row := range rows {
		records.Append(NewRecord(row))
	}
	return records
}
