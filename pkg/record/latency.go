package record

import (
	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// ColumnLatency is the output column holding interval durations.
const ColumnLatency = "latency"

// Latency computes the duration between two timestamp columns of a table,
// typically an interval start and end captured at two trace points.
type Latency struct {
	records     *Records
	startColumn string
	endColumn   string
}

// NewLatency builds a latency view over records. Empty column names select
// the schema's first and last column respectively.
func NewLatency(records *Records, startColumn, endColumn string) (*Latency, error) {
	if records.Columns().Len() == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "latency requires a table with columns")
	}
	if startColumn == "" {
		startColumn = records.Columns().At(0).Name()
	}
	if endColumn == "" {
		endColumn = records.Columns().At(records.Columns().Len() - 1).Name()
	}
	for _, column := range []string{startColumn, endColumn} {
		if !records.Columns().Has(column) {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
		}
	}
	return &Latency{records: records, startColumn: startColumn, endColumn: endColumn}, nil
}

// ToRecords returns one row per input row holding both timestamps: the start
// value and the end minus start duration under ColumnLatency. Rows missing
// either timestamp are skipped.
func (l *Latency) ToRecords() *Records {
	startValue, _ := l.records.Columns().Get(l.startColumn)
	out := NewRecords(startValue.Value(), NewColumnValue(ColumnLatency))
	l.records.Each(func(_ int, rec *Record) bool {
		start, ok := rec.Get(l.startColumn)
		if !ok {
			return true
		}
		end, ok := rec.Get(l.endColumn)
		if !ok {
			return true
		}
		out.Append(NewRecord(map[string]int64{
			l.startColumn: start,
			ColumnLatency: end - start,
		}))
		return true
	})
	return out
}
