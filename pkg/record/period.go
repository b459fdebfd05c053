package record

import (
	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// ColumnPeriod is the output column holding activation intervals.
const ColumnPeriod = "period"

// Period computes the interval between consecutive activations recorded in
// one timestamp column.
type Period struct {
	records *Records
	column  string
}

// NewPeriod builds a period view over records. An empty column name selects
// the schema's first column.
func NewPeriod(records *Records, column string) (*Period, error) {
	if records.Columns().Len() == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "period requires a table with columns")
	}
	if column == "" {
		column = records.Columns().At(0).Name()
	}
	if !records.Columns().Has(column) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
	}
	return &Period{records: records, column: column}, nil
}

// ToRecords emits one row per consecutive pair of set timestamps: the
// earlier timestamp under the target column and the distance to the next
// one under ColumnPeriod. Rows with the target column unset are skipped, so
// the pairing bridges across them.
func (p *Period) ToRecords() *Records {
	column, _ := p.records.Columns().Get(p.column)
	out := NewRecords(column.Value(), NewColumnValue(ColumnPeriod))
	var prev int64
	havePrev := false
	p.records.Each(func(_ int, rec *Record) bool {
		v, ok := rec.Get(p.column)
		if !ok {
			return true
		}
		if havePrev {
			out.Append(NewRecord(map[string]int64{
				p.column:     prev,
				ColumnPeriod: v - prev,
			}))
		}
		prev = v
		havePrev = true
		return true
	})
	return out
}
