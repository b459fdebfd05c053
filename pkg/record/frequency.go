package record

import (
	"sort"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// ColumnFrequency is the output column holding per-window row counts.
const ColumnFrequency = "frequency"

// DefaultFrequencyInterval is one second in nanoseconds.
const DefaultFrequencyInterval int64 = 1_000_000_000

// Frequency counts how many rows fall into fixed time windows over one
// timestamp column.
type Frequency struct {
	records *Records
	column  string
}

// NewFrequency builds a frequency view over records. An empty column name
// selects the schema's first column.
func NewFrequency(records *Records, column string) (*Frequency, error) {
	if records.Columns().Len() == 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "frequency requires a table with columns")
	}
	if column == "" {
		column = records.Columns().At(0).Name()
	}
	if !records.Columns().Has(column) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
	}
	return &Frequency{records: records, column: column}, nil
}

// ToRecords counts rows per window of DefaultFrequencyInterval starting at
// the first set timestamp.
func (f *Frequency) ToRecords() *Records {
	base, ok := f.firstValue()
	if !ok {
		column, _ := f.records.Columns().Get(f.column)
		return NewRecords(column.Value(), NewColumnValue(ColumnFrequency))
	}
	return f.ToRecordsWith(base, DefaultFrequencyInterval)
}

// ToRecordsWith counts rows per window of the given width, with windows
// tiling the timeline from base in both directions. The output holds one row
// per non-empty window in ascending window order: the window start under the
// target column and the count under ColumnFrequency. Rows with the target
// column unset are skipped.
func (f *Frequency) ToRecordsWith(base, interval int64) *Records {
	if interval <= 0 {
		interval = DefaultFrequencyInterval
	}
	counts := make(map[int64]int64)
	f.records.Each(func(_ int, rec *Record) bool {
		v, ok := rec.Get(f.column)
		if !ok {
			return true
		}
		counts[windowStart(v, base, interval)]++
		return true
	})
	starts := make([]int64, 0, len(counts))
	for start := range counts {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	column, _ := f.records.Columns().Get(f.column)
	out := NewRecords(column.Value(), NewColumnValue(ColumnFrequency))
	for _, start := range starts {
		out.Append(NewRecord(map[string]int64{
			f.column:        start,
			ColumnFrequency: counts[start],
		}))
	}
	return out
}

func (f *Frequency) firstValue() (int64, bool) {
	var base int64
	found := false
	f.records.Each(func(_ int, rec *Record) bool {
		if v, ok := rec.Get(f.column); ok {
			base = v
			found = true
			return false
		}
		return true
	})
	return base, found
}

// windowStart floors v into the window grid anchored at base.
func windowStart(v, base, interval int64) int64 {
	offset := v - base
	idx := offset / interval
	if offset < 0 && offset%interval != 0 {
		idx--
	}
	return base + idx*interval
}
