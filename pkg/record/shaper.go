package record

import (
	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// Shaper trims a table to the window of interest before downstream
// consumption. Shapers are pure and idempotent: applying one to its own
// output returns an equal table.
type Shaper interface {
	Apply(records *Records) (*Records, error)
}

// Clip retains the rows whose time column value t satisfies
// Start <= t < End. Rows with the column unset fall outside every window.
type Clip struct {
	// Column is the time column to window on. Empty selects the schema's
	// default sequencing column.
	Column string
	Start  int64
	End    int64
}

// NewClip builds a Clip shaper over the half-open window [start, end).
func NewClip(column string, start, end int64) Clip {
	return Clip{Column: column, Start: start, End: end}
}

// Apply implements Shaper.
func (c Clip) Apply(records *Records) (*Records, error) {
	column := c.Column
	if column == "" {
		def, ok := records.columns.DefaultSequenceColumn()
		if !ok {
			return nil, errors.New(errors.ErrorTypeSchema, "no sequencing column to clip on")
		}
		column = def
	} else if !records.columns.Has(column) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
	}
	return records.Filter(func(rec *Record) bool {
		v, ok := rec.Get(column)
		return ok && v >= c.Start && v < c.End
	}), nil
}

// Strip removes the leading and the trailing run of rows in which every
// target column is unset. Rows between the first and last row holding any
// target value survive, including interior all-unset rows.
type Strip struct {
	Columns []string
}

// NewStrip builds a Strip shaper over the target columns.
func NewStrip(columns ...string) Strip {
	return Strip{Columns: columns}
}

// Apply implements Shaper.
func (s Strip) Apply(records *Records) (*Records, error) {
	if len(s.Columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "strip requires at least one target column")
	}
	for _, column := range s.Columns {
		if !records.columns.Has(column) {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
		}
	}
	anySet := func(rec *Record) bool {
		for _, column := range s.Columns {
			if rec.Has(column) {
				return true
			}
		}
		return false
	}
	first, last := -1, -1
	for i, rec := range records.rows {
		if anySet(rec) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return newRecordsFrom(records.columns.Clone(), nil), nil
	}
	rows := make([]*Record, last-first+1)
	copy(rows, records.rows[first:last+1])
	return newRecordsFrom(records.columns.Clone(), rows), nil
}
