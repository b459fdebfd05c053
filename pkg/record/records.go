package record

import (
	"sort"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// Records is an ordered row collection plus a column schema. Every row's
// populated fields are a subset of the schema; appending a row or setting a
// field through the table auto-registers columns the schema has not seen.
//
// Tables are built by appending. Every transform below returns a new table
// and leaves the receiver untouched; returned tables may share row storage
// with the receiver.
type Records struct {
	columns *Columns
	rows    []*Record
}

// NewRecords creates an empty table with the given schema.
func NewRecords(columns ...ColumnValue) *Records {
	return &Records{columns: NewColumns(columns...)}
}

// newRecordsFrom creates a table around an existing schema clone and row
// slice. Internal constructor for transforms.
func newRecordsFrom(columns *Columns, rows []*Record) *Records {
	return &Records{columns: columns, rows: rows}
}

// Columns returns the table schema. Callers must treat it as read-only;
// transforms clone the schema before changing it.
func (r *Records) Columns() *Columns { return r.columns }

// ColumnNames returns the schema's column names in order.
func (r *Records) ColumnNames() []string { return r.columns.Names() }

// Len returns the number of rows.
func (r *Records) Len() int { return len(r.rows) }

// At returns the row at position i.
func (r *Records) At(i int) *Record { return r.rows[i] }

// Each calls fn for every row in order until fn returns false. Iteration is
// restartable; the table is not modified.
func (r *Records) Each(fn func(i int, rec *Record) bool) {
	for i, rec := range r.rows {
		if !fn(i, rec) {
			return
		}
	}
}

// Append adds a row to the table. Populated columns the schema has not seen
// are registered at the end of the schema in lexical field order.
func (r *Records) Append(rec *Record) {
	for _, name := range rec.Columns() {
		if !r.columns.Has(name) {
			r.columns.Add(NewColumnValue(name))
		}
	}
	r.rows = append(r.rows, rec)
}

// SetAt populates one field of the row at position i, auto-registering the
// column if the schema has not seen it.
func (r *Records) SetAt(i int, column string, value int64) error {
	if i < 0 || i >= len(r.rows) {
		return errors.Newf(errors.ErrorTypeValidation, "row index %d out of range [0, %d)", i, len(r.rows))
	}
	if !r.columns.Has(column) {
		r.columns.Add(NewColumnValue(column))
	}
	r.rows[i].Set(column, value)
	return nil
}

// ColumnValues returns the values of one column in row order, skipping rows
// where it is unset.
func (r *Records) ColumnValues(column string) ([]int64, error) {
	if !r.columns.Has(column) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
	}
	values := make([]int64, 0, len(r.rows))
	for _, rec := range r.rows {
		if v, ok := rec.Get(column); ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// ColumnValuesOr returns the values of one column in row order, substituting
// def where the column is unset.
func (r *Records) ColumnValuesOr(column string, def int64) ([]int64, error) {
	if !r.columns.Has(column) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
	}
	values := make([]int64, len(r.rows))
	for i, rec := range r.rows {
		values[i] = rec.GetDefault(column, def)
	}
	return values, nil
}

// Project returns a new table holding only the named columns, in argument
// order. Every name must be registered in the schema.
func (r *Records) Project(columns ...string) (*Records, error) {
	values := make([]ColumnValue, 0, len(columns))
	for _, name := range columns {
		col, ok := r.columns.Get(name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", name)
		}
		values = append(values, col.Value())
	}
	keep := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		keep[name] = struct{}{}
	}
	rows := make([]*Record, len(r.rows))
	for i, rec := range r.rows {
		row := NewEmptyRecord()
		for _, name := range rec.Columns() {
			if _, ok := keep[name]; ok {
				v, _ := rec.Get(name)
				row.Set(name, v)
			}
		}
		rows[i] = row
	}
	return newRecordsFrom(NewColumns(values...), rows), nil
}

// DropColumns returns a new table without the named columns. Names the
// schema has not seen are ignored.
func (r *Records) DropColumns(columns ...string) *Records {
	schema := r.columns.Clone()
	schema.Drop(columns...)
	rows := make([]*Record, len(r.rows))
	for i, rec := range r.rows {
		row := rec.Clone()
		row.Drop(columns...)
		rows[i] = row
	}
	return newRecordsFrom(schema, rows)
}

// RenameColumns returns a new table with columns renamed per mapping. All
// renames apply simultaneously, so swapping two names is legal. Every source
// name must be registered; two columns renamed onto one target is a
// conflict.
func (r *Records) RenameColumns(mapping map[string]string) (*Records, error) {
	for old := range mapping {
		if !r.columns.Has(old) {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", old)
		}
	}
	rename := func(name string) string {
		if to, ok := mapping[name]; ok {
			return to
		}
		return name
	}
	values := make([]ColumnValue, 0, r.columns.Len())
	seen := make(map[string]struct{}, r.columns.Len())
	for i := 0; i < r.columns.Len(); i++ {
		col := r.columns.At(i)
		name := rename(col.Name())
		if _, dup := seen[name]; dup {
			return nil, errors.Newf(errors.ErrorTypeConflict, "column %q already exists", name)
		}
		seen[name] = struct{}{}
		values = append(values, col.Value().renamed(name))
	}
	rows := make([]*Record, len(r.rows))
	for i, rec := range r.rows {
		row := NewEmptyRecord()
		for _, name := range rec.Columns() {
			v, _ := rec.Get(name)
			row.Set(rename(name), v)
		}
		rows[i] = row
	}
	return newRecordsFrom(NewColumns(values...), rows), nil
}

// Concat returns a new table holding the receiver's rows followed by the
// other table's rows, under the union of the two schemas.
func (r *Records) Concat(other *Records) *Records {
	schema := r.columns.Clone()
	for i := 0; i < other.columns.Len(); i++ {
		schema.Add(other.columns.At(i).Value())
	}
	rows := make([]*Record, 0, len(r.rows)+len(other.rows))
	rows = append(rows, r.rows...)
	rows = append(rows, other.rows...)
	return newRecordsFrom(schema, rows)
}

// Filter returns a new table holding the rows for which pred reports true.
func (r *Records) Filter(pred func(rec *Record) bool) *Records {
	rows := make([]*Record, 0, len(r.rows))
	for _, rec := range r.rows {
		if pred(rec) {
			rows = append(rows, rec)
		}
	}
	return newRecordsFrom(r.columns.Clone(), rows)
}

// Sort returns a new table ordered by the values of one column. The sort is
// stable; rows with the column unset order after all set rows regardless of
// direction.
func (r *Records) Sort(column string, ascending bool) (*Records, error) {
	if !r.columns.Has(column) {
		return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
	}
	rows := make([]*Record, len(r.rows))
	copy(rows, r.rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return compareByColumn(rows[i], rows[j], column, ascending) < 0
	})
	return newRecordsFrom(r.columns.Clone(), rows), nil
}

// SortStable returns a new table ordered ascending by the given columns,
// most significant first. The sort is stable; per column, unset rows order
// after set rows.
func (r *Records) SortStable(columns ...string) (*Records, error) {
	for _, column := range columns {
		if !r.columns.Has(column) {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
		}
	}
	rows := make([]*Record, len(r.rows))
	copy(rows, r.rows)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, column := range columns {
			if c := compareByColumn(rows[i], rows[j], column, true); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return newRecordsFrom(r.columns.Clone(), rows), nil
}

// compareByColumn orders two rows by one column with unset rows last.
func compareByColumn(a, b *Record, column string, ascending bool) int {
	av, aok := a.Get(column)
	bv, bok := b.Get(column)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	case av == bv:
		return 0
	case av < bv:
		if ascending {
			return -1
		}
		return 1
	default:
		if ascending {
			return 1
		}
		return -1
	}
}

// Clone returns an independent deep copy of the table.
func (r *Records) Clone() *Records {
	rows := make([]*Record, len(r.rows))
	for i, rec := range r.rows {
		rows[i] = rec.Clone()
	}
	return newRecordsFrom(r.columns.Clone(), rows)
}

// Equal reports whether two tables register the same column names in the
// same order and hold pairwise equal rows.
func (r *Records) Equal(other *Records) bool {
	if !r.columns.Equal(other.columns) {
		return false
	}
	if len(r.rows) != len(other.rows) {
		return false
	}
	for i := range r.rows {
		if !r.rows[i].Equal(other.rows[i]) {
			return false
		}
	}
	return true
}
