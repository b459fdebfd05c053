package record

import (
	"strconv"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// groupKey encodes a row's values at the grouping columns. Unset values are
// encoded as UnsetValue so rows missing a grouping column gather under one
// dedicated key rather than failing.
func groupKey(rec *Record, columns []string) (string, []int64) {
	values := make([]int64, len(columns))
	buf := make([]byte, 0, 16*len(columns))
	for i, column := range columns {
		v := rec.GetDefault(column, UnsetValue)
		values[i] = v
		buf = strconv.AppendInt(buf, v, 10)
		buf = append(buf, 0x1f)
	}
	return string(buf), values
}

// GroupedRecords partitions a table by the values of one or more columns.
// Keys surface in first-occurrence order; every input row lands in exactly
// one group and the union of the groups is the input.
type GroupedRecords struct {
	columns []string
	keys    *UniqueList[string]
	values  map[string][]int64
	groups  map[string]*Records
}

// GroupBy partitions records by the values of the given columns in a single
// scan. Every column must be registered in the schema. Rows with a grouping
// column unset group together under the UnsetValue component for that
// column.
func GroupBy(records *Records, columns ...string) (*GroupedRecords, error) {
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "group by requires at least one column")
	}
	for _, column := range columns {
		if !records.columns.Has(column) {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q not found", column)
		}
	}
	g := &GroupedRecords{
		columns: append([]string(nil), columns...),
		keys:    NewUniqueList[string](),
		values:  make(map[string][]int64),
		groups:  make(map[string]*Records),
	}
	for _, rec := range records.rows {
		k, values := groupKey(rec, columns)
		if g.keys.Add(k) {
			g.values[k] = values
			g.groups[k] = newRecordsFrom(records.columns.Clone(), nil)
		}
		group := g.groups[k]
		group.rows = append(group.rows, rec)
	}
	return g, nil
}

// GroupColumns returns the grouping column names.
func (g *GroupedRecords) GroupColumns() []string {
	return append([]string(nil), g.columns...)
}

// Len returns the number of distinct keys.
func (g *GroupedRecords) Len() int { return g.keys.Len() }

// Keys returns the observed group keys in first-occurrence order. Each key
// holds one value per grouping column, with UnsetValue standing in for
// unset.
func (g *GroupedRecords) Keys() [][]int64 {
	keys := make([][]int64, g.keys.Len())
	for i := 0; i < g.keys.Len(); i++ {
		keys[i] = append([]int64(nil), g.values[g.keys.At(i)]...)
	}
	return keys
}

// Get returns the group holding the rows whose grouping columns equal key.
// Looking up a key that was never observed is a not-found error.
func (g *GroupedRecords) Get(key ...int64) (*Records, error) {
	if len(key) != len(g.columns) {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"group key holds %d values, want %d", len(key), len(g.columns))
	}
	buf := make([]byte, 0, 16*len(key))
	for _, v := range key {
		buf = strconv.AppendInt(buf, v, 10)
		buf = append(buf, 0x1f)
	}
	group, ok := g.groups[string(buf)]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no group for key %v", key)
	}
	return group, nil
}

// Union returns the concatenation of all groups in key order. The result
// holds exactly the rows of the grouped input.
func (g *GroupedRecords) Union() *Records {
	var out *Records
	for i := 0; i < g.keys.Len(); i++ {
		group := g.groups[g.keys.At(i)]
		if out == nil {
			out = newRecordsFrom(group.columns.Clone(), append([]*Record(nil), group.rows...))
			continue
		}
		out = out.Concat(group)
	}
	if out == nil {
		return newRecordsFrom(NewColumns(), nil)
	}
	return out
}
