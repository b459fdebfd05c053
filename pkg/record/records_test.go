package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

// makeRecords builds a table with plain columns and one row per map.
func makeRecords(columns []string, rows ...map[string]int64) *Records {
	values := make([]ColumnValue, len(columns))
	for i, c := range columns {
		values[i] = NewColumnValue(c)
	}
	return BuildRecords(values, rows)
}

// rowMaps flattens a table into one map per row for comparison.
func rowMaps(r *Records) []map[string]int64 {
	out := make([]map[string]int64, 0, r.Len())
	r.Each(func(_ int, rec *Record) bool {
		m := map[string]int64{}
		for _, name := range rec.Columns() {
			v, _ := rec.Get(name)
			m[name] = v
		}
		out = append(out, m)
		return true
	})
	return out
}

func TestRecords_AppendAutoRegistersColumns(t *testing.T) {
	r := NewRecords(NewColumnValue("stamp", AttrSystemTime))

	r.Append(NewRecord(map[string]int64{"stamp": 1}))
	r.Append(NewRecord(map[string]int64{"stamp": 2, "addr": 7}))

	assert.Equal(t, []string{"stamp", "addr"}, r.ColumnNames())
	assert.Equal(t, 2, r.Len())

	// Registered descriptors keep their attributes.
	col, ok := r.Columns().Get("stamp")
	require.True(t, ok)
	assert.True(t, col.HasAttribute(AttrSystemTime))
}

func TestRecords_SetAt(t *testing.T) {
	r := makeRecords([]string{"stamp"}, map[string]int64{"stamp": 1})

	require.NoError(t, r.SetAt(0, "stamp", 5))
	require.NoError(t, r.SetAt(0, "latency", 100))

	assert.Equal(t, []string{"stamp", "latency"}, r.ColumnNames())
	assert.Equal(t, []map[string]int64{{"stamp": 5, "latency": 100}}, rowMaps(r))

	err := r.SetAt(3, "stamp", 1)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRecords_ColumnValues(t *testing.T) {
	r := makeRecords([]string{"stamp", "addr"},
		map[string]int64{"stamp": 1, "addr": 10},
		map[string]int64{"stamp": 2},
		map[string]int64{"addr": 30},
	)

	values, err := r.ColumnValues("addr")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 30}, values)

	withDefault, err := r.ColumnValuesOr("addr", UnsetValue)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, UnsetValue, 30}, withDefault)

	_, err = r.ColumnValues("missing")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	_, err = r.ColumnValuesOr("missing", 0)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

func TestRecords_Project(t *testing.T) {
	r := makeRecords([]string{"a", "b", "c"},
		map[string]int64{"a": 1, "b": 2, "c": 3},
		map[string]int64{"b": 20},
	)

	p, err := r.Project("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, p.ColumnNames())
	assert.Equal(t, []map[string]int64{{"a": 1, "c": 3}, {}}, rowMaps(p))

	// The source is untouched.
	assert.Equal(t, []string{"a", "b", "c"}, r.ColumnNames())

	_, err = r.Project("a", "missing")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

func TestRecords_DropColumns(t *testing.T) {
	r := makeRecords([]string{"a", "b"},
		map[string]int64{"a": 1, "b": 2},
	)

	d := r.DropColumns("b", "missing")
	assert.Equal(t, []string{"a"}, d.ColumnNames())
	assert.Equal(t, []map[string]int64{{"a": 1}}, rowMaps(d))
	assert.Equal(t, []map[string]int64{{"a": 1, "b": 2}}, rowMaps(r))
}

func TestRecords_RenameColumns(t *testing.T) {
	r := makeRecords([]string{"a", "b"},
		map[string]int64{"a": 1, "b": 2},
	)

	renamed, err := r.RenameColumns(map[string]string{"a": "b", "b": "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, renamed.ColumnNames())
	assert.Equal(t, []map[string]int64{{"b": 1, "a": 2}}, rowMaps(renamed))

	_, err = r.RenameColumns(map[string]string{"missing": "x"})
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	_, err = r.RenameColumns(map[string]string{"a": "b"})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestRecords_Concat(t *testing.T) {
	left := makeRecords([]string{"a"}, map[string]int64{"a": 1})
	right := makeRecords([]string{"a", "b"}, map[string]int64{"a": 2, "b": 3})

	c := left.Concat(right)
	assert.Equal(t, []string{"a", "b"}, c.ColumnNames())
	assert.Equal(t, []map[string]int64{{"a": 1}, {"a": 2, "b": 3}}, rowMaps(c))
	assert.Equal(t, 1, left.Len())
}

func TestRecords_Sort(t *testing.T) {
	r := makeRecords([]string{"stamp", "tag"},
		map[string]int64{"stamp": 3, "tag": 0},
		map[string]int64{"tag": 1},
		map[string]int64{"stamp": 1, "tag": 2},
		map[string]int64{"stamp": 3, "tag": 3},
	)

	asc, err := r.Sort("stamp", true)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"stamp": 1, "tag": 2},
		{"stamp": 3, "tag": 0},
		{"stamp": 3, "tag": 3},
		{"tag": 1},
	}, rowMaps(asc))

	desc, err := r.Sort("stamp", false)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"stamp": 3, "tag": 0},
		{"stamp": 3, "tag": 3},
		{"stamp": 1, "tag": 2},
		{"tag": 1},
	}, rowMaps(desc))

	// Input order is untouched.
	assert.Equal(t, int64(3), r.At(0).GetDefault("stamp", -1))

	_, err = r.Sort("missing", true)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

func TestRecords_SortStable(t *testing.T) {
	r := makeRecords([]string{"key", "stamp", "tag"},
		map[string]int64{"key": 2, "stamp": 1, "tag": 0},
		map[string]int64{"key": 1, "stamp": 2, "tag": 1},
		map[string]int64{"key": 1, "stamp": 2, "tag": 2},
		map[string]int64{"key": 1, "stamp": 1, "tag": 3},
	)

	sorted, err := r.SortStable("key", "stamp")
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"key": 1, "stamp": 1, "tag": 3},
		{"key": 1, "stamp": 2, "tag": 1},
		{"key": 1, "stamp": 2, "tag": 2},
		{"key": 2, "stamp": 1, "tag": 0},
	}, rowMaps(sorted))
}

func TestRecords_Filter(t *testing.T) {
	r := makeRecords([]string{"stamp"},
		map[string]int64{"stamp": 1},
		map[string]int64{"stamp": 5},
		map[string]int64{},
	)

	f := r.Filter(func(rec *Record) bool {
		v, ok := rec.Get("stamp")
		return ok && v >= 5
	})

	assert.Equal(t, []map[string]int64{{"stamp": 5}}, rowMaps(f))
	assert.Equal(t, 3, r.Len())
}

func TestRecords_Equal(t *testing.T) {
	a := makeRecords([]string{"x", "y"}, map[string]int64{"x": 1, "y": 0})
	b := makeRecords([]string{"x", "y"}, map[string]int64{"x": 1, "y": 0})
	assert.True(t, a.Equal(b))

	// Zero is set; leaving it out is a different row.
	c := makeRecords([]string{"x", "y"}, map[string]int64{"x": 1})
	assert.False(t, a.Equal(c))

	// Schema order participates in table equality.
	d := makeRecords([]string{"y", "x"}, map[string]int64{"x": 1, "y": 0})
	assert.False(t, a.Equal(d))
}

func TestRecords_EachStopsEarly(t *testing.T) {
	r := makeRecords([]string{"x"},
		map[string]int64{"x": 1},
		map[string]int64{"x": 2},
		map[string]int64{"x": 3},
	)

	var seen []int64
	r.Each(func(_ int, rec *Record) bool {
		v, _ := rec.Get("x")
		seen = append(seen, v)
		return len(seen) < 2
	})

	assert.Equal(t, []int64{1, 2}, seen)
}

func TestRecords_CloneIsIndependent(t *testing.T) {
	r := makeRecords([]string{"x"}, map[string]int64{"x": 1})
	cp := r.Clone()

	require.NoError(t, cp.SetAt(0, "x", 99))
	cp.Append(NewRecord(map[string]int64{"x": 2, "y": 3}))

	assert.Equal(t, []map[string]int64{{"x": 1}}, rowMaps(r))
	assert.Equal(t, []string{"x"}, r.ColumnNames())
}
