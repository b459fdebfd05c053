package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

func TestMerge_PairsRowsByKey(t *testing.T) {
	left := makeRecords([]string{"id", "t"},
		map[string]int64{"id": 1, "t": 10},
		map[string]int64{"id": 2, "t": 20},
	)
	right := makeRecords([]string{"id", "t"},
		map[string]int64{"id": 1, "t": 15},
		map[string]int64{"id": 2, "t": 25},
	)
	mapper := NewColumnMapper().MapLeft("t", "t_l").MapRight("t", "t_r")

	merged, err := Merge(left, right, []KeyPair{Key("id")}, MergeInner, mapper)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "t_l", "t_r"}, merged.ColumnNames())
	assert.Equal(t, []map[string]int64{
		{"id": 1, "t_l": 10, "t_r": 15},
		{"id": 2, "t_l": 20, "t_r": 25},
	}, rowMaps(merged))
}

func TestMerge_Kinds(t *testing.T) {
	left := makeRecords([]string{"key", "x"},
		map[string]int64{"key": 1, "x": 10},
		map[string]int64{"key": 2, "x": 20},
		map[string]int64{"key": 4, "x": 40},
	)
	right := makeRecords([]string{"key", "y"},
		map[string]int64{"key": 1, "y": 100},
		map[string]int64{"key": 3, "y": 300},
	)

	tests := []struct {
		name string
		kind MergeKind
		want []map[string]int64
	}{
		{
			name: "inner drops both sides",
			kind: MergeInner,
			want: []map[string]int64{
				{"key": 1, "x": 10, "y": 100},
			},
		},
		{
			name: "left retains unmatched left rows",
			kind: MergeLeft,
			want: []map[string]int64{
				{"key": 1, "x": 10, "y": 100},
				{"key": 2, "x": 20},
				{"key": 4, "x": 40},
			},
		},
		{
			name: "right retains unmatched right rows",
			kind: MergeRight,
			want: []map[string]int64{
				{"key": 1, "x": 10, "y": 100},
				{"key": 3, "y": 300},
			},
		},
		{
			name: "outer retains both",
			kind: MergeOuter,
			want: []map[string]int64{
				{"key": 1, "x": 10, "y": 100},
				{"key": 2, "x": 20},
				{"key": 4, "x": 40},
				{"key": 3, "y": 300},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := Merge(left, right, []KeyPair{Key("key")}, tt.kind, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rowMaps(merged))
		})
	}
}

func TestMerge_AmbiguousMatchesExpandCartesianly(t *testing.T) {
	left := makeRecords([]string{"key", "x"},
		map[string]int64{"key": 1, "x": 1},
		map[string]int64{"key": 1, "x": 2},
	)
	right := makeRecords([]string{"key", "y"},
		map[string]int64{"key": 1, "y": 7},
		map[string]int64{"key": 1, "y": 8},
	)

	merged, err := Merge(left, right, []KeyPair{Key("key")}, MergeInner, nil)
	require.NoError(t, err)

	// Left order outer, right order inner.
	assert.Equal(t, []map[string]int64{
		{"key": 1, "x": 1, "y": 7},
		{"key": 1, "x": 1, "y": 8},
		{"key": 1, "x": 2, "y": 7},
		{"key": 1, "x": 2, "y": 8},
	}, rowMaps(merged))
}

func TestMerge_UnsetKeysNeverMatch(t *testing.T) {
	left := makeRecords([]string{"key", "x"},
		map[string]int64{"x": 1},
		map[string]int64{"key": 5, "x": 2},
	)
	right := makeRecords([]string{"key", "y"},
		map[string]int64{"y": 10},
		map[string]int64{"key": 5, "y": 20},
	)

	inner, err := Merge(left, right, []KeyPair{Key("key")}, MergeInner, nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"key": 5, "x": 2, "y": 20},
	}, rowMaps(inner))

	outer, err := Merge(left, right, []KeyPair{Key("key")}, MergeOuter, nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"x": 1},
		{"key": 5, "x": 2, "y": 20},
		{"y": 10},
	}, rowMaps(outer))
}

func TestMerge_MultiColumnKeys(t *testing.T) {
	left := makeRecords([]string{"pid", "tid", "x"},
		map[string]int64{"pid": 1, "tid": 2, "x": 10},
		map[string]int64{"pid": 1, "tid": 3, "x": 11},
	)
	right := makeRecords([]string{"pid", "tid", "y"},
		map[string]int64{"pid": 1, "tid": 2, "y": 20},
		map[string]int64{"pid": 2, "tid": 2, "y": 21},
	)

	merged, err := Merge(left, right, []KeyPair{Key("pid"), Key("tid")}, MergeInner, nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"pid": 1, "tid": 2, "x": 10, "y": 20},
	}, rowMaps(merged))
}

func TestMerge_DifferentKeyNames(t *testing.T) {
	left := makeRecords([]string{"source_timestamp", "x"},
		map[string]int64{"source_timestamp": 7, "x": 1},
	)
	right := makeRecords([]string{"stamp", "y"},
		map[string]int64{"stamp": 7, "y": 2},
	)

	merged, err := Merge(left, right,
		[]KeyPair{{Left: "source_timestamp", Right: "stamp"}}, MergeOuter, nil)
	require.NoError(t, err)

	// The key surfaces once, under the left name.
	assert.Equal(t, []string{"source_timestamp", "x", "y"}, merged.ColumnNames())
	assert.Equal(t, []map[string]int64{
		{"source_timestamp": 7, "x": 1, "y": 2},
	}, rowMaps(merged))
}

func TestMerge_UnmatchedRightCarriesKeyUnderLeftName(t *testing.T) {
	left := makeRecords([]string{"source_timestamp", "x"},
		map[string]int64{"source_timestamp": 1, "x": 1},
	)
	right := makeRecords([]string{"stamp", "y"},
		map[string]int64{"stamp": 9, "y": 2},
	)

	merged, err := Merge(left, right,
		[]KeyPair{{Left: "source_timestamp", Right: "stamp"}}, MergeRight, nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"source_timestamp": 9, "y": 2},
	}, rowMaps(merged))
}

func TestMerge_Errors(t *testing.T) {
	left := makeRecords([]string{"key", "v"}, map[string]int64{"key": 1, "v": 2})
	right := makeRecords([]string{"key", "v"}, map[string]int64{"key": 1, "v": 3})

	_, err := Merge(left, right, nil, MergeInner, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = Merge(left, right, []KeyPair{Key("missing")}, MergeInner, nil)
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	_, err = Merge(left, right, []KeyPair{Key("key")}, MergeKind("cross"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	// Both sides carry a non-key column v; without a mapper the merged
	// name is ambiguous.
	_, err = Merge(left, right, []KeyPair{Key("key")}, MergeInner, nil)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	mapper := NewColumnMapper().MapRight("v", "v_r")
	merged, err := Merge(left, right, []KeyPair{Key("key")}, MergeInner, mapper)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"key": 1, "v": 2, "v_r": 3},
	}, rowMaps(merged))
}

func TestMerge_InnerIsSymmetric(t *testing.T) {
	left := makeRecords([]string{"id", "a"},
		map[string]int64{"id": 1, "a": 1},
		map[string]int64{"id": 1, "a": 2},
		map[string]int64{"id": 2, "a": 3},
		map[string]int64{"id": 9, "a": 4},
	)
	right := makeRecords([]string{"id", "b"},
		map[string]int64{"id": 1, "b": 5},
		map[string]int64{"id": 2, "b": 6},
		map[string]int64{"id": 2, "b": 7},
		map[string]int64{"id": 8, "b": 8},
	)

	ab, err := Merge(left, right, []KeyPair{Key("id")}, MergeInner, nil)
	require.NoError(t, err)
	ba, err := Merge(right, left, []KeyPair{Key("id")}, MergeInner, nil)
	require.NoError(t, err)

	// Same pairs regardless of side, up to row and column order.
	assert.ElementsMatch(t, rowMaps(ab), rowMaps(ba))
	assert.Equal(t, 4, ab.Len())
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	left := makeRecords([]string{"key", "x"}, map[string]int64{"key": 1, "x": 2})
	right := makeRecords([]string{"key", "y"}, map[string]int64{"key": 1, "y": 3})
	leftBefore := left.Clone()
	rightBefore := right.Clone()

	_, err := Merge(left, right, []KeyPair{Key("key")}, MergeOuter, nil)
	require.NoError(t, err)

	assert.True(t, left.Equal(leftBefore))
	assert.True(t, right.Equal(rightBefore))
}
