package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

func groupFixture() *Records {
	return makeRecords([]string{"pid", "tid", "x"},
		map[string]int64{"pid": 1, "tid": 1, "x": 1},
		map[string]int64{"pid": 2, "tid": 1, "x": 2},
		map[string]int64{"pid": 1, "tid": 1, "x": 3},
		map[string]int64{"tid": 9, "x": 4},
	)
}

func TestGroupBy_KeysInFirstOccurrenceOrder(t *testing.T) {
	g, err := GroupBy(groupFixture(), "pid")
	require.NoError(t, err)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, [][]int64{{1}, {2}, {UnsetValue}}, g.Keys())
	assert.Equal(t, []string{"pid"}, g.GroupColumns())
}

func TestGroupBy_EveryRowInExactlyOneGroup(t *testing.T) {
	records := groupFixture()
	g, err := GroupBy(records, "pid")
	require.NoError(t, err)

	total := 0
	for _, key := range g.Keys() {
		group, err := g.Get(key...)
		require.NoError(t, err)
		total += group.Len()
	}
	assert.Equal(t, records.Len(), total)

	// The union of the groups is the input as a multiset.
	union := g.Union()
	assert.Equal(t, records.Len(), union.Len())
	assert.ElementsMatch(t, rowMaps(records), rowMaps(union))
}

func TestGroupBy_GroupContents(t *testing.T) {
	g, err := GroupBy(groupFixture(), "pid")
	require.NoError(t, err)

	group, err := g.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{"pid": 1, "tid": 1, "x": 1},
		{"pid": 1, "tid": 1, "x": 3},
	}, rowMaps(group))

	// Groups keep the full source schema.
	assert.Equal(t, []string{"pid", "tid", "x"}, group.ColumnNames())

	// Rows missing the grouping column gather under the unset key.
	unset, err := g.Get(UnsetValue)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{{"tid": 9, "x": 4}}, rowMaps(unset))
}

func TestGroupBy_MultipleColumns(t *testing.T) {
	g, err := GroupBy(groupFixture(), "pid", "tid")
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{1, 1}, {2, 1}, {UnsetValue, 9}}, g.Keys())

	group, err := g.Get(2, 1)
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{{"pid": 2, "tid": 1, "x": 2}}, rowMaps(group))
}

func TestGroupBy_Errors(t *testing.T) {
	records := groupFixture()

	_, err := GroupBy(records)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = GroupBy(records, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}

func TestGroupedRecords_GetErrors(t *testing.T) {
	g, err := GroupBy(groupFixture(), "pid")
	require.NoError(t, err)

	_, err = g.Get(42)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = g.Get(1, 2)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestGroupedRecords_UnionPreservesKeyOrder(t *testing.T) {
	g, err := GroupBy(groupFixture(), "pid")
	require.NoError(t, err)

	union := g.Union()
	assert.Equal(t, []map[string]int64{
		{"pid": 1, "tid": 1, "x": 1},
		{"pid": 1, "tid": 1, "x": 3},
		{"pid": 2, "tid": 1, "x": 2},
		{"tid": 9, "x": 4},
	}, rowMaps(union))
}
