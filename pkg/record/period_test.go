package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kminoda/CARET-analyze/pkg/errors"
)

func TestPeriod_ToRecords(t *testing.T) {
	records := makeRecords([]string{"stamp"},
		map[string]int64{"stamp": 0},
		map[string]int64{"stamp": 2},
		map[string]int64{"stamp": 3},
	)

	period, err := NewPeriod(records, "stamp")
	require.NoError(t, err)

	out := period.ToRecords()
	assert.Equal(t, []string{"stamp", "period"}, out.ColumnNames())
	assert.Equal(t, []map[string]int64{
		{"stamp": 0, "period": 2},
		{"stamp": 2, "period": 1},
	}, rowMaps(out))
}

func TestPeriod_BridgesUnsetRows(t *testing.T) {
	records := makeRecords([]string{"stamp"},
		map[string]int64{"stamp": 0},
		map[string]int64{},
		map[string]int64{"stamp": 3},
	)

	period, err := NewPeriod(records, "")
	require.NoError(t, err)

	assert.Equal(t, []map[string]int64{
		{"stamp": 0, "period": 3},
	}, rowMaps(period.ToRecords()))
}

func TestPeriod_NeedsTwoActivations(t *testing.T) {
	single := makeRecords([]string{"stamp"}, map[string]int64{"stamp": 7})

	period, err := NewPeriod(single, "stamp")
	require.NoError(t, err)
	assert.Equal(t, 0, period.ToRecords().Len())

	empty := makeRecords([]string{"stamp"})
	period, err = NewPeriod(empty, "stamp")
	require.NoError(t, err)
	assert.Equal(t, 0, period.ToRecords().Len())
}

func TestPeriod_Errors(t *testing.T) {
	records := makeRecords([]string{"stamp"}, map[string]int64{"stamp": 1})

	_, err := NewPeriod(records, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))

	_, err = NewPeriod(NewRecords(), "")
	require.Error(t, err)
	assert.True(t, errors.IsSchema(err))
}
