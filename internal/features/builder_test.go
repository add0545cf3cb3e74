package features

import (
	"testing"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"user_id", "timestamp", "group", "landing_page", "converted"}

func newTable(t *testing.T, rows [][]string) *experiment.Table {
	t.Helper()
	table, err := experiment.NewTable(columns, rows)
	require.NoError(t, err)
	return table
}

func newBuilder(lenient bool) *Builder {
	return NewBuilder(Options{LenientGroupLabels: lenient}, internal.NewNopLogger())
}

func column(t *testing.T, table *experiment.Table, name string) []string {
	t.Helper()
	values, err := table.Column(name)
	require.NoError(t, err)
	return values
}

func TestBuild(t *testing.T) {
	raw := newTable(t, [][]string{
		{"u1", "2023-01-02 09:15:00", "control", "old_page", "0"},
		{"u2", "2023-01-08 23:59:59", "treatment", "new_page", "1"},
		{"u3", "2023-01-02T00:30:00Z", "treatment", "new_page", "0"},
	})
	before := raw.Fingerprint()

	fs, err := newBuilder(false).Build(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"Monday", "Sunday"}, fs.Schema.DayCategories)
	assert.Equal(t, append(append([]string{}, columns...),
		"hour", "day_of_week", "day_Monday", "day_Sunday", "ab_group", "intercept"), fs.Table.Columns())

	assert.Equal(t, []string{"9", "23", "0"}, column(t, fs.Table, "hour"))
	assert.Equal(t, []string{"Monday", "Sunday", "Monday"}, column(t, fs.Table, "day_of_week"))
	assert.Equal(t, []string{"1", "0", "1"}, column(t, fs.Table, "day_Monday"))
	assert.Equal(t, []string{"0", "1", "0"}, column(t, fs.Table, "day_Sunday"))
	assert.Equal(t, []string{"0", "1", "1"}, column(t, fs.Table, "ab_group"))
	assert.Equal(t, []string{"1", "1", "1"}, column(t, fs.Table, "intercept"))

	assert.Equal(t, before, raw.Fingerprint(), "input table must not change")
	assert.Equal(t, 5, len(raw.Columns()))
}

func TestBuild_IndicatorsMatchDistinctDays(t *testing.T) {
	var rows [][]string
	for day := 2; day <= 8; day++ {
		rows = append(rows, []string{"u", "2023-01-0" + string(rune('0'+day)) + " 12:00:00", "control", "old_page", "0"})
	}
	fs, err := newBuilder(false).Build(newTable(t, rows))
	require.NoError(t, err)

	require.Len(t, fs.Schema.DayCategories, 7)
	assert.IsIncreasing(t, fs.Schema.DayCategories)
	for i := 0; i < fs.Table.Len(); i++ {
		ones := 0
		for _, col := range fs.Schema.DayColumns() {
			idx, err := fs.Table.ColumnIndex(col)
			require.NoError(t, err)
			if fs.Table.Cell(i, idx) == "1" {
				ones++
			}
		}
		assert.Equal(t, 1, ones, "row %d", i)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		lenient bool
		table   func(t *testing.T) *experiment.Table
		target  error
	}{
		{
			name: "missing timestamp column",
			table: func(t *testing.T) *experiment.Table {
				tbl, err := experiment.NewTable([]string{"user_id", "group"}, [][]string{{"u1", "control"}})
				require.NoError(t, err)
				return tbl
			},
			target: core.ErrMissingColumn,
		},
		{
			name: "unparsable timestamp",
			table: func(t *testing.T) *experiment.Table {
				return newTable(t, [][]string{
					{"u1", "2023-01-02 09:00:00", "control", "old_page", "0"},
					{"u2", "yesterday", "control", "old_page", "0"},
				})
			},
			target: core.ErrInvalidValue,
		},
		{
			name: "empty timestamp",
			table: func(t *testing.T) *experiment.Table {
				return newTable(t, [][]string{{"u1", "", "control", "old_page", "0"}})
			},
			target: core.ErrInvalidValue,
		},
		{
			name: "unknown group label in strict mode",
			table: func(t *testing.T) *experiment.Table {
				return newTable(t, [][]string{{"u1", "2023-01-02", "Treatment", "new_page", "0"}})
			},
			target: core.ErrUnknownGroupLabel,
		},
		{
			name: "derived column already present",
			table: func(t *testing.T) *experiment.Table {
				tbl, err := experiment.NewTable([]string{"timestamp", "group", "hour"}, [][]string{{"2023-01-02", "control", "3"}})
				require.NoError(t, err)
				return tbl
			},
			target: core.ErrReservedColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newBuilder(tt.lenient).Build(tt.table(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, core.IsSchemaError(err))
		})
	}
}

func TestBuild_ReservedColumnsNamed(t *testing.T) {
	tbl, err := experiment.NewTable(
		[]string{"timestamp", "group", "intercept", "day_Monday"},
		[][]string{{"2023-01-02 09:00:00", "control", "1", "1"}},
	)
	require.NoError(t, err)

	_, err = newBuilder(false).Build(tbl)
	require.ErrorIs(t, err, core.ErrReservedColumn)
	assert.Contains(t, err.Error(), "day_Monday")
	assert.Contains(t, err.Error(), "intercept")
}

func TestBuild_ErrorNamesRow(t *testing.T) {
	_, err := newBuilder(false).Build(newTable(t, [][]string{
		{"u1", "2023-01-02", "control", "old_page", "0"},
		{"u2", "not-a-date", "control", "old_page", "0"},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), `"timestamp"`)
}

func TestBuild_LenientGroupLabels(t *testing.T) {
	fs, err := newBuilder(true).Build(newTable(t, [][]string{
		{"u1", "2023-01-02", "holdout", "old_page", "0"},
		{"u2", "2023-01-02", "treatment", "new_page", "0"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, column(t, fs.Table, "ab_group"))
}

func TestBuildWithSchema(t *testing.T) {
	previous := Schema{DayCategories: []string{"Monday", "Sunday", "Tuesday"}}

	t.Run("zero-fills absent days", func(t *testing.T) {
		fs, err := newBuilder(false).BuildWithSchema(newTable(t, [][]string{
			{"u1", "2023-01-03 08:00:00", "control", "old_page", "0"},
		}), previous)
		require.NoError(t, err)

		assert.Equal(t, previous.DayCategories, fs.Schema.DayCategories)
		assert.Equal(t, []string{"0"}, column(t, fs.Table, "day_Monday"))
		assert.Equal(t, []string{"0"}, column(t, fs.Table, "day_Sunday"))
		assert.Equal(t, []string{"1"}, column(t, fs.Table, "day_Tuesday"))
	})

	t.Run("rejects unseen days", func(t *testing.T) {
		_, err := newBuilder(false).BuildWithSchema(newTable(t, [][]string{
			{"u1", "2023-01-02 08:00:00", "control", "old_page", "0"},
			{"u2", "2023-01-07 08:00:00", "control", "old_page", "0"},
		}), previous)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrSchemaDrift)
		assert.Contains(t, err.Error(), "Saturday")
	})
}

func TestSchemaColumns(t *testing.T) {
	s := Schema{DayCategories: []string{"Friday"}}
	assert.Equal(t, []string{"hour", "day_of_week", "day_Friday", "ab_group", "intercept"}, s.Columns())
}
