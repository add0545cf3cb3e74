// Package features derives the regression columns of an experiment table:
// hour, weekday, one-hot weekday indicators, the group indicator and a
// constant intercept.
package features

import (
	"fmt"
	"sort"
	"strconv"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"
)

// Options controls label handling
type Options struct {
	// LenientGroupLabels maps every label other than treatment to 0 instead
	// of rejecting it
	LenientGroupLabels bool
}

// Schema records the data-dependent part of a feature table: the weekday
// categories that received an indicator column
type Schema struct {
	DayCategories []string `json:"day_categories"`
}

// DayColumns returns the indicator column names in schema order
func (s Schema) DayColumns() []string {
	cols := make([]string, len(s.DayCategories))
	for i, d := range s.DayCategories {
		cols[i] = experiment.DayColumnPrefix + d
	}
	return cols
}

// Columns returns every derived column name in the order they are appended
func (s Schema) Columns() []string {
	cols := []string{experiment.ColHour, experiment.ColDayOfWeek}
	cols = append(cols, s.DayColumns()...)
	return append(cols, experiment.ColABGroup, experiment.ColIntercept)
}

// FeatureSet is a table extended with derived columns
type FeatureSet struct {
	Table  *experiment.Table
	Schema Schema
}

// Builder derives feature columns
type Builder struct {
	opts   Options
	logger *internal.Logger
}

// NewBuilder creates a feature builder
func NewBuilder(opts Options, logger *internal.Logger) *Builder {
	return &Builder{opts: opts, logger: logger}
}

// Build derives features with one indicator per weekday present in table.
// Every timestamp must parse; the first bad row fails the build.
func (b *Builder) Build(table *experiment.Table) (*FeatureSet, error) {
	return b.build(table, func(present []string) ([]string, error) {
		return present, nil
	})
}

// BuildWithSchema derives features using the weekday categories of a
// previous schema. Categories missing from table become all-zero columns;
// categories the previous schema never saw fail with ErrSchemaDrift.
func (b *Builder) BuildWithSchema(table *experiment.Table, previous Schema) (*FeatureSet, error) {
	return b.build(table, func(present []string) ([]string, error) {
		known := make(map[string]bool, len(previous.DayCategories))
		for _, d := range previous.DayCategories {
			known[d] = true
		}
		var unseen []string
		for _, d := range present {
			if !known[d] {
				unseen = append(unseen, d)
			}
		}
		if len(unseen) > 0 {
			return nil, core.NewSchemaDriftError(unseen)
		}
		return append([]string(nil), previous.DayCategories...), nil
	})
}

func (b *Builder) build(table *experiment.Table, categories func(present []string) ([]string, error)) (*FeatureSet, error) {
	tsCol, err := table.ColumnIndex(experiment.ColTimestamp)
	if err != nil {
		return nil, err
	}
	groupCol, err := table.ColumnIndex(experiment.ColGroup)
	if err != nil {
		return nil, err
	}

	n := table.Len()
	hours := make([]string, n)
	days := make([]string, n)
	abGroup := make([]string, n)
	intercept := make([]string, n)
	presentSet := make(map[string]bool, 7)

	for i := 0; i < n; i++ {
		raw := table.Cell(i, tsCol)
		ts, err := core.ParseTimestamp(raw)
		if err != nil {
			return nil, core.NewCellError(i+1, experiment.ColTimestamp, raw, err.Error())
		}
		hours[i] = strconv.Itoa(ts.Hour())
		days[i] = ts.Weekday().String()
		presentSet[days[i]] = true

		indicator, err := b.groupIndicator(i+1, table.Cell(i, groupCol))
		if err != nil {
			return nil, err
		}
		abGroup[i] = indicator
		intercept[i] = "1"
	}

	present := make([]string, 0, len(presentSet))
	for d := range presentSet {
		present = append(present, d)
	}
	sort.Strings(present)

	dayCategories, err := categories(present)
	if err != nil {
		return nil, err
	}
	schema := Schema{DayCategories: dayCategories}

	names := schema.Columns()
	var clashes []string
	for _, name := range names {
		if table.HasColumn(name) {
			clashes = append(clashes, name)
		}
	}
	if len(clashes) > 0 {
		return nil, core.NewReservedColumnError(clashes)
	}

	values := make([][]string, 0, len(names))
	values = append(values, hours, days)
	for _, d := range dayCategories {
		col := make([]string, n)
		for i := range col {
			col[i] = "0"
			if days[i] == d {
				col[i] = "1"
			}
		}
		values = append(values, col)
	}
	values = append(values, abGroup, intercept)

	out, err := table.WithColumns(names, values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchema, err)
	}

	b.logger.Info("Prepared features for %d rows (day categories %v)", n, dayCategories)
	return &FeatureSet{Table: out, Schema: schema}, nil
}

// groupIndicator maps treatment to 1 and control to 0
func (b *Builder) groupIndicator(row int, label string) (string, error) {
	switch label {
	case experiment.GroupTreatment:
		return "1", nil
	case experiment.GroupControl:
		return "0", nil
	}
	if b.opts.LenientGroupLabels {
		b.logger.Trace("Row %d: group %q treated as control", row, label)
		return "0", nil
	}
	return "", core.NewUnknownGroupError(row, label)
}
