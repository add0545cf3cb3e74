package analysis

import (
	"sort"
	"strconv"
	"time"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"

	"github.com/montanaflynn/stats"
)

// Analyzer computes conversion rates and significance tests over cleaned tables
type Analyzer struct {
	logger *internal.Logger
}

// NewAnalyzer creates an analyzer logging to logger
func NewAnalyzer(logger *internal.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// groupFlags holds the conversion flags of each group label in table order
type groupFlags struct {
	order   []string
	flags   map[string][]float64
	skipped int
}

// readGroupFlags parses the group and converted columns. With lenient set,
// rows whose flag does not parse are skipped and counted instead of failing.
func readGroupFlags(table *experiment.Table, lenient bool) (*groupFlags, error) {
	groupCol, err := table.ColumnIndex(experiment.ColGroup)
	if err != nil {
		return nil, err
	}
	convCol, err := table.ColumnIndex(experiment.ColConverted)
	if err != nil {
		return nil, err
	}

	g := &groupFlags{flags: make(map[string][]float64)}
	for i := 0; i < table.Len(); i++ {
		converted, err := experiment.ParseConverted(i+1, table.Cell(i, convCol))
		if err != nil {
			if lenient {
				g.skipped++
				continue
			}
			return nil, err
		}
		label := table.Cell(i, groupCol)
		if _, seen := g.flags[label]; !seen {
			g.order = append(g.order, label)
		}
		v := 0.0
		if converted {
			v = 1
		}
		g.flags[label] = append(g.flags[label], v)
	}
	return g, nil
}

// rateOf summarises one group's flags
func rateOf(group string, flags []float64) (experiment.GroupRate, error) {
	if len(flags) == 0 {
		return experiment.GroupRate{}, core.NewEmptyGroupError(group)
	}
	mean, err := stats.Mean(flags)
	if err != nil {
		return experiment.GroupRate{}, core.NewEmptyGroupError(group)
	}
	sum, _ := stats.Sum(flags)
	return experiment.GroupRate{
		Group:     group,
		Converted: int(sum),
		Total:     len(flags),
		Rate:      mean,
	}, nil
}

// ConversionRates returns the mean conversion flag per group label. Only
// labels present in the table appear in the report.
func (a *Analyzer) ConversionRates(table *experiment.Table) (experiment.ConversionRateReport, error) {
	return a.conversionRates(table, false)
}

// RawConversionRates is ConversionRates for uncleaned tables: rows with an
// unparsable conversion flag are left out and counted in SkippedRows.
func (a *Analyzer) RawConversionRates(table *experiment.Table) (experiment.ConversionRateReport, error) {
	return a.conversionRates(table, true)
}

func (a *Analyzer) conversionRates(table *experiment.Table, lenient bool) (experiment.ConversionRateReport, error) {
	if table.Len() == 0 {
		return experiment.ConversionRateReport{}, core.ErrEmptyTable
	}

	g, err := readGroupFlags(table, lenient)
	if err != nil {
		return experiment.ConversionRateReport{}, err
	}
	if g.skipped > 0 {
		a.logger.Warn("Skipped %d rows with an unparsable %s flag", g.skipped, experiment.ColConverted)
	}

	report := experiment.ConversionRateReport{
		Groups:      make(map[string]experiment.GroupRate, len(g.order)),
		SkippedRows: g.skipped,
	}
	for _, label := range g.order {
		rate, err := rateOf(label, g.flags[label])
		if err != nil {
			return experiment.ConversionRateReport{}, err
		}
		report.Groups[label] = rate
		a.logger.Debug("Group %s: %d/%d converted (%.4f)", label, rate.Converted, rate.Total, rate.Rate)
	}
	return report, nil
}

// ConversionByHour breaks conversion down by (hour, group). The table must
// carry the derived hour column.
func (a *Analyzer) ConversionByHour(table *experiment.Table) ([]experiment.SegmentRate, error) {
	return a.conversionBySegment(table, experiment.ColHour, hourOrder)
}

// ConversionByDay breaks conversion down by (day_of_week, group), Monday first
func (a *Analyzer) ConversionByDay(table *experiment.Table) ([]experiment.SegmentRate, error) {
	return a.conversionBySegment(table, experiment.ColDayOfWeek, weekdayOrder)
}

func (a *Analyzer) conversionBySegment(table *experiment.Table, column string, order func(string) int) ([]experiment.SegmentRate, error) {
	segCol, err := table.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	groupCol, err := table.ColumnIndex(experiment.ColGroup)
	if err != nil {
		return nil, err
	}
	convCol, err := table.ColumnIndex(experiment.ColConverted)
	if err != nil {
		return nil, err
	}

	type key struct{ segment, group string }
	cells := make(map[key][]float64)
	for i := 0; i < table.Len(); i++ {
		converted, err := experiment.ParseConverted(i+1, table.Cell(i, convCol))
		if err != nil {
			if lenient {
				g.skipped++
				continue
			}
			return nil, err
		}
		k := key{table.Cell(i, segCol), table.Cell(i, groupCol)}
		v := 0.0
		if converted {
			v = 1
		}
		cells[k] = append(cells[k], v)
	}

	out := make([]experiment.SegmentRate, 0, len(cells))
	for k, flags := range cells {
		rate, err := rateOf(k.group, flags)
		if err != nil {
			return nil, err
		}
		out = append(out, experiment.SegmentRate{Segment: k.segment, Group: k.group, Total: rate.Total, Rate: rate.Rate})
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := order(out[i].Segment), order(out[j].Segment)
		if oi != oj {
			return oi < oj
		}
		if out[i].Segment != out[j].Segment {
			return out[i].Segment < out[j].Segment
		}
		return out[i].Group < out[j].Group
	})

	a.logger.Debug("Computed %d %s segments", len(out), column)
	return out, nil
}

// Unknown segments sort after known ones, then lexically
const unknownSegment = 1 << 16

func hourOrder(s string) int {
	h, err := strconv.Atoi(s)
	if err != nil {
		return unknownSegment
	}
	return h
}

// weekdayOrder puts Monday first, matching calendar weeks
func weekdayOrder(s string) int {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == s {
			return (int(d) + 6) % 7
		}
	}
	return unknownSegment
}
