package experiment

import (
	"sort"
	"strconv"
	"strings"

	"abtest/domain/core"
)

// Column names every A/B export must declare
const (
	ColUserID      = "user_id"
	ColTimestamp   = "timestamp"
	ColGroup       = "group"
	ColLandingPage = "landing_page"
	ColConverted   = "converted"
)

// RequiredColumns lists the input schema in canonical order
var RequiredColumns = []string{ColUserID, ColTimestamp, ColGroup, ColLandingPage, ColConverted}

// Derived feature columns
const (
	ColHour      = "hour"
	ColDayOfWeek = "day_of_week"
	ColABGroup   = "ab_group"
	ColIntercept = "intercept"

	// DayColumnPrefix prefixes the one-hot weekday indicators, e.g. day_Monday
	DayColumnPrefix = "day_"
)

// Group and page labels
const (
	GroupControl   = "control"
	GroupTreatment = "treatment"
	PageOld        = "old_page"
	PageNew        = "new_page"
)

// Observation is one typed row of an A/B export
type Observation struct {
	UserID      string `json:"user_id"`
	Timestamp   string `json:"timestamp"`
	Group       string `json:"group"`
	LandingPage string `json:"landing_page"`
	Converted   bool   `json:"converted"`
}

// Consistent reports whether the group/page assignment is valid. Labels
// outside the known pairs are not judged here.
func (o Observation) Consistent() bool {
	return !(o.Group == GroupControl && o.LandingPage == PageNew) &&
		!(o.Group == GroupTreatment && o.LandingPage == PageOld)
}

// ParseConverted reads a conversion flag. row is 1-based for error messages.
func ParseConverted(row int, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "1.0", "true":
		return true, nil
	case "0", "0.0", "false":
		return false, nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		if f == 1 {
			return true, nil
		}
		if f == 0 {
			return false, nil
		}
	}
	return false, core.NewCellError(row, ColConverted, value, "conversion flag must be 0 or 1")
}

// ReadObservations parses the typed view of a table. The timestamp column
// is optional here; components that need it validate it themselves.
func ReadObservations(t *Table) ([]Observation, error) {
	cols := make(map[string]int, 4)
	for _, name := range []string{ColUserID, ColGroup, ColLandingPage, ColConverted} {
		i, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		cols[name] = i
	}
	tsCol := -1
	if t.HasColumn(ColTimestamp) {
		tsCol, _ = t.ColumnIndex(ColTimestamp)
	}

	out := make([]Observation, t.Len())
	for i := 0; i < t.Len(); i++ {
		converted, err := ParseConverted(i+1, t.Cell(i, cols[ColConverted]))
		if err != nil {
			return nil, err
		}
		o := Observation{
			UserID:      t.Cell(i, cols[ColUserID]),
			Group:       t.Cell(i, cols[ColGroup]),
			LandingPage: t.Cell(i, cols[ColLandingPage]),
			Converted:   converted,
		}
		if tsCol >= 0 {
			o.Timestamp = t.Cell(i, tsCol)
		}
		out[i] = o
	}
	return out, nil
}

// GroupRate is the conversion tally for one group label
type GroupRate struct {
	Group     string  `json:"group"`
	Converted int     `json:"converted"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"`
}

// ConversionRateReport maps group labels to conversion rates. Only groups
// observed in the table are present, so every entry has Total >= 1.
type ConversionRateReport struct {
	Groups      map[string]GroupRate `json:"groups"`
	SkippedRows int                  `json:"skipped_rows,omitempty"`
}

// Rate returns the rate for a group, or ErrEmptyGroup when it has no rows
func (r ConversionRateReport) Rate(group string) (float64, error) {
	g, ok := r.Groups[group]
	if !ok || g.Total == 0 {
		return 0, core.NewEmptyGroupError(group)
	}
	return g.Rate, nil
}

// Labels returns the group labels in sorted order
func (r ConversionRateReport) Labels() []string {
	labels := make([]string, 0, len(r.Groups))
	for k := range r.Groups {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// TestResult is the outcome of a two-proportion z-test
type TestResult struct {
	ZStatistic         float64  `json:"z_statistic"`
	PValue             float64  `json:"p_value"`
	Alpha              float64  `json:"alpha"`
	Significant        bool     `json:"significant"`
	ControlSize        int      `json:"control_size"`
	TreatmentSize      int      `json:"treatment_size"`
	ControlConverted   int      `json:"control_converted"`
	TreatmentConverted int      `json:"treatment_converted"`
	ControlRate        float64  `json:"control_rate"`
	TreatmentRate      float64  `json:"treatment_rate"`
	RelativeLift       *float64 `json:"relative_difference"` // percent; nil when control rate is 0
}

// Lift returns the relative lift in percent
func (r TestResult) Lift() (float64, error) {
	if r.RelativeLift == nil {
		return 0, core.ErrUndefinedLift
	}
	return *r.RelativeLift, nil
}

// SegmentRate is a conversion rate for one (segment, group) cell of a
// time-series breakdown
type SegmentRate struct {
	Segment string  `json:"segment"`
	Group   string  `json:"group"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}
