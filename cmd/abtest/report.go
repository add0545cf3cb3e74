package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"abtest/app"
)

func printRun(w io.Writer, r *app.RunResult) {
	fmt.Fprintf(w, "\n📊 A/B TEST RESULTS: %s\n", r.Source)
	fmt.Fprintf(w, "Run: %s (%s)\n", r.RunID.Short(), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Rows: %d raw, %d kept (%d inconsistent, %d duplicates removed)\n",
		r.RawRows, r.Cleaned.Len(), r.Cleaning.RemovedInconsistent, r.Cleaning.RemovedDuplicates)

	fmt.Fprintf(w, "\nConversion rates:\n")
	for _, label := range r.Rates.Labels() {
		g := r.Rates.Groups[label]
		fmt.Fprintf(w, "  %-10s %6.2f%%  (%d/%d)\n", label, g.Rate*100, g.Converted, g.Total)
	}

	t := r.Test
	fmt.Fprintf(w, "\nTwo-proportion z-test (alpha %.3f):\n", t.Alpha)
	fmt.Fprintf(w, "  z = %.4f, p = %.4g\n", t.ZStatistic, t.PValue)
	if lift, err := t.Lift(); err == nil {
		fmt.Fprintf(w, "  Relative lift: %+.2f%%\n", lift)
	} else {
		fmt.Fprintf(w, "  Relative lift: undefined (control rate is 0)\n")
	}
	fmt.Fprintf(w, "  Chi-square: %.4f (df %d, p = %.4g, Cramer's V %.4f)\n",
		r.Chi.ChiSquare, r.Chi.DegreesOfFreedom, r.Chi.PValue, r.Chi.CramerV)
	if t.Significant {
		fmt.Fprintf(w, "  ✅ Significant difference between treatment and control\n")
	} else {
		fmt.Fprintf(w, "  ❌ No significant difference\n")
	}

	if len(r.ByDay) > 0 {
		fmt.Fprintf(w, "\nConversion by day:\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, s := range r.ByDay {
			fmt.Fprintf(tw, "  %s\t%s\t%.2f%%\t(n=%d)\n", s.Segment, s.Group, s.Rate*100, s.Total)
		}
		tw.Flush()
	}

	if r.Model != nil {
		fmt.Fprintf(w, "\n%s", r.Model.Summary())
	}
	if r.OutputPath != "" {
		fmt.Fprintf(w, "\n💾 Processed data saved to %s\n", r.OutputPath)
	}
}

func printComparison(w io.Writer, r *app.RunResult) {
	c := r.Comparison
	fmt.Fprintf(w, "\n🔍 RAW VS PROCESSED: %s\n", r.Source)
	fmt.Fprintf(w, "Raw rows:        %d\n", c.RawRows)
	fmt.Fprintf(w, "Processed rows:  %d\n", c.ProcessedRows)
	fmt.Fprintf(w, "Removed rows:    %d (%.2f%%)\n", c.RemovedRows, c.RemovalPercent)
	fmt.Fprintf(w, "Inconsistencies: %d (control/new_page %d, treatment/old_page %d)\n",
		c.Inconsistencies.Total, c.Inconsistencies.ControlNewPage, c.Inconsistencies.TreatmentOldPage)
	fmt.Fprintf(w, "Duplicate users: %d\n", c.RawDuplicates)
	if c.RawRates.SkippedRows > 0 {
		fmt.Fprintf(w, "Unparsable flags in raw rows: %d (left out of raw rates)\n", c.RawRates.SkippedRows)
	}

	fmt.Fprintf(w, "\nConversion rates:\n")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  group\traw\tprocessed\n")
	for _, label := range c.RawRates.Labels() {
		processed := "-"
		if rate, err := c.ProcessedRates.Rate(label); err == nil {
			processed = fmt.Sprintf("%.2f%%", rate*100)
		}
		fmt.Fprintf(tw, "  %s\t%.2f%%\t%s\n", label, c.RawRates.Groups[label].Rate*100, processed)
	}
	tw.Flush()
	fmt.Fprintln(w, strings.Repeat("-", 40))
}
