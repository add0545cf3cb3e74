// Package cleaning removes observations that break the experiment's
// assignment rules and repeated subjects.
package cleaning

import (
	"abtest/domain/experiment"
	"abtest/internal"
)

// Result is the output of a full cleaning pass
type Result struct {
	Table               *experiment.Table `json:"-"`
	InputRows           int               `json:"input_rows"`
	RemovedInconsistent int               `json:"removed_inconsistent"`
	RemovedDuplicates   int               `json:"removed_duplicates"`
}

// Removed returns the total number of dropped rows
func (r Result) Removed() int {
	return r.RemovedInconsistent + r.RemovedDuplicates
}

// Cleaner applies the consistency and duplicate filters
type Cleaner struct {
	logger *internal.Logger
}

// NewCleaner creates a cleaner logging to logger
func NewCleaner(logger *internal.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean runs the consistency filter then the duplicate filter. The input
// table is never modified.
func (c *Cleaner) Clean(table *experiment.Table) (*Result, error) {
	c.logger.Info("Cleaning %d rows", table.Len())

	consistent, removedInconsistent, err := c.ConsistencyFilter(table)
	if err != nil {
		return nil, err
	}
	deduped, removedDuplicates, err := c.DuplicateFilter(consistent)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Cleaning done: %d rows kept, %d inconsistent, %d duplicates",
		deduped.Len(), removedInconsistent, removedDuplicates)

	return &Result{
		Table:               deduped,
		InputRows:           table.Len(),
		RemovedInconsistent: removedInconsistent,
		RemovedDuplicates:   removedDuplicates,
	}, nil
}

// ConsistencyFilter drops rows pairing control with new_page or treatment
// with old_page and reports how many were dropped
func (c *Cleaner) ConsistencyFilter(table *experiment.Table) (*experiment.Table, int, error) {
	groupCol, err := table.ColumnIndex(experiment.ColGroup)
	if err != nil {
		return nil, 0, err
	}
	pageCol, err := table.ColumnIndex(experiment.ColLandingPage)
	if err != nil {
		return nil, 0, err
	}

	kept := table.Filter(func(i int) bool {
		return consistent(table.Cell(i, groupCol), table.Cell(i, pageCol))
	})
	removed := table.Len() - kept.Len()
	c.logger.Debug("Consistency filter removed %d rows", removed)
	return kept, removed, nil
}

// DuplicateFilter keeps the first row of every user_id in table order.
// Applying it twice removes nothing the second time.
func (c *Cleaner) DuplicateFilter(table *experiment.Table) (*experiment.Table, int, error) {
	userCol, err := table.ColumnIndex(experiment.ColUserID)
	if err != nil {
		return nil, 0, err
	}

	first := firstOccurrences(table, userCol)
	kept := table.Filter(func(i int) bool { return first[i] })
	removed := table.Len() - kept.Len()
	c.logger.Debug("Duplicate filter removed %d rows", removed)
	return kept, removed, nil
}

func consistent(group, page string) bool {
	return experiment.Observation{Group: group, LandingPage: page}.Consistent()
}

// firstOccurrences marks the rows whose column value was not seen before
func firstOccurrences(table *experiment.Table, col int) []bool {
	seen := make(map[string]struct{}, table.Len())
	first := make([]bool, table.Len())
	for i := 0; i < table.Len(); i++ {
		v := table.Cell(i, col)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		first[i] = true
	}
	return first
}
