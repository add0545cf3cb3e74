package cleaning

import (
	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal/analysis"
)

// Inconsistencies counts raw rows that break the group/page pairing
type Inconsistencies struct {
	ControlNewPage   int `json:"control_new_page"`
	TreatmentOldPage int `json:"treatment_old_page"`
	Total            int `json:"total_inconsistencies"`
}

// Comparison summarises what cleaning did to a raw table
type Comparison struct {
	RawRows         int                             `json:"raw_rows"`
	ProcessedRows   int                             `json:"processed_rows"`
	RemovedRows     int                             `json:"removed_rows"`
	RemovalPercent  float64                         `json:"removal_percentage"`
	Inconsistencies Inconsistencies                 `json:"inconsistencies"`
	RawDuplicates   int                             `json:"duplicates"`
	RawRates        experiment.ConversionRateReport `json:"raw_conversion_rates"`
	ProcessedRates  experiment.ConversionRateReport `json:"processed_conversion_rates"`
}

// Compare contrasts a raw table with its processed version. The raw table
// must not be empty; an empty processed table has no rates. Raw rates skip
// rows whose conversion flag does not parse, since cleaning may drop them.
func (c *Cleaner) Compare(raw, processed *experiment.Table) (*Comparison, error) {
	if raw.Len() == 0 {
		return nil, core.ErrEmptyTable
	}

	groupCol, err := raw.ColumnIndex(experiment.ColGroup)
	if err != nil {
		return nil, err
	}
	pageCol, err := raw.ColumnIndex(experiment.ColLandingPage)
	if err != nil {
		return nil, err
	}
	userCol, err := raw.ColumnIndex(experiment.ColUserID)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		RawRows:       raw.Len(),
		ProcessedRows: processed.Len(),
		RemovedRows:   raw.Len() - processed.Len(),
	}
	cmp.RemovalPercent = float64(cmp.RemovedRows) / float64(cmp.RawRows) * 100

	for i := 0; i < raw.Len(); i++ {
		group, page := raw.Cell(i, groupCol), raw.Cell(i, pageCol)
		switch {
		case group == experiment.GroupControl && page == experiment.PageNew:
			cmp.Inconsistencies.ControlNewPage++
		case group == experiment.GroupTreatment && page == experiment.PageOld:
			cmp.Inconsistencies.TreatmentOldPage++
		}
	}
	cmp.Inconsistencies.Total = cmp.Inconsistencies.ControlNewPage + cmp.Inconsistencies.TreatmentOldPage

	for _, first := range firstOccurrences(raw, userCol) {
		if !first {
			cmp.RawDuplicates++
		}
	}

	rates := analysis.NewAnalyzer(c.logger)
	if cmp.RawRates, err = rates.RawConversionRates(raw); err != nil {
		return nil, err
	}
	if processed.Len() > 0 {
		if cmp.ProcessedRates, err = rates.ConversionRates(processed); err != nil {
			return nil, err
		}
	}

	c.logger.Info("Comparison done: %d rows removed (%.2f%%)", cmp.RemovedRows, cmp.RemovalPercent)
	return cmp, nil
}
