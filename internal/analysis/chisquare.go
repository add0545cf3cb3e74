package analysis

import (
	"math"

	"abtest/domain/core"
	"abtest/domain/experiment"

	"gonum.org/v1/gonum/stat/distuv"
)

// IndependenceResult is a chi-square test of independence between group
// and conversion over the control/treatment 2x2 contingency table
type IndependenceResult struct {
	ChiSquare        float64   `json:"chi_square"`
	DegreesOfFreedom int       `json:"degrees_of_freedom"`
	PValue           float64   `json:"p_value"`
	CramerV          float64   `json:"cramer_v"`
	Observed         [2][2]int `json:"observed"` // rows control, treatment; cols not converted, converted
}

// ChiSquareIndependence runs Pearson's chi-square test without continuity
// correction. For a 2x2 table the statistic equals the squared pooled z.
func (a *Analyzer) ChiSquareIndependence(table *experiment.Table) (IndependenceResult, error) {
	g, err := readGroupFlags(table, false)
	if err != nil {
		return IndependenceResult{}, err
	}

	var observed [2][2]int
	for row, label := range []string{experiment.GroupControl, experiment.GroupTreatment} {
		rate, err := rateOf(label, g.flags[label])
		if err != nil {
			return IndependenceResult{}, err
		}
		observed[row] = [2]int{rate.Total - rate.Converted, rate.Converted}
	}

	chiSq, err := pearsonChiSquare(observed)
	if err != nil {
		return IndependenceResult{}, err
	}

	total := observed[0][0] + observed[0][1] + observed[1][0] + observed[1][1]
	result := IndependenceResult{
		ChiSquare:        chiSq,
		DegreesOfFreedom: 1,
		PValue:           distuv.ChiSquared{K: 1}.Survival(chiSq),
		CramerV:          math.Sqrt(chiSq / float64(total)),
		Observed:         observed,
	}
	a.logger.Debug("Chi-square independence: chi2=%.4f p=%.4g V=%.4f", chiSq, result.PValue, result.CramerV)
	return result, nil
}

func pearsonChiSquare(table [2][2]int) (float64, error) {
	var rowTotals, colTotals [2]int
	total := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			rowTotals[i] += table[i][j]
			colTotals[j] += table[i][j]
			total += table[i][j]
		}
	}
	if colTotals[0] == 0 || colTotals[1] == 0 {
		return 0, core.ErrZeroStdError
	}

	chiSq := 0.0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			expected := float64(rowTotals[i]*colTotals[j]) / float64(total)
			diff := float64(table[i][j]) - expected
			chiSq += diff * diff / expected
		}
	}
	return chiSq, nil
}
