package analysis

import (
	"fmt"
	"math"

	"abtest/domain/core"
	"abtest/domain/experiment"
)

// DefaultAlpha is the significance level used when none is configured
const DefaultAlpha = 0.05

// ProportionsZTest runs a pooled two-sample z-test for proportions.
// z is positive when the treatment rate exceeds the control rate.
func ProportionsZTest(controlConverted, controlTotal, treatmentConverted, treatmentTotal int) (z, p float64, err error) {
	if controlTotal <= 0 {
		return 0, 0, core.NewEmptyGroupError(experiment.GroupControl)
	}
	if treatmentTotal <= 0 {
		return 0, 0, core.NewEmptyGroupError(experiment.GroupTreatment)
	}
	if controlConverted < 0 || controlConverted > controlTotal || treatmentConverted < 0 || treatmentConverted > treatmentTotal {
		return 0, 0, fmt.Errorf("%w: successes must lie in [0, n]", core.ErrInvalidArgument)
	}

	nc, nt := float64(controlTotal), float64(treatmentTotal)
	pc := float64(controlConverted) / nc
	pt := float64(treatmentConverted) / nt
	pooled := float64(controlConverted+treatmentConverted) / (nc + nt)

	se := math.Sqrt(pooled * (1 - pooled) * (1/nc + 1/nt))
	if se == 0 || math.IsNaN(se) {
		return 0, 0, fmt.Errorf("%w: pooled conversion rate is %.0f", core.ErrZeroStdError, pooled)
	}

	z = (pt - pc) / se
	return z, TwoTailedPValue(z), nil
}

// PerformABTest compares the control and treatment conversion rates of a
// cleaned table. Rows with other group labels are not counted.
func (a *Analyzer) PerformABTest(table *experiment.Table, alpha float64) (experiment.TestResult, error) {
	if !(alpha > 0 && alpha < 1) {
		return experiment.TestResult{}, fmt.Errorf("%w: alpha %v outside (0, 1)", core.ErrInvalidArgument, alpha)
	}

	g, err := readGroupFlags(table, false)
	if err != nil {
		return experiment.TestResult{}, err
	}

	control, err := rateOf(experiment.GroupControl, g.flags[experiment.GroupControl])
	if err != nil {
		return experiment.TestResult{}, err
	}
	treatment, err := rateOf(experiment.GroupTreatment, g.flags[experiment.GroupTreatment])
	if err != nil {
		return experiment.TestResult{}, err
	}

	z, p, err := ProportionsZTest(control.Converted, control.Total, treatment.Converted, treatment.Total)
	if err != nil {
		return experiment.TestResult{}, err
	}

	result := experiment.TestResult{
		ZStatistic:         z,
		PValue:             p,
		Alpha:              alpha,
		Significant:        p < alpha,
		ControlSize:        control.Total,
		TreatmentSize:      treatment.Total,
		ControlConverted:   control.Converted,
		TreatmentConverted: treatment.Converted,
		ControlRate:        control.Rate,
		TreatmentRate:      treatment.Rate,
	}
	if lift, ok := RelativeLift(control.Rate, treatment.Rate); ok {
		result.RelativeLift = &lift
	} else {
		a.logger.Warn("Control conversion rate is 0, relative lift is undefined")
	}

	a.logger.Info("z-test: z=%.4f p=%.4g significant=%t (alpha %.3f)", z, p, result.Significant, alpha)
	return result, nil
}

// RelativeLift returns the treatment lift over control in percent. ok is
// false when the control rate is zero.
func RelativeLift(controlRate, treatmentRate float64) (lift float64, ok bool) {
	if controlRate == 0 {
		return 0, false
	}
	return (treatmentRate - controlRate) / controlRate * 100, true
}
