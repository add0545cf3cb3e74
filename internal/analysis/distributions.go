package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// NormalCDF computes the cumulative distribution function of the standard normal
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormalQuantile returns the standard normal quantile for probability p
func NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

// TwoTailedPValue returns P(|Z| >= |z|) for a standard normal Z. The upper
// tail is taken from the survival function so tiny p-values keep precision.
func TwoTailedPValue(z float64) float64 {
	if math.IsNaN(z) {
		return math.NaN()
	}
	p := 2 * distuv.UnitNormal.Survival(math.Abs(z))
	if p > 1 {
		return 1
	}
	return p
}
