package regression

import (
	"fmt"
	"math"
	"strings"

	"abtest/domain/core"
	"abtest/internal/analysis"

	"gonum.org/v1/gonum/mat"
)

// confidenceLevel is the coverage of the reported Wald intervals
const confidenceLevel = 0.95

// Model is a fitted logistic regression
type Model struct {
	Features          []string     `json:"features"`
	Coefficients      []float64    `json:"coefficients"`
	StdErrors         []float64    `json:"std_errors"`
	ZValues           []float64    `json:"z_values"`
	PValues           []float64    `json:"p_values"`
	ConfInt           [][2]float64 `json:"conf_int"`
	NObs              int          `json:"n_obs"`
	Iterations        int          `json:"iterations"`
	LogLikelihood     float64      `json:"log_likelihood"`
	NullLogLikelihood float64      `json:"null_log_likelihood"`
	PseudoR2          float64      `json:"pseudo_r2"`
}

func newModel(features []string, x *mat.Dense, y, beta *mat.VecDense, iterations int) (*Model, error) {
	n, k := x.Dims()
	mu := predict(x, beta)

	var chol mat.Cholesky
	if ok := chol.Factorize(information(x, mu, n, k)); !ok {
		return nil, core.NewNotConvergedError(iterations, "information matrix is not positive definite at the optimum")
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, core.NewNotConvergedError(iterations, err.Error())
	}

	q := analysis.NormalQuantile(1 - (1-confidenceLevel)/2)
	m := &Model{
		Features:     append([]string(nil), features...),
		Coefficients: make([]float64, k),
		StdErrors:    make([]float64, k),
		ZValues:      make([]float64, k),
		PValues:      make([]float64, k),
		ConfInt:      make([][2]float64, k),
		NObs:         n,
		Iterations:   iterations,
	}
	for j := 0; j < k; j++ {
		b := beta.AtVec(j)
		se := math.Sqrt(cov.At(j, j))
		m.Coefficients[j] = b
		m.StdErrors[j] = se
		m.ZValues[j] = b / se
		m.PValues[j] = analysis.TwoTailedPValue(b / se)
		m.ConfInt[j] = [2]float64{b - q*se, b + q*se}
	}

	var eta mat.VecDense
	eta.MulVec(x, beta)
	positives := 0.0
	for i := 0; i < n; i++ {
		yi := y.AtVec(i)
		m.LogLikelihood += yi*eta.AtVec(i) - softplus(eta.AtVec(i))
		positives += yi
	}
	m.NullLogLikelihood = bernoulliLogLikelihood(positives, float64(n))
	if m.NullLogLikelihood != 0 {
		m.PseudoR2 = 1 - m.LogLikelihood/m.NullLogLikelihood
	}
	return m, nil
}

// bernoulliLogLikelihood is the log-likelihood of a constant-rate model
func bernoulliLogLikelihood(positives, n float64) float64 {
	ll := 0.0
	if positives > 0 {
		ll += positives * math.Log(positives/n)
	}
	if negatives := n - positives; negatives > 0 {
		ll += negatives * math.Log(negatives/n)
	}
	return ll
}

// Coefficient returns the coefficient fitted for a feature
func (m *Model) Coefficient(feature string) (float64, bool) {
	for j, name := range m.Features {
		if name == feature {
			return m.Coefficients[j], true
		}
	}
	return 0, false
}

// Probability returns the predicted conversion probability for one row of
// feature values given in model order
func (m *Model) Probability(values []float64) (float64, error) {
	if len(values) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: got %d values for %d features", core.ErrInvalidArgument, len(values), len(m.Coefficients))
	}
	eta := 0.0
	for j, v := range values {
		eta += m.Coefficients[j] * v
	}
	return sigmoid(eta), nil
}

// OddsRatio returns exp(coefficient) for a feature
func (m *Model) OddsRatio(feature string) (float64, bool) {
	b, ok := m.Coefficient(feature)
	if !ok {
		return 0, false
	}
	return math.Exp(b), true
}

// Summary renders the coefficient table as plain text
func (m *Model) Summary() string {
	width := len("Feature")
	for _, name := range m.Features {
		width = max(width, len(name))
	}
	rule := strings.Repeat("=", width+66)

	var b strings.Builder
	fmt.Fprintf(&b, "Logit Regression Results\n%s\n", rule)
	fmt.Fprintf(&b, "%-18s %12s    %-18s %12d\n", "Dep. Variable:", "converted", "No. Observations:", m.NObs)
	fmt.Fprintf(&b, "%-18s %12s    %-18s %12d\n", "Method:", "MLE", "Iterations:", m.Iterations)
	fmt.Fprintf(&b, "%-18s %12.4f    %-18s %12.4f\n", "Log-Likelihood:", m.LogLikelihood, "LL-Null:", m.NullLogLikelihood)
	fmt.Fprintf(&b, "%-18s %12.4f\n", "Pseudo R-squ.:", m.PseudoR2)
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "%-*s %10s %10s %10s %10s %10s %10s\n", width, "", "coef", "std err", "z", "P>|z|", "[0.025", "0.975]")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", width+66))
	for j, name := range m.Features {
		fmt.Fprintf(&b, "%-*s %10.4f %10.3f %10.3f %10.3f %10.3f %10.3f\n", width, name,
			m.Coefficients[j], m.StdErrors[j], m.ZValues[j], m.PValues[j], m.ConfInt[j][0], m.ConfInt[j][1])
	}
	b.WriteString(rule)
	b.WriteString("\n")
	return b.String()
}
