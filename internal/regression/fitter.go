// Package regression fits maximum-likelihood logistic models of the
// conversion flag on explicit numeric feature columns.
package regression

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"

	"gonum.org/v1/gonum/mat"
)

// Options controls the Newton iterations
type Options struct {
	MaxIterations int
	Tolerance     float64 // largest absolute parameter change accepted as converged
}

// DefaultOptions mirrors the usual Newton settings for logit models
func DefaultOptions() Options {
	return Options{MaxIterations: 35, Tolerance: 1e-8}
}

// Fitter fits logistic regressions. No intercept is added; callers list an
// intercept column explicitly when they want one.
type Fitter struct {
	opts   Options
	logger *internal.Logger
}

// NewFitter creates a fitter, falling back to defaults for unset options
func NewFitter(opts Options, logger *internal.Logger) *Fitter {
	def := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	return &Fitter{opts: opts, logger: logger}
}

// Fit regresses the converted column on features
func (f *Fitter) Fit(table *experiment.Table, features []string) (*Model, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no features given", core.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(features))
	for _, name := range features {
		if seen[name] {
			return nil, fmt.Errorf("%w: feature %q listed twice", core.ErrInvalidArgument, name)
		}
		seen[name] = true
	}
	if table.Len() == 0 {
		return nil, core.ErrEmptyTable
	}

	f.logger.Info("Fitting logistic regression on %d rows with features %v", table.Len(), features)

	x, y, err := designMatrix(table, features)
	if err != nil {
		return nil, err
	}

	if rank := matrixRank(x); rank < len(features) {
		f.logger.Error("Design matrix has rank %d for %d features", rank, len(features))
		return nil, core.NewSingularDesignError(features, rank)
	}

	beta, iterations, err := f.newton(x, y)
	if err != nil {
		f.logger.Error("Logistic regression failed: %v", err)
		return nil, err
	}

	model, err := newModel(features, x, y, beta, iterations)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Model converged in %d iterations (log-likelihood %.4f)", iterations, model.LogLikelihood)
	return model, nil
}

// designMatrix parses the feature columns and the response
func designMatrix(table *experiment.Table, features []string) (*mat.Dense, *mat.VecDense, error) {
	n, k := table.Len(), len(features)

	cols := make([]int, k)
	for j, name := range features {
		idx, err := table.ColumnIndex(name)
		if err != nil {
			return nil, nil, err
		}
		cols[j] = idx
	}
	convCol, err := table.ColumnIndex(experiment.ColConverted)
	if err != nil {
		return nil, nil, err
	}

	x := mat.NewDense(n, k, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j, col := range cols {
			v, err := parseNumeric(table.Cell(i, col))
			if err != nil {
				return nil, nil, core.NewCellError(i+1, features[j], table.Cell(i, col), "feature must be numeric")
			}
			x.Set(i, j, v)
		}
		converted, err := experiment.ParseConverted(i+1, table.Cell(i, convCol))
		if err != nil {
			return nil, nil, err
		}
		if converted {
			y.SetVec(i, 1)
		}
	}
	return x, y, nil
}

// parseNumeric accepts numbers and boolean literals
func parseNumeric(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite value %q", s)
		}
		return v, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return 0, err
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

// matrixRank counts singular values above max(n,k) * eps * largest
func matrixRank(x *mat.Dense) int {
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDNone); !ok {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0
	}
	n, k := x.Dims()
	tol := values[0] * float64(max(n, k)) * eps
	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	return rank
}

const eps = 2.220446049250313e-16

// newton runs iteratively reweighted least squares until the largest
// parameter change drops below the tolerance
func (f *Fitter) newton(x *mat.Dense, y *mat.VecDense) (*mat.VecDense, int, error) {
	n, k := x.Dims()
	beta := mat.NewVecDense(k, nil)

	for iter := 1; iter <= f.opts.MaxIterations; iter++ {
		mu := predict(x, beta)

		var resid mat.VecDense
		resid.SubVec(y, mu)
		var grad mat.VecDense
		grad.MulVec(x.T(), &resid)

		hessian := information(x, mu, n, k)
		var chol mat.Cholesky
		if ok := chol.Factorize(hessian); !ok {
			return nil, iter, core.NewNotConvergedError(iter, "Hessian is not positive definite, the outcome may be perfectly separated")
		}

		var step mat.VecDense
		if err := chol.SolveVecTo(&step, &grad); err != nil {
			return nil, iter, core.NewNotConvergedError(iter, err.Error())
		}
		beta.AddVec(beta, &step)

		change := 0.0
		for j := 0; j < k; j++ {
			change = math.Max(change, math.Abs(step.AtVec(j)))
		}
		if math.IsNaN(change) || math.IsInf(change, 0) {
			return nil, iter, core.NewNotConvergedError(iter, "parameters diverged")
		}
		f.logger.Trace("Newton iteration %d: max parameter change %.3g", iter, change)

		if change < f.opts.Tolerance {
			return beta, iter, nil
		}
	}
	return nil, f.opts.MaxIterations, core.NewNotConvergedError(f.opts.MaxIterations,
		fmt.Sprintf("parameter change still above %g", f.opts.Tolerance))
}

// information returns X' W X with W = diag(mu(1-mu))
func information(x *mat.Dense, mu *mat.VecDense, n, k int) *mat.SymDense {
	scaled := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		m := mu.AtVec(i)
		w := math.Sqrt(m * (1 - m))
		for j := 0; j < k; j++ {
			scaled.Set(i, j, x.At(i, j)*w)
		}
	}
	h := mat.NewSymDense(k, nil)
	h.SymOuterK(1, scaled.T())
	return h
}

// predict returns the fitted probabilities for beta
func predict(x *mat.Dense, beta *mat.VecDense) *mat.VecDense {
	var eta mat.VecDense
	eta.MulVec(x, beta)
	n := eta.Len()
	mu := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		mu.SetVec(i, sigmoid(eta.AtVec(i)))
	}
	return mu
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus is log(1 + e^z) without overflow
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}
