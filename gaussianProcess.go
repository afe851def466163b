package hpo

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// Surrogate is a regression model with predictive uncertainty. Bayesian
// optimisation fits it on the vectorized pool and queries it for candidates.
type Surrogate interface {
	// Fit trains the model on rows of X and their targets y.
	Fit(X [][]float64, y []float64) error

	// Predict returns the predicted mean and standard deviation per row of X.
	Predict(X [][]float64) (mean, std []float64, err error)
}

// maxJitter bounds the diagonal noise added when the kernel matrix is not
// numerically positive definite.
const maxJitter = 1e-2

var errShape = errors.New("gaussian process: inconsistent input shape")

// DefaultLengthScales are the RBF length scales tried by every fit. Inputs
// are min-max scaled first, so the scales are relative to the observed range.
var DefaultLengthScales = []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}

// GaussianProcess implements Gaussian Process regression with an RBF kernel.
// It is used to predict the result of untested configurations from the ones
// already evaluated.
//
// Model:
//   - Inputs are min-max scaled per dimension using the training data
//   - Targets are centred on their mean
//   - k(x1, x2) = s2 * exp(-|x1 - x2|^2 / (2 * l^2)) + Alpha on the diagonal
//   - l is picked from LengthScales by maximising the log marginal
//     likelihood; s2 takes its closed-form maximum-likelihood value
//
// Thread safety:
// - Fit takes the write lock, Predict the read lock
type GaussianProcess struct {
	// LengthScales are the candidate kernel widths. Nil means
	// DefaultLengthScales; a single entry fixes the width.
	LengthScales []float64

	// Alpha is the diagonal jitter. It grows tenfold, up to 1e-2, whenever
	// the Cholesky factorisation fails.
	Alpha float64

	// mu protects access to all fields below.
	mu sync.RWMutex

	train       [][]float64
	lower, span []float64
	yMean       float64
	s2          float64
	lengthScale float64
	chol        *mat.Cholesky
	weights     *mat.VecDense
}

//////
// Factory.
//////

// NewGaussianProcess returns an unfitted model with DefaultLengthScales and
// an Alpha of 1e-10.
func NewGaussianProcess() *GaussianProcess {
	return &GaussianProcess{
		LengthScales: DefaultLengthScales,
		Alpha:        1e-10,
	}
}

//////
// Methods.
//////

// RBFKernel implements the unit-amplitude Radial Basis Function kernel with
// the given length scale.
//
// Mathematical formula:
//
//	k(x1, x2) = exp(-sum((x1 - x2)^2) / (2 * l^2))
//
// Important notes:
// - Panics if input vectors have different lengths
// - Returns 1.0 for identical points
func RBFKernel(x1, x2 []float64, lengthScale float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	return math.Exp(-sum / (2 * lengthScale * lengthScale))
}

// Fit implements Surrogate.
//
// Returns:
// - error: For ragged or empty inputs, or when no length scale yields a
//   positive definite kernel matrix even at the maximum jitter
func (gp *GaussianProcess) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("%w: %d rows, %d targets", errShape, len(X), len(y))
	}

	dim := len(X[0])
	for _, row := range X {
		if len(row) != dim {
			return errShape
		}
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	lower, span := featureRange(X)
	scaled := make([][]float64, len(X))
	for i, row := range X {
		scaled[i] = scaleRow(row, lower, span)
	}

	yMean := floats.Sum(y) / float64(len(y))
	centred := make([]float64, len(y))
	for i, v := range y {
		centred[i] = v - yMean
	}

	target := mat.NewVecDense(len(centred), centred)

	scales := gp.LengthScales
	if len(scales) == 0 {
		scales = DefaultLengthScales
	}

	var (
		bestLML     = math.Inf(-1)
		bestScale   float64
		bestChol    *mat.Cholesky
		bestWeights *mat.VecDense
		bestS2      float64
	)

	for _, l := range scales {
		chol, ok := gp.factorize(scaled, l)
		if !ok {
			continue
		}

		weights := mat.NewVecDense(len(centred), nil)
		if err := solve(chol, weights, target); err != nil {
			continue
		}

		n := float64(len(centred))
		s2 := mat.Dot(target, weights) / n

		// Profile log marginal likelihood with s2 at its optimum.
		lml := -0.5*chol.LogDet() - 0.5*n*(1+math.Log(2*math.Pi))
		if s2 > 0 {
			lml -= 0.5 * n * math.Log(s2)
		}

		if lml > bestLML || bestChol == nil {
			bestLML, bestScale, bestChol, bestWeights, bestS2 = lml, l, chol, weights, s2
		}
	}

	if bestChol == nil {
		return errors.New("gaussian process: kernel matrix is not positive definite")
	}

	gp.train = scaled
	gp.lower, gp.span = lower, span
	gp.yMean = yMean
	gp.s2 = math.Max(bestS2, 0)
	gp.lengthScale = bestScale
	gp.chol = bestChol
	gp.weights = bestWeights

	return nil
}

// factorize builds and factorises the unit-amplitude kernel matrix, adding
// jitter until it succeeds or reaches maxJitter.
func (gp *GaussianProcess) factorize(X [][]float64, lengthScale float64) (*mat.Cholesky, bool) {
	n := len(X)
	jitter := gp.Alpha
	if jitter <= 0 {
		jitter = 1e-10
	}

	for ; jitter <= maxJitter; jitter *= 10 {
		K := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := RBFKernel(X[i], X[j], lengthScale)
				if i == j {
					v += jitter
				}

				K.SetSym(i, j, v)
			}
		}

		var chol mat.Cholesky
		if chol.Factorize(K) {
			return &chol, true
		}
	}

	return nil, false
}

// Predict implements Surrogate. An unfitted model predicts mean 0 and
// standard deviation 1 everywhere.
//
// Important notes:
// - O(n) per row for the mean, O(n^2) for the variance
// - Variances below zero from rounding are clamped to zero
func (gp *GaussianProcess) Predict(X [][]float64) (mean, std []float64, err error) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	mean = make([]float64, len(X))
	std = make([]float64, len(X))

	if gp.chol == nil {
		for i := range std {
			std[i] = 1
		}

		return mean, std, nil
	}

	n := len(gp.train)
	for i, row := range X {
		if len(row) != len(gp.lower) {
			return nil, nil, errShape
		}

		x := scaleRow(row, gp.lower, gp.span)

		k := mat.NewVecDense(n, nil)
		for j := range gp.train {
			k.SetVec(j, RBFKernel(x, gp.train[j], gp.lengthScale))
		}

		mean[i] = gp.yMean + mat.Dot(k, gp.weights)

		v := mat.NewVecDense(n, nil)
		if err := solve(gp.chol, v, k); err != nil {
			return nil, nil, fmt.Errorf("gaussian process: %w", err)
		}

		variance := gp.s2 * (1 - mat.Dot(k, v))
		std[i] = math.Sqrt(math.Max(variance, 0))
	}

	return mean, std, nil
}

// LengthScale returns the kernel width chosen by the last fit, or 0 before
// the first fit.
func (gp *GaussianProcess) LengthScale() float64 {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return gp.lengthScale
}

//////
// Helpers.
//////

// featureRange returns the per-dimension minimum and range of X. Constant
// dimensions get a range of 1 so they scale to zero.
func featureRange(X [][]float64) (lower, span []float64) {
	dim := len(X[0])
	lower = make([]float64, dim)
	span = make([]float64, dim)

	column := make([]float64, len(X))
	for d := 0; d < dim; d++ {
		for i, row := range X {
			column[i] = row[d]
		}

		lo, hi := floats.Min(column), floats.Max(column)
		lower[d] = lo
		span[d] = hi - lo

		if span[d] == 0 {
			span[d] = 1
		}
	}

	return lower, span
}

// solve wraps Cholesky.SolveVecTo. Ill-conditioning is reported by gonum as
// a mat.Condition error alongside a usable solution, so it is not fatal here.
func solve(chol *mat.Cholesky, dst *mat.VecDense, b mat.Vector) error {
	err := chol.SolveVecTo(dst, b)

	var cond mat.Condition
	if errors.As(err, &cond) {
		return nil
	}

	return err
}

func scaleRow(row, lower, span []float64) []float64 {
	out := make([]float64, len(row))
	for d, v := range row {
		out[d] = (v - lower[d]) / span[d]
	}

	return out
}
