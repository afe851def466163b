package hpo

import "math"

//////
// Available acquisition functions for Bayesian optimisation.
// Each function scores a candidate from the surrogate's prediction, balancing
// exploration (uncertain areas) and exploitation (areas predicted to be good).
// Results are higher-is-better, and so are the scores.
//////

// ExpectedImprovement (EI) calculates the expected value of the improvement
// over the best result observed so far.
//
// How it works:
//
//	a  = mean - BestSoFar - Xi
//	z  = a / std
//	EI = a * Φ(z) + std * φ(z)
//
// where Φ and φ are the standard normal CDF and PDF.
//
// Zero uncertainty:
// - When std is zero, z is undefined. EI then returns max(a, 0), the limit of
//   the formula as std goes to zero: the improvement is known exactly.
//
// Example:
//
//	params := AcquisitionParams{
//	    BestSoFar: 0.91, // Best accuracy so far
//	}
//	expected := ExpectedImprovement(0.93, 0.02, params)
func ExpectedImprovement(mean, std float64, params AcquisitionParams) float64 {
	a := mean - params.BestSoFar - params.Xi

	if std <= 0 {
		return math.Max(a, 0)
	}

	z := a / std

	return a*normalCDF(z) + std*normalPDF(z)
}

// ProbabilityOfImprovement (PI) calculates the probability that a candidate
// improves upon BestSoFar by at least Xi.
//
// When to use:
// - When you want to be conservative in exploring new points
// - When being "probably better" matters more than "how much better"
//
// With zero uncertainty the probability is 1 if the predicted mean improves
// on the target and 0 otherwise.
func ProbabilityOfImprovement(mean, std float64, params AcquisitionParams) float64 {
	a := mean - params.BestSoFar - params.Xi

	if std <= 0 {
		if a > 0 {
			return 1
		}

		return 0
	}

	return normalCDF(a / std)
}

// UCB implements the Upper Confidence Bound acquisition function.
//
// How it works:
// - Adds Beta standard deviations to the predicted mean
// - Higher Beta means more exploration
//
// Example:
//
//	params := AcquisitionParams{
//	    Beta: 2.0,
//	}
//	value := UCB(0.5, 0.2, params)
func UCB(mean, std float64, params AcquisitionParams) float64 {
	return mean + params.Beta*std
}

// ThompsonSampling draws one sample from the predictive distribution.
//
// Warning:
// - params.RandomState must not be nil; Bayesian optimisation fills it with
//   its own generator when unset.
func ThompsonSampling(mean, std float64, params AcquisitionParams) float64 {
	return mean + std*params.RandomState.NormFloat64()
}
