package hpo

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/exp/constraints"
)

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// linspace returns n evenly spaced values over [lower, upper]. A single step
// yields the lower bound.
func linspace[T constraints.Integer | constraints.Float](lower, upper T, n int) []float64 {
	if n <= 0 {
		return nil
	}

	lo, hi := float64(lower), float64(upper)
	if n == 1 {
		return []float64{lo}
	}

	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}

	// Pin the end point so rounding never leaves it short of the bound.
	out[n-1] = hi

	return out
}

// clamp limits v to [lower, upper].
func clamp[T constraints.Ordered](v, lower, upper T) T {
	if v < lower {
		return lower
	}

	if v > upper {
		return upper
	}

	return v
}

// toFloat64 converts numeric values to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// valuesEqual compares two parameter values. Numbers compare by value across
// types so that 3 and 3.0 are equal.
func valuesEqual(a, b any) bool {
	fa, okA := toFloat64(a)
	fb, okB := toFloat64(b)
	if okA && okB {
		return fa == fb
	}

	if okA != okB {
		return false
	}

	return reflect.DeepEqual(a, b)
}

// indexOf returns the position of v in values, or -1.
func indexOf(values []any, v any) int {
	for i, candidate := range values {
		if valuesEqual(candidate, v) {
			return i
		}
	}

	return -1
}

// configKey renders a configuration canonically so that equal configurations
// produce equal keys.
func configKey(c Configuration) string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}

	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		v := c[name]
		if f, ok := toFloat64(v); ok {
			fmt.Fprintf(&b, "%s=%v;", name, f)
		} else {
			fmt.Fprintf(&b, "%s=%T:%v;", name, v, v)
		}
	}

	return b.String()
}
