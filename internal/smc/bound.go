package smc

import "math"

// RequiredRuns returns the Chernoff-Hoeffding sample size
// ceil(ln(2/(1-c)) / (2p^2)) for confidence c and precision p.
// Both must lie in (0, 1). The result is clamped to [1, math.MaxInt];
// Config.Validate rejects parameters whose bound does not fit.
func RequiredRuns(confidence, precision float64) int {
	n := requiredRuns(confidence, precision)
	switch {
	case !(n >= 1):
		return 1
	case n >= math.MaxInt:
		return math.MaxInt
	}
	return int(n)
}

// requiredRuns is the unclamped bound, which is +Inf or NaN outside (0, 1).
func requiredRuns(confidence, precision float64) float64 {
	return math.Ceil(math.Log(2/(1-confidence)) / (2 * precision * precision))
}

// HalfWidth returns the precision guaranteed at confidence c by n runs,
// the inverse of RequiredRuns. It returns 1 when n is zero.
func HalfWidth(n int, confidence float64) float64 {
	if n <= 0 {
		return 1
	}
	return math.Sqrt(math.Log(2/(1-confidence)) / (2 * float64(n)))
}
