package protoclust

import "math"

const (
	// chiAccuracy is the bracket width at which a chi-squared threshold is
	// considered solved.
	chiAccuracy = 0.01

	// minAlpha is the smallest right-tail probability a threshold is solved
	// for; smaller values are raised to it.
	minAlpha = 1e-200

	initialDelta = 0.1
	deltaRatio   = 0.1

	// maxSolveIterations bounds the root finder.
	maxSolveIterations = 10000
)

// solveFunc is a function whose root is searched by solve.
type solveFunc func(x float64) float64

// solve searches for x with f(x) = 0 starting at guess. It keeps the most
// recent points with positive and negative residual as a bracket, estimates
// the slope with a forward difference whose step shrinks to a tenth of the
// last update, and takes Newton steps until the bracket is narrower than
// accuracy. It only converges when a single root lies near guess with no
// extremum in between.
func solve(f solveFunc, guess, accuracy float64) (x float64, iterations int, ok bool) {
	x = guess
	delta := initialDelta
	lastPos := math.MaxFloat32
	lastNeg := -math.MaxFloat32

	fx := f(x)
	for math.Abs(lastPos-lastNeg) > accuracy {
		if fx == 0 {
			return x, iterations, true
		}
		if iterations >= maxSolveIterations {
			return x, iterations, false
		}
		iterations++

		if fx < 0 {
			lastNeg = x
		} else {
			lastPos = x
		}

		slope := (f(x+delta) - fx) / delta
		step := fx / slope
		x -= step
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return x, iterations, false
		}

		if d := math.Abs(step) * deltaRatio; d < delta {
			delta = d
		}
		fx = f(x)
	}
	return x, iterations, true
}

// chiArea returns the right-tail area of a chi-squared distribution with an
// even number of degrees of freedom above x, minus alpha. The tail of an
// even-dof chi-squared distribution has the closed form
// exp(-x/2) * sum_{i=0}^{dof/2-1} (x/2)^i / i!.
func chiArea(dof int, alpha float64) solveFunc {
	terms := dof/2 - 1
	return func(x float64) float64 {
		series := 1.0
		denominator := 1.0
		power := 1.0
		for i := 1; i <= terms; i++ {
			denominator *= float64(2 * i)
			power *= x
			series += power / denominator
		}
		return series*math.Exp(-0.5*x) - alpha
	}
}

// normalizeChiArgs clamps alpha into [minAlpha, 1] and rounds dof up to the
// next even number, which chiArea requires.
func normalizeChiArgs(dof int, alpha float64) (int, float64) {
	if alpha < minAlpha {
		alpha = minAlpha
	}
	if alpha > 1 {
		alpha = 1
	}
	if dof%2 != 0 {
		dof++
	}
	return dof, alpha
}

// computeChiSquared solves for the chi-squared value that leaves alpha in the
// right tail of a distribution with dof degrees of freedom.
func computeChiSquared(dof int, alpha float64) (float64, error) {
	dof, alpha = normalizeChiArgs(dof, alpha)
	if alpha == 1 {
		// the whole distribution lies above zero
		return 0, nil
	}
	x, iterations, ok := solve(chiArea(dof, alpha), float64(dof), chiAccuracy)
	if !ok {
		return 0, &NonConvergenceError{DegreesOfFreedom: dof, Alpha: alpha, Iterations: iterations}
	}
	return x, nil
}
