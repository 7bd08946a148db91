package protoclust

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestChiArea_MatchesSurvival(t *testing.T) {
	for _, dof := range []int{2, 4, 10, 36} {
		f := chiArea(dof, 0)
		ref := distuv.ChiSquared{K: float64(dof)}
		for _, x := range []float64{0.5, float64(dof), 3 * float64(dof)} {
			assert.InDelta(t, ref.Survival(x), f(x), 1e-9, "dof=%d x=%v", dof, x)
		}
	}
}

func TestComputeChiSquared_MatchesQuantile(t *testing.T) {
	for _, alpha := range []float64{0.05, 1e-3, 1e-6} {
		for _, dof := range []int{2, 4, 6, 14, 36} {
			t.Run(fmt.Sprintf("dof=%d/alpha=%g", dof, alpha), func(t *testing.T) {
				x, err := computeChiSquared(dof, alpha)
				require.NoError(t, err)
				ref := distuv.ChiSquared{K: float64(dof)}
				assert.InDelta(t, ref.Quantile(1-alpha), x, 2*chiAccuracy)
			})
		}
	}
}

func TestComputeChiSquared_KnownValues(t *testing.T) {
	x, err := computeChiSquared(2, 0.05)
	require.NoError(t, err)
	assert.InDelta(t, 5.991, x, 0.01)

	x, err = computeChiSquared(10, 0.05)
	require.NoError(t, err)
	assert.InDelta(t, 18.307, x, 0.01)
}

func TestComputeChiSquared_OddDegreesRoundUp(t *testing.T) {
	odd, err := computeChiSquared(5, 0.01)
	require.NoError(t, err)
	even, err := computeChiSquared(6, 0.01)
	require.NoError(t, err)
	assert.Equal(t, even, odd)
}

func TestComputeChiSquared_AlphaClamped(t *testing.T) {
	tiny, err := computeChiSquared(4, 0)
	require.NoError(t, err)
	floor, err := computeChiSquared(4, minAlpha)
	require.NoError(t, err)
	assert.Equal(t, floor, tiny)
	assert.False(t, math.IsInf(tiny, 0))

	x, err := computeChiSquared(4, 1.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, x)
}

func TestNormalizeChiArgs(t *testing.T) {
	dof, alpha := normalizeChiArgs(3, 2)
	assert.Equal(t, 4, dof)
	assert.Equal(t, 1.0, alpha)

	dof, alpha = normalizeChiArgs(8, 1e-300)
	assert.Equal(t, 8, dof)
	assert.Equal(t, minAlpha, alpha)
}

// --- root finder ---

func TestSolve_Linear(t *testing.T) {
	x, _, ok := solve(func(x float64) float64 { return 3 - 2*x }, 0, 1e-6)
	require.True(t, ok)
	assert.InDelta(t, 1.5, x, 1e-6)
}

func TestSolve_NoRootReportsNonConvergence(t *testing.T) {
	_, iterations, ok := solve(func(x float64) float64 { return x*x + 1 }, 1, chiAccuracy)
	assert.False(t, ok)
	assert.LessOrEqual(t, iterations, maxSolveIterations)
}

func TestNonConvergenceError(t *testing.T) {
	var err error = &NonConvergenceError{DegreesOfFreedom: 4, Alpha: 0.1, Iterations: maxSolveIterations}
	assert.True(t, errors.Is(err, ErrNonConvergence))
	assert.Contains(t, err.Error(), "dof=4")

	var nce *NonConvergenceError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &nce))
	assert.Equal(t, 4, nce.DegreesOfFreedom)
}
