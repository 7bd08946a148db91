package protoclust

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyClustered is returned by AddSample once clustering started.
	ErrAlreadyClustered = errors.New("protoclust: can't add samples after they have been clustered")

	// ErrDisposed is returned by every operation on a disposed engine.
	ErrDisposed = errors.New("protoclust: engine disposed")

	// ErrDimensionMismatch is returned when a feature vector or descriptor
	// list does not match the engine's dimensionality.
	ErrDimensionMismatch = errors.New("protoclust: dimension mismatch")

	// ErrInvalidCharID is returned for negative character ids.
	ErrInvalidCharID = errors.New("protoclust: character id must be >= 0")

	// ErrOutOfRange is returned for a feature value outside its linear
	// dimension's [Min, Max].
	ErrOutOfRange = errors.New("protoclust: feature value out of range")

	// ErrEmpty is returned when clustering an engine without samples.
	ErrEmpty = errors.New("protoclust: no samples to cluster")

	// ErrNonConvergence matches every *NonConvergenceError.
	ErrNonConvergence = errors.New("protoclust: root finder did not converge")
)

// NonConvergenceError reports a chi-squared threshold the root finder could
// not solve within its iteration bound.
type NonConvergenceError struct {
	DegreesOfFreedom int
	Alpha            float64
	Iterations       int
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("protoclust: chi-squared threshold for dof=%d alpha=%g did not converge after %d iterations",
		e.DegreesOfFreedom, e.Alpha, e.Iterations)
}

func (e *NonConvergenceError) Is(target error) bool { return target == ErrNonConvergence }

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("protoclust: %s %s", e.Field, e.Reason)
}
