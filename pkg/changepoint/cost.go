// Package changepoint finds the optimal segmentation of a signal with PELT
// over a pluggable segment cost.
package changepoint

import (
	"fmt"
	"strings"
)

// Cost measures the dispersion of a contiguous sub-segment of a fitted signal.
// Implementations own their fitted state; Fit replaces it entirely and a
// failed Fit leaves the previous state in place.
type Cost interface {
	// Fit binds the cost to signal. A nil signal fails with ErrUninitialized.
	Fit(signal *Signal) error

	// ComputeCost returns the non-negative cost of samples [start, end).
	// Single-sample segments cost exactly zero.
	ComputeCost(start, end int) (float64, error)

	// Len returns the number of samples of the fitted signal.
	Len() int
}

// CostKind names a built-in cost function.
type CostKind string

const (
	// CostKindL1 is the median-based absolute deviation cost.
	CostKindL1 CostKind = "l1"

	// CostKindL2 is the mean-based squared deviation cost.
	CostKindL2 CostKind = "l2"

	// CostKindRBF is the Gaussian kernel cost.
	CostKindRBF CostKind = "rbf"
)

// NewCost returns a fresh built-in cost. gamma only applies to RBF; zero or
// negative selects the median heuristic.
func NewCost(kind CostKind, gamma float64) (Cost, error) {
	switch CostKind(strings.ToLower(string(kind))) {
	case CostKindL1:
		return NewCostL1(), nil
	case CostKindL2, "":
		return NewCostL2(), nil
	case CostKindRBF:
		return NewCostRBF(gamma), nil
	default:
		return nil, fmt.Errorf("unknown cost function %q: %w", kind, ErrArgumentRange)
	}
}

// FullCost returns the cost of the whole fitted signal.
func FullCost(c Cost) (float64, error) {
	return c.ComputeCost(0, c.Len())
}

func checkSegment(fitted bool, n, start, end int) error {
	if !fitted {
		return fmt.Errorf("compute cost: %w", ErrUninitialized)
	}
	if end <= start || start < 0 || end > n {
		return fmt.Errorf("compute cost [%d, %d) on %d samples: %w", start, end, n, ErrSegmentLength)
	}
	return nil
}
