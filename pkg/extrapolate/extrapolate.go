// Package extrapolate projects a series forward from its trailing trend.
package extrapolate

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

// Fit is a least-squares line y = Intercept + Slope*x over sample positions.
type Fit struct {
	Intercept float64
	Slope     float64
	RSquared  float64
}

// At evaluates the line at sample position x.
func (f Fit) At(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// LinearFit regresses values on their positions 0..n-1.
func LinearFit(values []float64) (Fit, error) {
	if len(values) < 2 {
		return Fit{}, fmt.Errorf("linear fit needs at least 2 values, got %d: %w", len(values), changepoint.ErrArgumentRange)
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}

	alpha, beta := stat.LinearRegression(xs, values, nil, false)
	return Fit{
		Intercept: alpha,
		Slope:     beta,
		RSquared:  stat.RSquared(xs, values, nil, alpha, beta),
	}, nil
}

// Linear fits a line to values and returns its next horizon points, at
// positions n..n+horizon-1.
func Linear(values []float64, horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("horizon %d must be positive: %w", horizon, changepoint.ErrArgumentRange)
	}
	fit, err := LinearFit(values)
	if err != nil {
		return nil, err
	}

	n := len(values)
	out := make([]float64, horizon)
	for i := range out {
		out[i] = fit.At(float64(n + i))
	}
	return out, nil
}
