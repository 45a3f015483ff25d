// Package kalman implements a one-dimensional random-walk Kalman filter used
// to smooth noisy series ahead of change-point detection.
package kalman

import (
	"fmt"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

// Filter estimates a level that drifts as a random walk.
//
//	x_k = x_{k-1} + w,  w ~ N(0, Q)
//	z_k = x_k + v,      v ~ N(0, R)
type Filter struct {
	x, p float64 // state estimate and its variance
	q, r float64 // process and measurement noise variances
}

// New creates a filter with initial state x0 and variance p0. q and p0 must
// be non-negative and r strictly positive.
func New(x0, p0, q, r float64) (*Filter, error) {
	if p0 < 0 || q < 0 {
		return nil, fmt.Errorf("kalman variances p0=%v q=%v must not be negative: %w", p0, q, changepoint.ErrArgumentRange)
	}
	if r <= 0 {
		return nil, fmt.Errorf("kalman measurement variance %v must be positive: %w", r, changepoint.ErrArgumentRange)
	}
	return &Filter{x: x0, p: p0, q: q, r: r}, nil
}

// Predict advances one step. The level is unchanged and its variance grows
// by Q.
func (f *Filter) Predict() {
	f.p += f.q
}

// Update folds measurement z into the estimate and returns the residual
// z - x taken before the correction.
func (f *Filter) Update(z float64) float64 {
	s := f.p + f.r
	k := f.p / s
	residual := z - f.x

	f.x += k * residual
	f.p *= 1 - k
	return residual
}

// State returns the current level estimate.
func (f *Filter) State() float64 {
	return f.x
}

// Variance returns the current estimate variance.
func (f *Filter) Variance() float64 {
	return f.p
}

// Smooth runs a predict/update cycle over every value and returns the
// filtered estimates. The filter keeps its final state.
func (f *Filter) Smooth(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, z := range values {
		f.Predict()
		f.Update(z)
		out[i] = f.x
	}
	return out
}

// Smooth filters values with a fresh filter seeded at the first sample.
func Smooth(values []float64, q, r float64) ([]float64, error) {
	if len(values) == 0 {
		return []float64{}, nil
	}
	f, err := New(values[0], r, q, r)
	if err != nil {
		return nil, err
	}
	return f.Smooth(values), nil
}
