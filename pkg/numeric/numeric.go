// Package numeric holds the small statistical primitives shared by the cost
// functions and the collaborator utilities. Everything here is a pure function
// over borrowed slices; nothing keeps state between calls.
package numeric

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of x, or NaN for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// CumSum returns the prefix sums of x with a leading zero, so that
// out[j]-out[i] is the sum of x[i:j].
func CumSum(x []float64) []float64 {
	out := make([]float64, len(x)+1)
	floats.CumSum(out[1:], x)
	return out
}

// CumSumSquares is CumSum over the element-wise squares of x.
func CumSumSquares(x []float64) []float64 {
	sq := make([]float64, len(x))
	floats.MulTo(sq, x, x)
	return CumSum(sq)
}

// Center returns a copy of x with its mean subtracted.
func Center(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	if len(x) > 0 {
		floats.AddConst(-stat.Mean(x, nil), out)
	}
	return out
}

// Median returns the median of x without reordering it. Even-length input
// yields the mean of the two middle order statistics. Empty input yields NaN.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	buf := make([]float64, len(x))
	copy(buf, x)
	return MedianInPlace(buf)
}

// MedianInPlace is Median but uses x as scratch space and leaves it partially
// ordered.
func MedianInPlace(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	upper := Select(x, n/2)
	if n%2 == 1 {
		return upper
	}
	// Select leaves everything left of n/2 no larger than the pivot.
	lower := floats.Max(x[:n/2])
	return (lower + upper) / 2
}

// Select returns the k-th smallest element of x (zero based) using a
// three-way quickselect. On return x[k] holds that element, x[:k] holds
// values no larger and x[k+1:] values no smaller. x is modified.
func Select(x []float64, k int) float64 {
	lo, hi := 0, len(x)-1
	for lo < hi {
		pivot := medianOfThree(x[lo], x[lo+(hi-lo)/2], x[hi])
		lt, i, gt := lo, lo, hi
		for i <= gt {
			switch {
			case x[i] < pivot:
				x[lt], x[i] = x[i], x[lt]
				lt++
				i++
			case x[i] > pivot:
				x[i], x[gt] = x[gt], x[i]
				gt--
			default:
				i++
			}
		}
		switch {
		case k < lt:
			hi = lt - 1
		case k > gt:
			lo = gt + 1
		default:
			return x[k]
		}
	}
	return x[k]
}

func medianOfThree(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}
