// Package filter provides the smoothing filters applied to raw series before
// change-point detection.
package filter

import (
	"fmt"

	"github.com/chrissnell/changepoint/pkg/changepoint"
	"github.com/chrissnell/changepoint/pkg/numeric"
)

// Kind identifies a smoothing filter.
type Kind string

const (
	// KindNone leaves the data unchanged
	KindNone Kind = "none"

	// KindMedian is a zero-padded running median
	KindMedian Kind = "median"

	// KindMovingAverage is a centered running mean
	KindMovingAverage Kind = "moving_average"

	// KindSavGol is a Savitzky-Golay polynomial smoother
	KindSavGol Kind = "savgol"
)

// Apply runs the filter named by kind. polyOrder is only used by KindSavGol.
func Apply(kind Kind, data []float64, window, polyOrder int) ([]float64, error) {
	switch kind {
	case KindNone, "":
		out := make([]float64, len(data))
		copy(out, data)
		return out, nil
	case KindMedian:
		return MedFilt(data, window)
	case KindMovingAverage:
		return MovingAverage(data, window)
	case KindSavGol:
		return SavGol(data, window, polyOrder)
	default:
		return nil, fmt.Errorf("unknown filter %q: %w", kind, changepoint.ErrArgumentRange)
	}
}

// MedFilt applies a median filter with zero-padding at both edges, matching
// scipy.signal.medfilt. kernelSize must be a positive odd integer.
func MedFilt(data []float64, kernelSize int) ([]float64, error) {
	if kernelSize < 1 || kernelSize%2 == 0 {
		return nil, fmt.Errorf("median kernel size %d must be a positive odd integer: %w", kernelSize, changepoint.ErrArgumentRange)
	}
	n := len(data)
	if n == 0 {
		return []float64{}, nil
	}

	half := kernelSize / 2
	result := make([]float64, n)
	window := make([]float64, kernelSize)

	for i := 0; i < n; i++ {
		for j := -half; j <= half; j++ {
			idx := i + j
			if idx < 0 || idx >= n {
				window[j+half] = 0.0
			} else {
				window[j+half] = data[idx]
			}
		}
		result[i] = numeric.Select(window, half)
	}
	return result, nil
}

// MovingAverage returns the centered running mean over an odd window. Near
// the edges the window is truncated to the samples that exist.
func MovingAverage(data []float64, window int) ([]float64, error) {
	if window < 1 || window%2 == 0 {
		return nil, fmt.Errorf("moving average window %d must be a positive odd integer: %w", window, changepoint.ErrArgumentRange)
	}

	n := len(data)
	sums := numeric.CumSum(data)
	half := window / 2
	out := make([]float64, n)
	for i := range out {
		lo := max(0, i-half)
		hi := min(n, i+half+1)
		out[i] = (sums[hi] - sums[lo]) / float64(hi-lo)
	}
	return out, nil
}
