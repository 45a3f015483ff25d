package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

// SavGol smooths data with a Savitzky-Golay filter: every sample is replaced
// by the value at its position of the least-squares polynomial of degree
// polyOrder fitted over the surrounding window. The first and last half
// windows are taken from the polynomials fitted to the first and last full
// windows.
func SavGol(data []float64, window, polyOrder int) ([]float64, error) {
	if window < 1 || window%2 == 0 {
		return nil, fmt.Errorf("savgol window %d must be a positive odd integer: %w", window, changepoint.ErrArgumentRange)
	}
	if polyOrder < 0 || polyOrder >= window {
		return nil, fmt.Errorf("savgol polyorder %d must be in [0, %d): %w", polyOrder, window, changepoint.ErrArgumentRange)
	}

	n := len(data)
	if n == 0 {
		return []float64{}, nil
	}
	if n < window {
		return nil, fmt.Errorf("savgol window %d exceeds %d samples: %w", window, n, changepoint.ErrArgumentRange)
	}

	pinv, err := savgolProjection(window, polyOrder)
	if err != nil {
		return nil, err
	}

	half := window / 2
	center := evalWeights(pinv, 0)
	out := make([]float64, n)
	for i := half; i < n-half; i++ {
		out[i] = floats.Dot(center, data[i-half:i+half+1])
	}

	// Edges: evaluate the first/last window's polynomial at each offset.
	for k := 0; k < half; k++ {
		out[k] = floats.Dot(evalWeights(pinv, float64(k-half)), data[:window])
		out[n-1-k] = floats.Dot(evalWeights(pinv, float64(half-k)), data[n-window:])
	}
	return out, nil
}

// savgolProjection returns the (polyOrder+1) x window pseudo-inverse of the
// Vandermonde matrix over offsets -half..half. Row j maps a window of samples
// to the j-th polynomial coefficient.
func savgolProjection(window, polyOrder int) (*mat.Dense, error) {
	half := window / 2
	cols := polyOrder + 1

	vander := mat.NewDense(window, cols, nil)
	for i := 0; i < window; i++ {
		offset := float64(i - half)
		for j := 0; j < cols; j++ {
			vander.Set(i, j, math.Pow(offset, float64(j)))
		}
	}

	ones := make([]float64, window)
	for i := range ones {
		ones[i] = 1
	}

	var qr mat.QR
	qr.Factorize(vander)

	pinv := mat.NewDense(cols, window, nil)
	if err := qr.SolveTo(pinv, false, mat.NewDiagDense(window, ones)); err != nil {
		return nil, fmt.Errorf("savgol least squares: %w", err)
	}
	return pinv, nil
}

// evalWeights returns the sample weights giving the fitted polynomial's value
// at offset x.
func evalWeights(pinv *mat.Dense, x float64) []float64 {
	rows, cols := pinv.Dims()
	weights := make([]float64, cols)
	pow := 1.0
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			weights[i] += pow * pinv.At(j, i)
		}
		pow *= x
	}
	return weights
}
