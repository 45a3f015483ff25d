// Package resample reduces series length ahead of detection and provides a
// smooth Chebyshev approximation of a series.
package resample

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

// Downsample replaces every block of factor samples by its mean. A trailing
// partial block is averaged over the samples it has.
func Downsample(data []float64, factor int) ([]float64, error) {
	if factor < 1 {
		return nil, fmt.Errorf("downsample factor %d must be positive: %w", factor, changepoint.ErrArgumentRange)
	}
	out := make([]float64, 0, (len(data)+factor-1)/factor)
	for lo := 0; lo < len(data); lo += factor {
		hi := min(lo+factor, len(data))
		out = append(out, stat.Mean(data[lo:hi], nil))
	}
	return out, nil
}

// Decimate keeps every factor-th sample starting with the first.
func Decimate(data []float64, factor int) ([]float64, error) {
	if factor < 1 {
		return nil, fmt.Errorf("decimate factor %d must be positive: %w", factor, changepoint.ErrArgumentRange)
	}
	out := make([]float64, 0, (len(data)+factor-1)/factor)
	for i := 0; i < len(data); i += factor {
		out = append(out, data[i])
	}
	return out, nil
}

// Chebyshev is a least-squares Chebyshev series fitted over sample positions
// 0..n-1, which are mapped onto [-1, 1].
type Chebyshev struct {
	Coeffs []float64
	n      int
}

// ChebyshevFit fits a Chebyshev series of the given degree to data. The
// degree must be non-negative and smaller than len(data).
func ChebyshevFit(data []float64, degree int) (*Chebyshev, error) {
	n := len(data)
	if degree < 0 || degree >= n {
		return nil, fmt.Errorf("chebyshev degree %d must be in [0, %d): %w", degree, n, changepoint.ErrArgumentRange)
	}

	c := &Chebyshev{n: n}
	basis := mat.NewDense(n, degree+1, nil)
	for i := 0; i < n; i++ {
		basis.SetRow(i, chebyshevBasis(c.scale(float64(i)), degree))
	}

	var qr mat.QR
	qr.Factorize(basis)

	var coeffs mat.Dense
	if err := qr.SolveTo(&coeffs, false, mat.NewVecDense(n, data)); err != nil {
		return nil, fmt.Errorf("chebyshev least squares: %w", err)
	}

	c.Coeffs = mat.Col(nil, 0, &coeffs)
	return c, nil
}

// Eval returns the series value at sample position x.
func (c *Chebyshev) Eval(x float64) float64 {
	t := c.scale(x)

	// Clenshaw recurrence.
	var b1, b2 float64
	for k := len(c.Coeffs) - 1; k >= 1; k-- {
		b1, b2 = 2*t*b1-b2+c.Coeffs[k], b1
	}
	return t*b1 - b2 + c.Coeffs[0]
}

// Values evaluates the series at every fitted sample position.
func (c *Chebyshev) Values() []float64 {
	out := make([]float64, c.n)
	for i := range out {
		out[i] = c.Eval(float64(i))
	}
	return out
}

func (c *Chebyshev) scale(x float64) float64 {
	if c.n < 2 {
		return 0
	}
	return 2*x/float64(c.n-1) - 1
}

// chebyshevBasis returns T_0(t)..T_degree(t).
func chebyshevBasis(t float64, degree int) []float64 {
	row := make([]float64, degree+1)
	row[0] = 1
	if degree >= 1 {
		row[1] = t
	}
	for k := 2; k <= degree; k++ {
		row[k] = 2*t*row[k-1] - row[k-2]
	}
	return row
}
