package changepoint

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/chrissnell/changepoint/pkg/numeric"
)

// parallelGramThreshold is the sample count below which the Gram matrix is
// built on the calling goroutine.
const parallelGramThreshold = 256

// CostRBF is the Gaussian kernel cost: trace minus the mean of the segment's
// Gram block, k(xi, xj) = exp(-gamma * ||xi - xj||²).
//
// Fit precomputes the full Gram matrix and a 2-D prefix-sum table over it so
// that any [start, end) query costs O(1).
type CostRBF struct {
	gamma   float64
	workers int

	fitted      bool
	n           int
	fittedGamma float64
	gram        *mat.SymDense
	prefix      []float64 // (n+1)x(n+1), prefix[i*(n+1)+j] = Σ_{a<i,b<j} K[a][b]
	diag        []float64 // diag[i] = Σ_{a<i} K[a][a]
}

// NewCostRBF returns an unfitted RBF cost. A gamma of zero or less selects
// the median heuristic at each Fit.
func NewCostRBF(gamma float64) *CostRBF {
	return &CostRBF{
		gamma:   gamma,
		workers: runtime.GOMAXPROCS(0),
	}
}

// SetWorkers bounds the goroutines used to build the Gram matrix.
func (c *CostRBF) SetWorkers(workers int) {
	if workers < 1 {
		workers = 1
	}
	c.workers = workers
}

// Gamma returns the bandwidth in effect for the current fit, or the
// configured value before any fit.
func (c *CostRBF) Gamma() float64 {
	if c.fitted {
		return c.fittedGamma
	}
	return c.gamma
}

// Fit computes the bandwidth (if not configured), the Gram matrix and its
// prefix sums. State is swapped in only once everything has been built.
func (c *CostRBF) Fit(signal *Signal) error {
	if signal == nil {
		return fmt.Errorf("rbf fit: %w", ErrUninitialized)
	}

	gamma := c.gamma
	if gamma <= 0 {
		gamma = numeric.MedianHeuristicGamma(signal.channels)
	}

	n := signal.Len()
	var gram *mat.SymDense
	if n > 0 {
		var err error
		gram, err = buildGram(signal.channels, n, gamma, c.workers)
		if err != nil {
			return fmt.Errorf("rbf fit: %w", err)
		}
	}
	prefix, diag := gramPrefix(gram, n)

	c.fittedGamma = gamma
	c.gram = gram
	c.prefix = prefix
	c.diag = diag
	c.n = n
	c.fitted = true
	return nil
}

// ComputeCost returns trace - sum/len of the Gram block [start, end)².
func (c *CostRBF) ComputeCost(start, end int) (float64, error) {
	if err := checkSegment(c.fitted, c.n, start, end); err != nil {
		return 0, err
	}
	if end-start == 1 {
		return 0, nil
	}

	stride := c.n + 1
	total := c.prefix[end*stride+end] - c.prefix[start*stride+end] -
		c.prefix[end*stride+start] + c.prefix[start*stride+start]
	trace := c.diag[end] - c.diag[start]

	cost := trace - total/float64(end-start)
	if cost < 0 {
		cost = 0
	}
	return cost, nil
}

// directCost evaluates the same quantity straight from the Gram block.
func (c *CostRBF) directCost(start, end int) (float64, error) {
	if err := checkSegment(c.fitted, c.n, start, end); err != nil {
		return 0, err
	}
	if end-start == 1 {
		return 0, nil
	}

	var trace, total float64
	for i := start; i < end; i++ {
		for j := start; j < end; j++ {
			val := c.gram.At(i, j)
			total += val
			if i == j {
				trace += val
			}
		}
	}
	return trace - total/float64(end-start), nil
}

// Len returns the number of fitted samples.
func (c *CostRBF) Len() int {
	return c.n
}

// buildGram fills the upper triangle of the kernel matrix. Rows are dealt
// round-robin to workers; each cell is written by exactly one goroutine and
// computed the same way as a sequential fill.
func buildGram(channels [][]float64, n int, gamma float64, workers int) (*mat.SymDense, error) {
	gram := mat.NewSymDense(n, nil)

	fillRows := func(first, step int) {
		for i := first; i < n; i += step {
			for j := i; j < n; j++ {
				gram.SetSym(i, j, math.Exp(-gamma*numeric.SqDist(channels, i, j)))
			}
		}
	}

	if n < parallelGramThreshold || workers <= 1 {
		fillRows(0, 1)
		return gram, nil
	}

	workers = min(workers, n)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			fillRows(w, workers)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return gram, nil
}

func gramPrefix(gram *mat.SymDense, n int) (prefix, diag []float64) {
	stride := n + 1
	prefix = make([]float64, stride*stride)
	diag = make([]float64, stride)
	for i := 1; i <= n; i++ {
		var rowSum float64
		for j := 1; j <= n; j++ {
			rowSum += gram.At(i-1, j-1)
			prefix[i*stride+j] = prefix[(i-1)*stride+j] + rowSum
		}
		diag[i] = diag[i-1] + gram.At(i-1, i-1)
	}
	return prefix, diag
}
