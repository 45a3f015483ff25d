package changepoint

import (
	"fmt"

	"github.com/chrissnell/changepoint/pkg/numeric"
)

// CostL2 is the sum of squared deviations from the per-channel segment mean.
// Queries are O(1) per channel from prefix sums built at Fit.
type CostL2 struct {
	fitted  bool
	n       int
	sums    [][]float64
	squares [][]float64
}

// NewCostL2 returns an unfitted L2 cost.
func NewCostL2() *CostL2 {
	return &CostL2{}
}

// Fit builds prefix sums of values and squared values for every channel.
// Channels are centered first; the cost is shift invariant and centering
// keeps Σx² - (Σx)²/n from cancelling badly on offset data.
func (c *CostL2) Fit(signal *Signal) error {
	if signal == nil {
		return fmt.Errorf("l2 fit: %w", ErrUninitialized)
	}

	sums := make([][]float64, signal.Dims())
	squares := make([][]float64, signal.Dims())
	for d, ch := range signal.channels {
		centered := numeric.Center(ch)
		sums[d] = numeric.CumSum(centered)
		squares[d] = numeric.CumSumSquares(centered)
	}

	c.sums = sums
	c.squares = squares
	c.n = signal.Len()
	c.fitted = true
	return nil
}

// ComputeCost returns Σ_d (Σx² - (Σx)²/len) over [start, end).
func (c *CostL2) ComputeCost(start, end int) (float64, error) {
	if err := checkSegment(c.fitted, c.n, start, end); err != nil {
		return 0, err
	}
	if end-start == 1 {
		return 0, nil
	}

	length := float64(end - start)
	var cost float64
	for d := range c.sums {
		sum := c.sums[d][end] - c.sums[d][start]
		sq := c.squares[d][end] - c.squares[d][start]
		cost += sq - sum*sum/length
	}
	if cost < 0 {
		cost = 0
	}
	return cost, nil
}

// Len returns the number of fitted samples.
func (c *CostL2) Len() int {
	return c.n
}
