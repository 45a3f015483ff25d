package changepoint

import (
	"fmt"
	"math"

	"github.com/chrissnell/changepoint/pkg/numeric"
)

// CostL1 is the sum of absolute deviations from the per-channel segment
// median. Each query runs a quickselect over a scratch copy of the segment,
// so a CostL1 must not be queried from several goroutines at once.
type CostL1 struct {
	fitted   bool
	n        int
	channels [][]float64
	scratch  []float64
}

// NewCostL1 returns an unfitted L1 cost.
func NewCostL1() *CostL1 {
	return &CostL1{}
}

// Fit keeps a reference to the signal's channels. Signals are immutable, so
// no copy is needed.
func (c *CostL1) Fit(signal *Signal) error {
	if signal == nil {
		return fmt.Errorf("l1 fit: %w", ErrUninitialized)
	}

	c.channels = signal.channels
	c.n = signal.Len()
	c.scratch = make([]float64, 0, signal.Len())
	c.fitted = true
	return nil
}

// ComputeCost returns Σ_d Σ|x - median_d| over [start, end).
func (c *CostL1) ComputeCost(start, end int) (float64, error) {
	if err := checkSegment(c.fitted, c.n, start, end); err != nil {
		return 0, err
	}
	if end-start == 1 {
		return 0, nil
	}

	var cost float64
	for _, ch := range c.channels {
		segment := ch[start:end]
		c.scratch = append(c.scratch[:0], segment...)
		median := numeric.MedianInPlace(c.scratch)
		for _, x := range segment {
			cost += math.Abs(x - median)
		}
	}
	return cost, nil
}

// Len returns the number of fitted samples.
func (c *CostL1) Len() int {
	return c.n
}
