// Package cusum implements a two-sided tabular CUSUM accumulator for
// streaming change detection.
package cusum

import (
	"fmt"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

// Direction of a detected shift.
type Direction string

const (
	// Up is a shift towards higher values
	Up Direction = "up"

	// Down is a shift towards lower values
	Down Direction = "down"
)

// Result is the outcome of a single Update.
type Result struct {
	IsChangePoint bool
	Direction     Direction
	High          float64 // upper cumulative sum S+ before any reset
	Low           float64 // lower cumulative sum S- before any reset
}

// CUSUM tracks the upper and lower cumulative sums of normalized values.
// Drift is the slack k subtracted every step, Threshold the decision level h.
type CUSUM struct {
	Drift     float64
	Threshold float64
	High      float64
	Low       float64
}

// New creates a detector. Threshold must be positive and drift non-negative.
func New(drift, threshold float64) (*CUSUM, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("cusum threshold %v must be positive: %w", threshold, changepoint.ErrArgumentRange)
	}
	if drift < 0 {
		return nil, fmt.Errorf("cusum drift %v must not be negative: %w", drift, changepoint.ErrArgumentRange)
	}
	return &CUSUM{Drift: drift, Threshold: threshold}, nil
}

// Update feeds one normalized value, (x - mean) / std, and reports whether
// either sum crossed the threshold. A crossing resets that sum to zero.
func (c *CUSUM) Update(normalized float64) Result {
	c.High = max(0, c.High+normalized-c.Drift)
	c.Low = max(0, c.Low-normalized-c.Drift)

	result := Result{High: c.High, Low: c.Low}

	if c.High > c.Threshold {
		result.IsChangePoint = true
		result.Direction = Up
		c.High = 0
	}
	if c.Low > c.Threshold {
		result.IsChangePoint = true
		result.Direction = Down
		c.Low = 0
	}
	return result
}

// Reset clears both sums.
func (c *CUSUM) Reset() {
	c.High = 0
	c.Low = 0
}

// Alarm is a threshold crossing found by Detect.
type Alarm struct {
	Index     int       `json:"index"`
	Direction Direction `json:"direction"`
}

// Detect runs a fresh accumulator over values, normalizing each with mean
// and std, and returns every alarm in order.
func Detect(values []float64, mean, std, drift, threshold float64) ([]Alarm, error) {
	if std <= 0 {
		return nil, fmt.Errorf("cusum std %v must be positive: %w", std, changepoint.ErrArgumentRange)
	}
	c, err := New(drift, threshold)
	if err != nil {
		return nil, err
	}

	var alarms []Alarm
	for i, x := range values {
		if r := c.Update((x - mean) / std); r.IsChangePoint {
			alarms = append(alarms, Alarm{Index: i, Direction: r.Direction})
		}
	}
	return alarms, nil
}
