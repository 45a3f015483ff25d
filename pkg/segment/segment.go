// Package segment summarizes the pieces of a series between detected
// breakpoints and classifies each one by the shape of its level change.
package segment

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

// Class describes how the level moved inside a segment.
type Class string

const (
	// Rise is a sustained increase
	Rise Class = "rise"

	// Spike rose by at least the threshold but settled back
	Spike Class = "spike"

	// Fall dropped by at least the threshold without rising
	Fall Class = "fall"

	// Plateau stayed within the threshold
	Plateau Class = "plateau"
)

// Segment is the summary of values[Start:End].
type Segment struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	StartValue float64 `json:"start_value"`
	EndValue   float64 `json:"end_value"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	NetChange  float64 `json:"net_change"`
	MaxRise    float64 `json:"max_rise"`
	MaxFall    float64 `json:"max_fall"`
	Class      Class   `json:"class"`
	Gain       float64 `json:"gain"` // level gained: net change for a rise, peak rise for a spike
}

// Len is the number of samples in the segment.
func (s Segment) Len() int {
	return s.End - s.Start
}

// Summarize splits values at breakpoints and summarizes each piece.
// Breakpoints must be strictly increasing and inside (0, len(values)), which
// is what Pelt.Predict returns. minChange is the level change that separates
// a plateau from a rise, spike or fall.
func Summarize(values []float64, breakpoints []int, minChange float64) ([]Segment, error) {
	if minChange < 0 {
		return nil, fmt.Errorf("min change %v must not be negative: %w", minChange, changepoint.ErrArgumentRange)
	}
	n := len(values)
	if n == 0 {
		return []Segment{}, nil
	}

	bounds := make([]int, 0, len(breakpoints)+2)
	bounds = append(bounds, 0)
	for _, bp := range breakpoints {
		if bp <= bounds[len(bounds)-1] || bp >= n {
			return nil, fmt.Errorf("breakpoint %d out of order or outside (0, %d): %w", bp, n, changepoint.ErrArgumentRange)
		}
		bounds = append(bounds, bp)
	}
	bounds = append(bounds, n)

	segments := make([]Segment, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		segments = append(segments, summarize(values, bounds[i], bounds[i+1], minChange))
	}
	return segments, nil
}

func summarize(values []float64, start, end int, minChange float64) Segment {
	piece := values[start:end]

	s := Segment{
		Start:      start,
		End:        end,
		StartValue: piece[0],
		EndValue:   piece[len(piece)-1],
		Min:        floats.Min(piece),
		Max:        floats.Max(piece),
		Mean:       stat.Mean(piece, nil),
	}
	s.NetChange = s.EndValue - s.StartValue
	s.MaxRise = s.Max - s.StartValue
	s.MaxFall = s.StartValue - s.Min

	// A zero threshold still requires some movement before leaving plateau.
	switch {
	case s.MaxRise > 0 && s.MaxRise >= minChange:
		if s.NetChange > 0 && s.NetChange >= minChange*0.5 {
			s.Class = Rise
			s.Gain = s.NetChange
		} else {
			s.Class = Spike
			s.Gain = s.MaxRise
		}
	case s.MaxFall > 0 && s.MaxFall >= minChange:
		s.Class = Fall
	default:
		s.Class = Plateau
	}
	return s
}
