package changepoint

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Signal is an immutable [dimensions x samples] matrix. Constructors copy
// their input, so later changes to the caller's slices are not observed.
type Signal struct {
	channels [][]float64
	n        int
}

// NewSignal builds a single-channel signal.
func NewSignal(values []float64) *Signal {
	ch := make([]float64, len(values))
	copy(ch, values)
	return &Signal{channels: [][]float64{ch}, n: len(ch)}
}

// NewMultiSignal builds a signal from one slice per channel. Every channel
// must have the same number of samples.
func NewMultiSignal(channels [][]float64) (*Signal, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("signal needs at least one channel: %w", ErrArgumentRange)
	}
	n := len(channels[0])
	out := make([][]float64, len(channels))
	for d, ch := range channels {
		if len(ch) != n {
			return nil, fmt.Errorf("channel %d has %d samples, expected %d: %w", d, len(ch), n, ErrArgumentRange)
		}
		out[d] = make([]float64, n)
		copy(out[d], ch)
	}
	return &Signal{channels: out, n: n}, nil
}

// NewSignalFromMatrix builds a signal from a matrix whose rows are channels
// and whose columns are samples.
func NewSignalFromMatrix(m mat.Matrix) (*Signal, error) {
	if m == nil {
		return nil, fmt.Errorf("signal from matrix: %w", ErrUninitialized)
	}
	rows, cols := m.Dims()
	if rows == 0 {
		return nil, fmt.Errorf("signal needs at least one channel: %w", ErrArgumentRange)
	}
	channels := make([][]float64, rows)
	for d := range channels {
		channels[d] = mat.Row(nil, d, m)
	}
	return &Signal{channels: channels, n: cols}, nil
}

// Dims returns the number of channels.
func (s *Signal) Dims() int {
	return len(s.channels)
}

// Len returns the number of samples.
func (s *Signal) Len() int {
	return s.n
}

// At returns sample i of channel d.
func (s *Signal) At(d, i int) float64 {
	return s.channels[d][i]
}

// Channel returns a copy of channel d.
func (s *Signal) Channel(d int) []float64 {
	out := make([]float64, s.n)
	copy(out, s.channels[d])
	return out
}
