package changepoint

import (
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"
)

const (
	// DefaultMinSize is the minimum segment length used when none is given.
	DefaultMinSize = 2

	// DefaultJump is the candidate stride used when none is given.
	DefaultJump = 1
)

// Pelt finds the partition of a signal that minimizes the sum of segment
// costs plus a penalty per segment, pruning candidate boundaries that can no
// longer be optimal.
type Pelt struct {
	cost    Cost
	minSize int
	jump    int
	logger  *zap.Logger

	fitted   bool
	nSamples int
}

// Option configures a Pelt.
type Option func(*Pelt)

// WithCost sets the segment cost. Nil is ignored.
func WithCost(cost Cost) Option {
	return func(p *Pelt) {
		if cost != nil {
			p.cost = cost
		}
	}
}

// WithMinSize sets the minimum segment length.
func WithMinSize(minSize int) Option {
	return func(p *Pelt) {
		p.minSize = minSize
	}
}

// WithJump sets the stride between candidate breakpoints.
func WithJump(jump int) Option {
	return func(p *Pelt) {
		p.jump = jump
	}
}

// WithLogger sets the logger used for search diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pelt) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPelt creates an unfitted detector. Defaults: L2 cost, MinSize 2, Jump 1.
func NewPelt(opts ...Option) *Pelt {
	p := &Pelt{
		cost:    NewCostL2(),
		minSize: DefaultMinSize,
		jump:    DefaultJump,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cost returns the configured cost function.
func (p *Pelt) Cost() Cost {
	return p.cost
}

// MinSize returns the minimum segment length.
func (p *Pelt) MinSize() int {
	return p.minSize
}

// Jump returns the candidate stride.
func (p *Pelt) Jump() int {
	return p.jump
}

// Fit binds the detector to signal through the cost function. A failed fit
// leaves any previous binding untouched.
func (p *Pelt) Fit(signal *Signal) error {
	if signal == nil {
		return fmt.Errorf("pelt fit: %w", ErrUninitialized)
	}
	if err := p.cost.Fit(signal); err != nil {
		return fmt.Errorf("pelt fit: %w", err)
	}
	p.nSamples = signal.Len()
	p.fitted = true
	return nil
}

// FitPredict is Fit followed by Predict.
func (p *Pelt) FitPredict(signal *Signal, penalty float64) ([]int, error) {
	if err := p.Fit(signal); err != nil {
		return nil, err
	}
	return p.Predict(penalty)
}

// Predict returns the sorted end indices of every segment but the last.
// The result is empty, not nil, when no change point pays for its penalty or
// when no admissible partition of the signal exists.
func (p *Pelt) Predict(penalty float64) ([]int, error) {
	if !p.fitted {
		return nil, fmt.Errorf("pelt predict: %w", ErrUninitialized)
	}
	if p.minSize < 1 || p.jump < 1 {
		return nil, fmt.Errorf("pelt predict: min size %d, jump %d: %w", p.minSize, p.jump, ErrArgumentRange)
	}

	n := p.nSamples

	// best[t] is the optimal penalized cost of signal[0:t], prev[t] the start
	// of its last segment. best[0] = -penalty so a partition with k segments
	// pays k-1 penalties.
	best := make([]float64, n+1)
	prev := make([]int, n+1)
	reached := make([]bool, n+1)
	best[0] = -penalty
	reached[0] = true

	ends := p.candidateEnds(n)
	admissible := make([]candidate, 0, 16)
	values := make([]float64, 0, 16)
	lastAdmitted := -1
	var evaluations, pruned int

	for _, end := range ends {
		if end >= p.minSize {
			if adm := (end - p.minSize) / p.jump * p.jump; adm > lastAdmitted {
				admissible = append(admissible, candidate{t: adm, expiry: math.MaxInt})
				lastAdmitted = adm
			}
		}

		// Drop expired boundaries and those that can never be reached.
		kept := admissible[:0]
		for _, c := range admissible {
			if c.expiry <= end || !reached[c.t] {
				pruned++
				continue
			}
			kept = append(kept, c)
		}
		admissible = kept

		minValue := math.Inf(1)
		argmin := -1
		values = values[:0]
		for _, c := range admissible {
			if end-c.t < p.minSize {
				values = append(values, math.NaN())
				continue
			}
			segCost, err := p.cost.ComputeCost(c.t, end)
			if err != nil {
				return nil, fmt.Errorf("pelt segment [%d, %d): %w", c.t, end, err)
			}
			evaluations++

			v := best[c.t] + segCost + penalty
			values = append(values, v)
			if v < minValue {
				minValue = v
				argmin = c.t
			}
		}

		if argmin < 0 {
			continue
		}
		best[end] = minValue
		prev[end] = argmin
		reached[end] = true

		// best[t'] + cost(t', end) > best[end] means end beats t' as the last
		// boundary of every later segment end that end itself can serve,
		// i.e. from end+minSize on.
		for i := range admissible {
			if !math.IsNaN(values[i]) && values[i] > minValue+penalty && admissible[i].expiry == math.MaxInt {
				admissible[i].expiry = end + p.minSize
			}
		}
	}

	bkps := make([]int, 0)
	if reached[n] {
		for t := prev[n]; t > 0; t = prev[t] {
			bkps = append(bkps, t)
		}
		slices.Reverse(bkps)
	}

	p.logger.Debug("pelt search complete",
		zap.Int("samples", n),
		zap.Float64("penalty", penalty),
		zap.Int("candidates", len(ends)),
		zap.Int("evaluations", evaluations),
		zap.Int("pruned", pruned),
		zap.Int("breakpoints", len(bkps)),
	)

	return bkps, nil
}

// candidate is an admissible boundary. expiry is the first segment end for
// which the boundary is known to be dominated.
type candidate struct {
	t      int
	expiry int
}

// candidateEnds lists the multiples of jump in [minSize, n) followed by n.
func (p *Pelt) candidateEnds(n int) []int {
	first := (p.minSize + p.jump - 1) / p.jump * p.jump
	ends := make([]int, 0, max(0, (n-first)/p.jump)+1)
	for k := first; k < n; k += p.jump {
		ends = append(ends, k)
	}
	return append(ends, n)
}
