package changepoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
)

var stepSignal = []float64{1, 1, 1, 5, 5, 5, 1, 1, 1}

// noisySteps is a three-level step signal with a deterministic wobble.
func noisySteps() []float64 {
	levels := []float64{0, 4, 1}
	out := make([]float64, 0, 60)
	for _, level := range levels {
		for i := 0; i < 20; i++ {
			out = append(out, level+0.3*math.Sin(float64(len(out))*1.7))
		}
	}
	return out
}

func TestPeltScenarios(t *testing.T) {
	tests := []struct {
		name     string
		signal   []float64
		cost     Cost
		minSize  int
		jump     int
		penalty  float64
		expected []int
	}{
		{
			name:     "l2 step",
			signal:   stepSignal,
			cost:     NewCostL2(),
			minSize:  1,
			jump:     1,
			penalty:  2,
			expected: []int{3, 6},
		},
		{
			name:     "rbf step default gamma",
			signal:   stepSignal,
			cost:     NewCostRBF(0),
			minSize:  1,
			jump:     1,
			penalty:  0.1,
			expected: []int{3, 6},
		},
		{
			name:     "l1 step",
			signal:   stepSignal,
			cost:     NewCostL1(),
			minSize:  1,
			jump:     1,
			penalty:  2,
			expected: []int{3, 6},
		},
		{
			name:     "ramp high penalty",
			signal:   []float64{1, 2, 3, 4, 5},
			cost:     NewCostL2(),
			minSize:  1,
			jump:     1,
			penalty:  10,
			expected: []int{},
		},
		{
			name:     "jump aligned with changes",
			signal:   stepSignal,
			cost:     NewCostL2(),
			minSize:  1,
			jump:     3,
			penalty:  2,
			expected: []int{3, 6},
		},
		{
			name:     "negative penalty splits everything",
			signal:   []float64{1, 2, 3, 4, 5},
			cost:     NewCostL2(),
			minSize:  1,
			jump:     1,
			penalty:  -1,
			expected: []int{1, 2, 3, 4},
		},
		{
			name:     "min size longer than signal",
			signal:   []float64{1, 9, 1},
			cost:     NewCostL2(),
			minSize:  5,
			jump:     1,
			penalty:  0,
			expected: []int{},
		},
		{
			name:     "dominated boundary kept until min size elapses",
			signal:   []float64{0, 0, 1, 1, -1},
			cost:     NewCostL2(),
			minSize:  2,
			jump:     1,
			penalty:  0.4,
			expected: []int{},
		},
		{
			name:     "empty signal",
			signal:   nil,
			cost:     NewCostL2(),
			minSize:  2,
			jump:     1,
			penalty:  1,
			expected: []int{},
		},
		{
			name:     "noisy steps",
			signal:   noisySteps(),
			cost:     NewCostL2(),
			minSize:  2,
			jump:     1,
			penalty:  5,
			expected: []int{20, 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPelt(WithCost(tt.cost), WithMinSize(tt.minSize), WithJump(tt.jump))
			bkps, err := p.FitPredict(NewSignal(tt.signal), tt.penalty)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, bkps)
		})
	}
}

func TestPeltMultiChannel(t *testing.T) {
	m := mat.NewDense(2, 8, []float64{
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 3, 3, 3, 3,
	})
	signal, err := NewSignalFromMatrix(m)
	require.NoError(t, err)
	require.Equal(t, 2, signal.Dims())

	for name, newCost := range allCosts() {
		t.Run(name, func(t *testing.T) {
			p := NewPelt(WithCost(newCost()), WithMinSize(1))
			bkps, err := p.FitPredict(signal, 1)
			require.NoError(t, err)
			assert.Equal(t, []int{4}, bkps)
		})
	}
}

func TestPeltPredictBeforeFit(t *testing.T) {
	p := NewPelt()
	_, err := p.Predict(1)
	assert.ErrorIs(t, err, ErrUninitialized)

	assert.ErrorIs(t, p.Fit(nil), ErrUninitialized)
	_, err = p.Predict(1)
	assert.ErrorIs(t, err, ErrUninitialized, "failed fit must not mark the engine fitted")
}

func TestPeltInvalidConfig(t *testing.T) {
	for _, opts := range [][]Option{
		{WithMinSize(0)},
		{WithJump(0)},
		{WithJump(-2)},
	} {
		p := NewPelt(opts...)
		require.NoError(t, p.Fit(NewSignal(stepSignal)))
		_, err := p.Predict(1)
		assert.ErrorIs(t, err, ErrArgumentRange)
	}
}

func TestPeltBreakpointInvariants(t *testing.T) {
	signal := NewSignal(noisySteps())
	for name, newCost := range allCosts() {
		for _, minSize := range []int{1, 2, 5, 7} {
			for _, jump := range []int{1, 2, 3} {
				p := NewPelt(WithCost(newCost()), WithMinSize(minSize), WithJump(jump))
				require.NoError(t, p.Fit(signal))
				for _, pen := range []float64{0, 0.5, 3, 50} {
					bkps, err := p.Predict(pen)
					require.NoError(t, err)

					prevBkp := 0
					for _, b := range bkps {
						require.Greater(t, b, prevBkp, "%s min=%d jump=%d pen=%v: %v", name, minSize, jump, pen, bkps)
						require.GreaterOrEqual(t, b-prevBkp, minSize)
						require.GreaterOrEqual(t, b, minSize)
						require.Less(t, b, signal.Len())
						require.Zero(t, b%jump)
						prevBkp = b
					}
					if len(bkps) > 0 {
						require.GreaterOrEqual(t, signal.Len()-prevBkp, minSize)
					}
				}
			}
		}
	}
}

func TestPeltIdempotent(t *testing.T) {
	p := NewPelt(WithCost(NewCostRBF(0)))
	require.NoError(t, p.Fit(NewSignal(noisySteps())))

	first, err := p.Predict(1)
	require.NoError(t, err)
	second, err := p.Predict(1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPeltPenaltyMonotonic(t *testing.T) {
	penalties := []float64{0, 0.01, 0.1, 0.5, 1, 2, 5, 10, 50, 500}
	signal := NewSignal(noisySteps())

	for name, newCost := range allCosts() {
		t.Run(name, func(t *testing.T) {
			p := NewPelt(WithCost(newCost()), WithMinSize(1))
			require.NoError(t, p.Fit(signal))

			last := math.MaxInt
			for _, pen := range penalties {
				bkps, err := p.Predict(pen)
				require.NoError(t, err)
				require.LessOrEqual(t, len(bkps), last, "penalty %v", pen)
				last = len(bkps)
			}
		})
	}
}

// TestPeltMatchesExhaustive compares PELT with an unpruned optimal
// partitioning over the same candidates.
func TestPeltMatchesExhaustive(t *testing.T) {
	values := noisySteps()[10:40]
	signal := NewSignal(values)

	for name, newCost := range allCosts() {
		for _, pen := range []float64{0.2, 1, 4} {
			cost := newCost()
			p := NewPelt(WithCost(cost), WithMinSize(2))
			bkps, err := p.FitPredict(signal, pen)
			require.NoError(t, err)

			want := exhaustiveOptimum(t, cost, len(values), 2, pen)
			got := penalizedCost(t, cost, len(values), bkps, pen)
			assert.InDelta(t, want, got, 1e-9, "%s pen=%v", name, pen)
		}
	}
}

func TestPeltRefit(t *testing.T) {
	p := NewPelt(WithMinSize(1))
	bkps, err := p.FitPredict(NewSignal(stepSignal), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 6}, bkps)

	bkps, err = p.FitPredict(NewSignal([]float64{0, 0, 0, 0, 9, 9}), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, bkps)
}

func TestPeltLogsSearchSummary(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := NewPelt(WithMinSize(1), WithLogger(zap.New(core)))

	_, err := p.FitPredict(NewSignal(stepSignal), 2)
	require.NoError(t, err)

	entries := logs.FilterMessage("pelt search complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 9, fields["samples"])
	assert.EqualValues(t, 2, fields["breakpoints"])
}

func TestPeltDefaults(t *testing.T) {
	p := NewPelt(WithCost(nil), WithLogger(nil))
	assert.IsType(t, &CostL2{}, p.Cost())
	assert.Equal(t, DefaultMinSize, p.MinSize())
	assert.Equal(t, DefaultJump, p.Jump())
}

func exhaustiveOptimum(t *testing.T, cost Cost, n, minSize int, pen float64) float64 {
	t.Helper()
	best := make([]float64, n+1)
	for i := range best {
		best[i] = math.Inf(1)
	}
	best[0] = -pen
	for end := minSize; end <= n; end++ {
		for start := 0; start <= end-minSize; start++ {
			if math.IsInf(best[start], 1) {
				continue
			}
			c, err := cost.ComputeCost(start, end)
			require.NoError(t, err)
			best[end] = math.Min(best[end], best[start]+c+pen)
		}
	}
	return best[n]
}

func penalizedCost(t *testing.T, cost Cost, n int, bkps []int, pen float64) float64 {
	t.Helper()
	total := -pen
	start := 0
	for _, end := range append(append([]int(nil), bkps...), n) {
		c, err := cost.ComputeCost(start, end)
		require.NoError(t, err)
		total += c + pen
		start = end
	}
	return total
}
