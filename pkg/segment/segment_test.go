package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

func TestSummarizeClasses(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		minChange float64
		class     Class
		gain      float64
	}{
		{name: "rise", values: []float64{10, 12, 15, 20}, minChange: 5, class: Rise, gain: 10},
		{name: "spike then settle", values: []float64{10, 18, 12, 11}, minChange: 5, class: Spike, gain: 8},
		{name: "fall", values: []float64{20, 18, 12, 11}, minChange: 5, class: Fall},
		{name: "plateau", values: []float64{10, 11, 9, 10}, minChange: 5, class: Plateau},
		{name: "flat with zero threshold", values: []float64{3, 3, 3}, minChange: 0, class: Plateau},
		{name: "single sample", values: []float64{7}, minChange: 1, class: Plateau},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := Summarize(tt.values, nil, tt.minChange)
			require.NoError(t, err)
			require.Len(t, segs, 1)
			assert.Equal(t, tt.class, segs[0].Class)
			assert.InDelta(t, tt.gain, segs[0].Gain, 1e-12)
		})
	}
}

func TestSummarizeStepSignal(t *testing.T) {
	values := []float64{1, 1, 1, 5, 5, 5, 1, 1, 1}
	segs, err := Summarize(values, []int{3, 6}, 1)
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, 0, segs[0].Start)
	assert.Equal(t, 3, segs[0].End)
	assert.Equal(t, 3, segs[1].Len())
	assert.Equal(t, 9, segs[2].End)

	for _, s := range segs {
		assert.Equal(t, Plateau, s.Class, "each piece is flat")
	}
	assert.InDelta(t, 5, segs[1].Mean, 1e-12)
	assert.InDelta(t, 5, segs[1].Max, 1e-12)
	assert.InDelta(t, 1, segs[2].Min, 1e-12)
}

func TestSummarizeStatistics(t *testing.T) {
	segs, err := Summarize([]float64{4, 9, 2, 6}, nil, 100)
	require.NoError(t, err)
	s := segs[0]
	assert.Equal(t, 4.0, s.StartValue)
	assert.Equal(t, 6.0, s.EndValue)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.InDelta(t, 5.25, s.Mean, 1e-12)
	assert.Equal(t, 2.0, s.NetChange)
	assert.Equal(t, 5.0, s.MaxRise)
	assert.Equal(t, 2.0, s.MaxFall)
}

func TestSummarizeValidates(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	for _, bps := range [][]int{{0}, {4}, {2, 2}, {3, 1}} {
		_, err := Summarize(values, bps, 1)
		assert.ErrorIs(t, err, changepoint.ErrArgumentRange, "breakpoints %v", bps)
	}

	_, err := Summarize(values, nil, -1)
	assert.ErrorIs(t, err, changepoint.ErrArgumentRange)

	segs, err := Summarize(nil, nil, 1)
	require.NoError(t, err)
	assert.Empty(t, segs)
}
