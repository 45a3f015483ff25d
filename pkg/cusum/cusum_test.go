package cusum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

func TestUpdate(t *testing.T) {
	c, err := New(0.5, 2)
	require.NoError(t, err)

	r := c.Update(1)
	assert.False(t, r.IsChangePoint)
	assert.InDelta(t, 0.5, r.High, 1e-12)
	assert.Zero(t, r.Low)

	r = c.Update(1)
	assert.False(t, r.IsChangePoint)
	assert.InDelta(t, 1.0, r.High, 1e-12)

	c.Update(1)
	c.Update(1)
	r = c.Update(1)
	assert.True(t, r.IsChangePoint)
	assert.Equal(t, Up, r.Direction)
	assert.InDelta(t, 2.5, r.High, 1e-12)
	assert.Zero(t, c.High, "sum resets after an alarm")
}

func TestUpdateDown(t *testing.T) {
	c, err := New(0, 1)
	require.NoError(t, err)

	assert.False(t, c.Update(-0.6).IsChangePoint)
	r := c.Update(-0.6)
	assert.True(t, r.IsChangePoint)
	assert.Equal(t, Down, r.Direction)

	c.Update(-0.5)
	c.Reset()
	assert.Zero(t, c.Low)
	assert.Zero(t, c.High)
}

func TestDetect(t *testing.T) {
	values := []float64{10, 10, 10, 10, 14, 14, 14, 14}
	alarms, err := Detect(values, 10, 1, 0.5, 4)
	require.NoError(t, err)
	require.NotEmpty(t, alarms)
	assert.Equal(t, Alarm{Index: 5, Direction: Up}, alarms[0])

	_, err = Detect(values, 10, 0, 0.5, 4)
	assert.ErrorIs(t, err, changepoint.ErrArgumentRange)
}

func TestNewValidates(t *testing.T) {
	_, err := New(0.5, 0)
	assert.ErrorIs(t, err, changepoint.ErrArgumentRange)

	_, err = New(-1, 1)
	assert.ErrorIs(t, err, changepoint.ErrArgumentRange)
}
