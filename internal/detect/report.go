package detect

import (
	"time"

	"github.com/chrissnell/changepoint/pkg/cusum"
	"github.com/chrissnell/changepoint/pkg/gridsearch"
	"github.com/chrissnell/changepoint/pkg/segment"
)

// Report is the result of one detection run.
type Report struct {
	RunID           string             `json:"run_id"`
	StartedAt       time.Time          `json:"started_at"`
	ElapsedMS       float64            `json:"elapsed_ms"`
	Samples         int                `json:"samples"`
	Channels        []string           `json:"channels"`
	Parameters      Parameters         `json:"parameters"`
	Breakpoints     []int              `json:"breakpoints"`
	BreakpointTimes []time.Time        `json:"breakpoint_times,omitempty"`
	TotalCost       float64            `json:"total_cost"`
	Segments        []Segment          `json:"segments"`
	Forecast        []float64          `json:"forecast,omitempty"`
	CUSUMAlarms     []cusum.Alarm      `json:"cusum_alarms,omitempty"`
	Search          *gridsearch.Result `json:"search,omitempty"`
}

// Parameters are the settings the run actually used, after any grid search.
type Parameters struct {
	Cost       string  `json:"cost"`
	Gamma      float64 `json:"gamma,omitempty"`
	MinSize    int     `json:"min_size"`
	Jump       int     `json:"jump"`
	Penalty    float64 `json:"penalty"`
	Filter     string  `json:"filter"`
	Downsample int     `json:"downsample"`
}

// Segment is a segment summary with wall-clock bounds when the series has
// times.
type Segment struct {
	segment.Segment
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}
