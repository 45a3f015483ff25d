// Package detect runs a configured change-point detection pass: load a
// series, smooth it, segment it with PELT and summarize the segments.
package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/changepoint/internal/source"
	"github.com/chrissnell/changepoint/pkg/changepoint"
	"github.com/chrissnell/changepoint/pkg/config"
	"github.com/chrissnell/changepoint/pkg/cusum"
	"github.com/chrissnell/changepoint/pkg/extrapolate"
	"github.com/chrissnell/changepoint/pkg/filter"
	"github.com/chrissnell/changepoint/pkg/gridsearch"
	"github.com/chrissnell/changepoint/pkg/kalman"
	"github.com/chrissnell/changepoint/pkg/resample"
	"github.com/chrissnell/changepoint/pkg/segment"
)

// Filter kinds handled here rather than by package filter.
const (
	filterKalman    = "kalman"
	filterChebyshev = "chebyshev"
)

// Detector runs the pipeline described by a configuration.
type Detector struct {
	cfg    *config.ConfigData
	source source.Source
	logger *zap.SugaredLogger
}

// NewDetector creates a detector reading from src.
func NewDetector(cfg *config.ConfigData, src source.Source, logger *zap.SugaredLogger) *Detector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Detector{
		cfg:    cfg,
		source: src,
		logger: logger,
	}
}

// Run executes one detection pass.
func (d *Detector) Run(ctx context.Context) (report *Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("detection panic recovered: %v", r)
			report, err = nil, fmt.Errorf("detection panic: %v", r)
		}
	}()

	started := time.Now()
	report = &Report{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
	}

	series, err := d.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	d.logger.Debugf("run %s loaded %d samples over %d channels", report.RunID, series.Len(), len(series.Channels))

	channels, times, err := d.prepare(series)
	if err != nil {
		return nil, err
	}
	report.Channels = series.Names
	report.Samples = len(channels[0])

	signal, err := changepoint.NewMultiSignal(channels)
	if err != nil {
		return nil, fmt.Errorf("build signal: %w", err)
	}

	det := d.cfg.Detection
	if d.cfg.Search != nil {
		best, err := d.search(ctx, signal)
		if err != nil {
			return nil, err
		}
		det.Penalty, det.MinSize, det.Jump = best.Best.Penalty, best.Best.MinSize, best.Best.Jump
		report.Search = best
	}

	cost, err := NewCost(det)
	if err != nil {
		return nil, err
	}
	engine := changepoint.NewPelt(
		changepoint.WithCost(cost),
		changepoint.WithMinSize(det.MinSize),
		changepoint.WithJump(det.Jump),
		changepoint.WithLogger(d.logger.Desugar()),
	)
	bkps, err := engine.FitPredict(signal, det.Penalty)
	if err != nil {
		return nil, fmt.Errorf("pelt: %w", err)
	}

	report.Parameters = Parameters{
		Cost:       det.Cost,
		MinSize:    det.MinSize,
		Jump:       det.Jump,
		Penalty:    det.Penalty,
		Filter:     d.cfg.Filter.Kind,
		Downsample: d.cfg.Filter.Downsample,
	}
	if rbf, ok := cost.(*changepoint.CostRBF); ok {
		report.Parameters.Gamma = rbf.Gamma()
	}
	report.Breakpoints = bkps
	if times != nil {
		report.BreakpointTimes = make([]time.Time, len(bkps))
		for i, bp := range bkps {
			report.BreakpointTimes[i] = times[bp]
		}
	}

	if report.TotalCost, err = partitionCost(cost, bkps, signal.Len()); err != nil {
		return nil, err
	}

	segs, err := segment.Summarize(channels[0], bkps, d.cfg.Segments.MinChange)
	if err != nil {
		return nil, fmt.Errorf("summarize segments: %w", err)
	}
	report.Segments = make([]Segment, len(segs))
	for i, s := range segs {
		report.Segments[i] = Segment{Segment: s}
		if times != nil {
			report.Segments[i].StartTime = &times[s.Start]
			report.Segments[i].EndTime = &times[s.End-1]
		}
	}

	if err := d.forecast(report, channels[0], segs); err != nil {
		return nil, err
	}
	if err := d.crossCheck(report, channels[0]); err != nil {
		return nil, err
	}

	report.ElapsedMS = float64(time.Since(started).Microseconds()) / 1000
	d.logger.Infof("run %s found %d breakpoints in %d samples (penalty %.3g, %s cost)",
		report.RunID, len(bkps), report.Samples, det.Penalty, det.Cost)
	return report, nil
}

// prepare downsamples and smooths every channel.
func (d *Detector) prepare(series *source.Series) ([][]float64, []time.Time, error) {
	if len(series.Channels) == 0 {
		return nil, nil, fmt.Errorf("series has no channels: %w", changepoint.ErrArgumentRange)
	}

	f := d.cfg.Filter
	channels := make([][]float64, len(series.Channels))
	for i, raw := range series.Channels {
		values, err := resample.Downsample(raw, max(f.Downsample, 1))
		if err != nil {
			return nil, nil, err
		}
		if channels[i], err = smooth(f, values); err != nil {
			return nil, nil, fmt.Errorf("filter channel %s: %w", series.Names[i], err)
		}
	}

	var times []time.Time
	if series.Times != nil {
		times = make([]time.Time, 0, len(channels[0]))
		for i := 0; i < len(series.Times); i += max(f.Downsample, 1) {
			times = append(times, series.Times[i])
		}
	}
	return channels, times, nil
}

func smooth(f config.FilterData, values []float64) ([]float64, error) {
	switch f.Kind {
	case filterKalman:
		return kalman.Smooth(values, f.ProcessNoise, f.MeasurementNoise)
	case filterChebyshev:
		if len(values) == 0 {
			return values, nil
		}
		fit, err := resample.ChebyshevFit(values, f.PolyOrder)
		if err != nil {
			return nil, err
		}
		return fit.Values(), nil
	default:
		return filter.Apply(filter.Kind(f.Kind), values, f.Window, f.PolyOrder)
	}
}

func (d *Detector) search(ctx context.Context, signal *changepoint.Signal) (*gridsearch.Result, error) {
	s := d.cfg.Search
	grid := gridsearch.Grid{Penalties: s.Penalties, MinSizes: s.MinSizes, Jumps: s.Jumps}
	factory := func() (changepoint.Cost, error) {
		return NewCost(d.cfg.Detection)
	}

	res, err := gridsearch.Search(ctx, signal, factory, grid, gridsearch.ElbowObjective(s.Weight))
	if err != nil {
		return nil, fmt.Errorf("grid search: %w", err)
	}
	d.logger.Debugf("grid search picked penalty=%v min_size=%d jump=%d from %d combinations",
		res.Best.Penalty, res.Best.MinSize, res.Best.Jump, grid.Size())
	return res, nil
}

// forecast extends the trend of the final segment.
func (d *Detector) forecast(report *Report, values []float64, segs []segment.Segment) error {
	horizon := d.cfg.Segments.ForecastHorizon
	if horizon == 0 || len(segs) == 0 {
		return nil
	}
	last := segs[len(segs)-1]
	if last.Len() < 2 {
		d.logger.Debugf("final segment has %d samples, skipping forecast", last.Len())
		return nil
	}

	points, err := extrapolate.Linear(values[last.Start:last.End], horizon)
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	report.Forecast = points
	return nil
}

// crossCheck runs CUSUM over the primary channel, normalized by its own
// mean and standard deviation.
func (d *Detector) crossCheck(report *Report, values []float64) error {
	c := d.cfg.CUSUM
	if c == nil || len(values) < 2 {
		return nil
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 {
		d.logger.Debugf("constant series, skipping cusum")
		report.CUSUMAlarms = []cusum.Alarm{}
		return nil
	}

	alarms, err := cusum.Detect(values, mean, std, c.Drift, c.Threshold)
	if err != nil {
		return fmt.Errorf("cusum: %w", err)
	}
	if alarms == nil {
		alarms = []cusum.Alarm{}
	}
	report.CUSUMAlarms = alarms
	return nil
}

// NewCost builds the cost function named by the detection settings.
func NewCost(det config.DetectionData) (changepoint.Cost, error) {
	var gamma float64
	if det.Gamma != nil {
		gamma = *det.Gamma
	}
	cost, err := changepoint.NewCost(changepoint.CostKind(det.Cost), gamma)
	if err != nil {
		return nil, err
	}
	if rbf, ok := cost.(*changepoint.CostRBF); ok && det.Workers > 0 {
		rbf.SetWorkers(det.Workers)
	}
	return cost, nil
}

func partitionCost(cost changepoint.Cost, bkps []int, n int) (float64, error) {
	var total float64
	start := 0
	for _, end := range append(bkps[:len(bkps):len(bkps)], n) {
		if end == start {
			break
		}
		c, err := cost.ComputeCost(start, end)
		if err != nil {
			return 0, fmt.Errorf("partition cost: %w", err)
		}
		total += c
		start = end
	}
	return total, nil
}
