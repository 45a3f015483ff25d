// Package config loads detection run configuration from YAML files or from
// named profiles stored in SQLite.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// LoadConfig returns the configuration with defaults applied and validated
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData is a complete detection run configuration.
type ConfigData struct {
	Source    SourceData    `yaml:"source" json:"source"`
	Filter    FilterData    `yaml:"filter,omitempty" json:"filter,omitempty"`
	Detection DetectionData `yaml:"detection" json:"detection"`
	Segments  SegmentsData  `yaml:"segments,omitempty" json:"segments,omitempty"`
	CUSUM     *CUSUMData    `yaml:"cusum,omitempty" json:"cusum,omitempty"`
	Search    *SearchData   `yaml:"search,omitempty" json:"search,omitempty"`
	Output    OutputData    `yaml:"output,omitempty" json:"output,omitempty"`
	History   *HistoryData  `yaml:"history,omitempty" json:"history,omitempty"`
}

// SourceData selects where the series is read from.
type SourceData struct {
	Type       string   `yaml:"type" json:"type"` // csv, postgres or sqlite
	Path       string   `yaml:"path,omitempty" json:"path,omitempty"`
	DSN        string   `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Table      string   `yaml:"table,omitempty" json:"table,omitempty"`
	Query      string   `yaml:"query,omitempty" json:"query,omitempty"`
	TimeColumn string   `yaml:"time_column,omitempty" json:"time_column,omitempty"`
	Columns    []string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// FilterData configures pre-detection smoothing.
type FilterData struct {
	Downsample       int     `yaml:"downsample,omitempty" json:"downsample,omitempty"`
	Kind             string  `yaml:"kind,omitempty" json:"kind,omitempty"` // none, median, moving_average, savgol, kalman, chebyshev
	Window           int     `yaml:"window,omitempty" json:"window,omitempty"`
	PolyOrder        int     `yaml:"poly_order,omitempty" json:"poly_order,omitempty"`
	ProcessNoise     float64 `yaml:"process_noise,omitempty" json:"process_noise,omitempty"`
	MeasurementNoise float64 `yaml:"measurement_noise,omitempty" json:"measurement_noise,omitempty"`
}

// DetectionData configures the PELT engine.
type DetectionData struct {
	Cost    string   `yaml:"cost" json:"cost"`
	Gamma   *float64 `yaml:"gamma,omitempty" json:"gamma,omitempty"` // rbf only; median heuristic when unset
	MinSize int      `yaml:"min_size" json:"min_size"`
	Jump    int      `yaml:"jump" json:"jump"`
	Penalty float64  `yaml:"penalty" json:"penalty"`
	Workers int      `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// SegmentsData configures segment classification and the trailing forecast.
type SegmentsData struct {
	MinChange       float64 `yaml:"min_change" json:"min_change"`
	ForecastHorizon int     `yaml:"forecast_horizon,omitempty" json:"forecast_horizon,omitempty"`
}

// CUSUMData enables a streaming CUSUM cross-check on the first channel.
type CUSUMData struct {
	Drift     float64 `yaml:"drift" json:"drift"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// SearchData replaces the detection parameters with the best combination
// from a grid search.
type SearchData struct {
	Penalties []float64 `yaml:"penalties" json:"penalties"`
	MinSizes  []int     `yaml:"min_sizes" json:"min_sizes"`
	Jumps     []int     `yaml:"jumps" json:"jumps"`
	Weight    float64   `yaml:"weight" json:"weight"`
}

// OutputData selects the report encoding.
type OutputData struct {
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // json or msgpack
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`     // stdout when empty
	Pretty bool   `yaml:"pretty,omitempty" json:"pretty,omitempty"`
}

// HistoryData stores every report in a database when set.
type HistoryData struct {
	Driver string `yaml:"driver" json:"driver"` // postgres or sqlite
	DSN    string `yaml:"dsn" json:"dsn"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Default returns a configuration with every optional field filled in.
func Default() *ConfigData {
	return &ConfigData{
		Source: SourceData{Type: "csv"},
		Filter: FilterData{Kind: "none", Downsample: 1},
		Detection: DetectionData{
			Cost:    "l2",
			MinSize: 2,
			Jump:    1,
			Penalty: 1,
		},
		Output: OutputData{Format: "json"},
	}
}

// Validate checks the configuration for values no component would accept.
func (c *ConfigData) Validate() error {
	switch c.Source.Type {
	case "csv":
		if c.Source.Path == "" {
			return fmt.Errorf("%w: csv source needs a path", ErrInvalid)
		}
	case "postgres", "sqlite":
		if c.Source.DSN == "" {
			return fmt.Errorf("%w: %s source needs a dsn", ErrInvalid, c.Source.Type)
		}
		if c.Source.Query == "" && (c.Source.Table == "" || len(c.Source.Columns) == 0) {
			return fmt.Errorf("%w: %s source needs a query or a table with columns", ErrInvalid, c.Source.Type)
		}
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalid, c.Source.Type)
	}

	if c.Filter.Downsample < 1 {
		return fmt.Errorf("%w: downsample factor must be at least 1", ErrInvalid)
	}
	switch c.Filter.Kind {
	case "", "none", "median", "moving_average", "savgol", "chebyshev":
	case "kalman":
		if c.Filter.MeasurementNoise <= 0 || c.Filter.ProcessNoise < 0 {
			return fmt.Errorf("%w: kalman filter needs measurement_noise > 0 and process_noise >= 0", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown filter %q", ErrInvalid, c.Filter.Kind)
	}

	switch strings.ToLower(c.Detection.Cost) {
	case "l1", "l2", "rbf":
	default:
		return fmt.Errorf("%w: unknown cost %q", ErrInvalid, c.Detection.Cost)
	}
	if c.Detection.Gamma != nil && *c.Detection.Gamma <= 0 {
		return fmt.Errorf("%w: gamma must be positive", ErrInvalid)
	}
	if c.Detection.MinSize < 1 || c.Detection.Jump < 1 {
		return fmt.Errorf("%w: min_size and jump must be at least 1", ErrInvalid)
	}
	if c.Segments.MinChange < 0 || c.Segments.ForecastHorizon < 0 {
		return fmt.Errorf("%w: segment thresholds must not be negative", ErrInvalid)
	}
	if c.CUSUM != nil && c.CUSUM.Threshold <= 0 {
		return fmt.Errorf("%w: cusum threshold must be positive", ErrInvalid)
	}
	if s := c.Search; s != nil && (len(s.Penalties) == 0 || len(s.MinSizes) == 0 || len(s.Jumps) == 0) {
		return fmt.Errorf("%w: search grid needs penalties, min_sizes and jumps", ErrInvalid)
	}

	if h := c.History; h != nil {
		if h.Driver != "postgres" && h.Driver != "sqlite" {
			return fmt.Errorf("%w: unknown history driver %q", ErrInvalid, h.Driver)
		}
		if h.DSN == "" {
			return fmt.Errorf("%w: history needs a dsn", ErrInvalid)
		}
	}

	switch c.Output.Format {
	case "json", "msgpack":
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalid, c.Output.Format)
	}
	return nil
}

// Open returns the provider for path. Files ending in .db or .sqlite are read
// as SQLite profile stores, everything else as YAML.
func Open(path, profile string) (ConfigProvider, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		p, err := NewSQLiteProvider(path, profile)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return NewYAMLProvider(path), nil
	}
}
