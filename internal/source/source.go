// Package source loads the series a detection run operates on.
package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/changepoint/pkg/config"
)

// Series is a multi-channel sequence of samples. Times is nil when the
// source has no time column.
type Series struct {
	Names    []string
	Times    []time.Time
	Channels [][]float64
}

// Len is the number of samples.
func (s *Series) Len() int {
	if len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0])
}

// Source loads a series.
type Source interface {
	Load(ctx context.Context) (*Series, error)
}

// New builds the source described by cfg.
func New(cfg config.SourceData) (Source, error) {
	switch cfg.Type {
	case "csv":
		return NewCSVSource(cfg.Path, cfg.TimeColumn, cfg.Columns), nil
	case "postgres", "sqlite":
		return &SQLSource{
			Driver:     cfg.Type,
			DSN:        cfg.DSN,
			Query:      cfg.Query,
			Table:      cfg.Table,
			TimeColumn: cfg.TimeColumn,
			Columns:    cfg.Columns,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and common SQL layouts, or Unix seconds.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
