package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CSVSource reads a headed CSV file. Columns selects the value columns by
// header name; when empty every column except TimeColumn is used.
type CSVSource struct {
	Path       string
	TimeColumn string
	Columns    []string
}

// NewCSVSource creates a CSV source.
func NewCSVSource(path, timeColumn string, columns []string) *CSVSource {
	return &CSVSource{Path: path, TimeColumn: timeColumn, Columns: columns}
}

// Load reads the whole file.
func (c *CSVSource) Load(ctx context.Context) (*Series, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	series, err := c.read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Path, err)
	}
	return series, nil
}

func (c *CSVSource) read(ctx context.Context, r io.Reader) (*Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	timeIdx := -1
	if c.TimeColumn != "" {
		if timeIdx = slices.Index(header, c.TimeColumn); timeIdx < 0 {
			return nil, fmt.Errorf("time column %q not in header", c.TimeColumn)
		}
	}

	names := c.Columns
	if len(names) == 0 {
		for i, h := range header {
			if i != timeIdx {
				names = append(names, h)
			}
		}
	}
	if len(names) == 0 {
		return nil, errors.New("no value columns")
	}

	idx := make([]int, len(names))
	for i, name := range names {
		if idx[i] = slices.Index(header, name); idx[i] < 0 {
			return nil, fmt.Errorf("column %q not in header", name)
		}
	}

	series := &Series{
		Names:    slices.Clone(names),
		Channels: make([][]float64, len(names)),
	}
	if timeIdx >= 0 {
		series.Times = []time.Time{}
	}
	for i := range series.Channels {
		series.Channels[i] = []float64{}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		if timeIdx >= 0 {
			ts, err := parseTime(record[timeIdx])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			series.Times = append(series.Times, ts)
		}
		for ch, col := range idx {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, names[ch], err)
			}
			series.Channels[ch] = append(series.Channels[ch], v)
		}
	}
	return series, nil
}
