package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/changepoint/pkg/config"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCSVSource(t *testing.T) {
	path := writeFile(t, "readings.csv", `time,depth,temp
# sensor warm-up
2024-01-01T00:00:00Z,1,-3.5
2024-01-01T01:00:00Z, 1,-4
2024-01-01T02:00:00Z,5,-4.5
`)

	series, err := NewCSVSource(path, "time", nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"depth", "temp"}, series.Names)
	assert.Equal(t, 3, series.Len())
	assert.Equal(t, []float64{1, 1, 5}, series.Channels[0])
	assert.Equal(t, []float64{-3.5, -4, -4.5}, series.Channels[1])
	require.Len(t, series.Times, 3)
	assert.Equal(t, time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), series.Times[2])
}

func TestCSVSourceColumnSelection(t *testing.T) {
	path := writeFile(t, "plain.csv", "a,b,c\n1,2,3\n4,5,6\n")

	series, err := NewCSVSource(path, "", []string{"c", "a"}).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, series.Times)
	assert.Equal(t, [][]float64{{3, 6}, {1, 4}}, series.Channels)
}

func TestCSVSourceErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		body    string
		timeCol string
		columns []string
	}{
		{name: "empty file", body: ""},
		{name: "missing time column", body: "a\n1\n", timeCol: "ts"},
		{name: "missing value column", body: "a\n1\n", columns: []string{"b"}},
		{name: "bad number", body: "a\n1\nx\n"},
		{name: "bad time", body: "ts,a\nyesterday,1\n", timeCol: "ts"},
		{name: "only time column", body: "ts\n2024-01-01\n", timeCol: "ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", tt.body)
			_, err := NewCSVSource(path, tt.timeCol, tt.columns).Load(ctx)
			assert.Error(t, err)
		})
	}

	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"), "", nil).Load(ctx)
	assert.Error(t, err)
}

func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE readings (ts TEXT, depth REAL, temp REAL)`)
	require.NoError(t, err)
	rows := []struct {
		ts    string
		depth any
		temp  float64
	}{
		{"2024-01-01T02:00:00Z", 5.0, -1},
		{"2024-01-01T00:00:00Z", 1.0, -2},
		{"2024-01-01T01:00:00Z", nil, -3},
		{"2024-01-01T03:00:00Z", 5.5, -4},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO readings (ts, depth, temp) VALUES (?, ?, ?)`, r.ts, r.depth, r.temp)
		require.NoError(t, err)
	}
	return path
}

func TestSQLSourceTable(t *testing.T) {
	path := seedSQLite(t)
	src, err := New(config.SourceData{
		Type:       "sqlite",
		DSN:        path,
		Table:      "readings",
		TimeColumn: "ts",
		Columns:    []string{"depth", "temp"},
	})
	require.NoError(t, err)

	series, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"depth", "temp"}, series.Names)
	assert.Equal(t, []float64{1, 5, 5.5}, series.Channels[0], "ordered by time, NULL row skipped")
	assert.Equal(t, []float64{-2, -1, -4}, series.Channels[1])
	require.Len(t, series.Times, 3)
	assert.Equal(t, 3, series.Times[2].Hour())
}

func TestSQLSourceQuery(t *testing.T) {
	path := seedSQLite(t)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	src := NewSQLSource(db, `SELECT temp FROM readings WHERE temp < ? ORDER BY ts`, "", -1.5)
	series, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, series.Times)
	assert.Equal(t, []float64{-2, -3, -4}, series.Channels[0])
}

func TestSQLSourceRejectsBadIdentifiers(t *testing.T) {
	src := &SQLSource{Driver: "sqlite", DSN: ":memory:", Table: "readings; DROP TABLE x", Columns: []string{"depth"}}
	_, err := src.Load(context.Background())
	assert.ErrorContains(t, err, "invalid identifier")
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in       string
		expected time.Time
	}{
		{in: "2024-03-01T12:00:00Z", expected: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{in: "2024-03-01 12:00:00", expected: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{in: "2024-03-01", expected: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{in: "1709294400", expected: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.expected.Equal(got), "%s -> %s", tt.in, got)
	}

	_, err := New(config.SourceData{Type: "kafka"})
	assert.Error(t, err)
}
