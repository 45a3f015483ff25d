package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
source:
  type: csv
  path: readings.csv
  time_column: time
  columns: [depth]
filter:
  kind: median
  window: 5
detection:
  cost: rbf
  gamma: 0.5
  min_size: 3
  penalty: 4
segments:
  min_change: 10
  forecast_horizon: 6
cusum:
  drift: 0.5
  threshold: 5
output:
  format: msgpack
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Source.Type)
	assert.Equal(t, []string{"depth"}, cfg.Source.Columns)
	assert.Equal(t, "median", cfg.Filter.Kind)
	assert.Equal(t, 1, cfg.Filter.Downsample, "default kept")
	assert.Equal(t, "rbf", cfg.Detection.Cost)
	require.NotNil(t, cfg.Detection.Gamma)
	assert.Equal(t, 0.5, *cfg.Detection.Gamma)
	assert.Equal(t, 3, cfg.Detection.MinSize)
	assert.Equal(t, 1, cfg.Detection.Jump, "default kept")
	assert.Equal(t, 4.0, cfg.Detection.Penalty)
	assert.Equal(t, 6, cfg.Segments.ForecastHorizon)
	require.NotNil(t, cfg.CUSUM)
	assert.Equal(t, 5.0, cfg.CUSUM.Threshold)
	assert.Nil(t, cfg.Search)
	assert.Equal(t, "msgpack", cfg.Output.Format)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("source: {type: csv, path: a.csv}\ndetection: {penalty: 1, pentaly: 2}\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name   string
		mutate func(c *ConfigData)
	}{
		{name: "csv without path", mutate: func(c *ConfigData) { c.Source.Path = "" }},
		{name: "unknown source", mutate: func(c *ConfigData) { c.Source.Type = "kafka" }},
		{name: "sql without dsn", mutate: func(c *ConfigData) {
			c.Source = SourceData{Type: "postgres", Table: "t", Columns: []string{"v"}}
		}},
		{name: "sql without query or table", mutate: func(c *ConfigData) {
			c.Source = SourceData{Type: "sqlite", DSN: "x.db"}
		}},
		{name: "downsample zero", mutate: func(c *ConfigData) { c.Filter.Downsample = 0 }},
		{name: "unknown filter", mutate: func(c *ConfigData) { c.Filter.Kind = "wavelet" }},
		{name: "kalman without noise", mutate: func(c *ConfigData) { c.Filter.Kind = "kalman" }},
		{name: "unknown cost", mutate: func(c *ConfigData) { c.Detection.Cost = "ar" }},
		{name: "zero gamma", mutate: func(c *ConfigData) { c.Detection.Gamma = &zero }},
		{name: "min size zero", mutate: func(c *ConfigData) { c.Detection.MinSize = 0 }},
		{name: "jump zero", mutate: func(c *ConfigData) { c.Detection.Jump = 0 }},
		{name: "negative min change", mutate: func(c *ConfigData) { c.Segments.MinChange = -1 }},
		{name: "cusum threshold", mutate: func(c *ConfigData) { c.CUSUM = &CUSUMData{} }},
		{name: "empty search grid", mutate: func(c *ConfigData) { c.Search = &SearchData{Penalties: []float64{1}} }},
		{name: "history driver", mutate: func(c *ConfigData) { c.History = &HistoryData{Driver: "mysql", DSN: "x"} }},
		{name: "history without dsn", mutate: func(c *ConfigData) { c.History = &HistoryData{Driver: "sqlite"} }},
		{name: "unknown format", mutate: func(c *ConfigData) { c.Output.Format = "xml" }},
	}

	base := Default()
	base.Source.Path = "a.csv"
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Source.Path = "a.csv"
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	p, err := Open(path, "")
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.IsReadOnly())
	cfg, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "rbf", cfg.Detection.Cost)

	_, err = NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig()
	assert.Error(t, err)
}

func TestSQLiteProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	p, err := Open(path, "nightly")
	require.NoError(t, err)
	defer p.Close()

	store, ok := p.(*SQLiteProvider)
	require.True(t, ok)
	assert.False(t, store.IsReadOnly())

	_, err = store.LoadConfig()
	assert.Error(t, err, "profile does not exist yet")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.SaveProfile(ctx, "nightly", cfg))

	cfg.Detection.Penalty = 9
	require.NoError(t, store.SaveProfile(ctx, "nightly", cfg), "upsert")
	require.NoError(t, store.SaveProfile(ctx, "adhoc", cfg))

	loaded, err := store.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9.0, loaded.Detection.Penalty)
	assert.Equal(t, cfg.Source, loaded.Source)
	assert.Equal(t, *cfg.Detection.Gamma, *loaded.Detection.Gamma)

	names, err := store.Profiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"adhoc", "nightly"}, names)

	require.NoError(t, store.SaveProfileWithDescription(ctx, "adhoc", "one-off rerun", cfg))
	desc, err := store.Description(ctx, "adhoc")
	require.NoError(t, err)
	assert.Equal(t, "one-off rerun", desc)

	reopened, err := NewSQLiteProvider(path, "nightly")
	require.NoError(t, err, "migrations are idempotent")
	require.NoError(t, reopened.Close())

	bad := Default()
	assert.ErrorIs(t, store.SaveProfile(ctx, "bad", bad), ErrInvalid)
}
