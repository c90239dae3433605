package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/candles/candles"
	"github.com/rustyeddy/candles/journal"
	"github.com/rustyeddy/candles/source"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Len(t, cfg.Series, 2)
	assert.Equal(t, "carry", cfg.Builder.VolumePolicy)
	assert.NoError(t, cfg.Validate())

	s, err := cfg.Series[0].Series()
	require.NoError(t, err)
	assert.Equal(t, "EUR_USD/timeframe/M1", s.Key())
	assert.Equal(t, []string{"synthetic"}, cfg.SourcesFor(0))
}

func TestValidate(t *testing.T) {
	mod := func(f func(c *Config)) *Config {
		c := Default()
		f(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			config: Default(),
		},
		{
			name:    "no series",
			config:  mod(func(c *Config) { c.Series = nil }),
			wantErr: true,
			errMsg:  "at least one series is required",
		},
		{
			name:    "bad series kind",
			config:  mod(func(c *Config) { c.Series[0].Kind = "heikin" }),
			wantErr: true,
			errMsg:  "series[0]",
		},
		{
			name: "duplicate series",
			config: mod(func(c *Config) {
				c.Series = append(c.Series, SeriesConfig{Instrument: "EUR_USD", Kind: "tf", Arg: "1m"})
			}),
			wantErr: true,
			errMsg:  "duplicate series",
		},
		{
			name:    "unknown source reference",
			config:  mod(func(c *Config) { c.Series[0].Sources = []string{"nope"} }),
			wantErr: true,
			errMsg:  `unknown source "nope"`,
		},
		{
			name:    "source without name",
			config:  mod(func(c *Config) { c.Sources[0].Name = "" }),
			wantErr: true,
			errMsg:  "sources[0].name is required",
		},
		{
			name: "duplicate source name",
			config: mod(func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			}),
			wantErr: true,
			errMsg:  "duplicate source name",
		},
		{
			name:    "unknown source type",
			config:  mod(func(c *Config) { c.Sources[0].Type = "kafka" }),
			wantErr: true,
			errMsg:  "type must be 'csv' or 'generator'",
		},
		{
			name:    "csv without path",
			config:  mod(func(c *Config) { c.Sources[0] = SourceConfig{Name: "f", Type: "csv"} }),
			wantErr: true,
			errMsg:  "path is required",
		},
		{
			name:    "bad from time",
			config:  mod(func(c *Config) { c.Sources[0] = SourceConfig{Name: "f", Type: "csv", Path: "x.csv", From: "monday"} }),
			wantErr: true,
			errMsg:  "from",
		},
		{
			name:    "bad volume policy",
			config:  mod(func(c *Config) { c.Builder.VolumePolicy = "truncate" }),
			wantErr: true,
			errMsg:  "unknown volume policy",
		},
		{
			name:    "unknown journal type",
			config:  mod(func(c *Config) { c.Journal.Type = "postgres" }),
			wantErr: true,
			errMsg:  "journal.type must be",
		},
		{
			name:    "sqlite without path",
			config:  mod(func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }),
			wantErr: true,
			errMsg:  "db_path required",
		},
		{
			name:    "bad log level",
			config:  mod(func(c *Config) { c.Log.Level = "chatty" }),
			wantErr: true,
			errMsg:  "log:",
		},
		{
			name:   "no journal",
			config: mod(func(c *Config) { c.Journal = JournalConfig{Type: "none"} }),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := Default()
			cfg.Series[1].Sources = []string{"synthetic"}
			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("series: [\n"), 0644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("series: []\n"), 0644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "invalid config")
}

func TestSourceBuild(t *testing.T) {
	src, err := SourceConfig{Name: "hist", Type: "csv", Path: "ticks.csv", Format: "quotes", Quote: "bid", From: "2026-01-24T00:00:00Z"}.Build()
	require.NoError(t, err)
	feed, ok := src.(*source.CSVFeed)
	require.True(t, ok)
	assert.Equal(t, "hist", feed.Name())
	assert.Equal(t, source.Quotes, feed.Format)
	assert.False(t, feed.From.IsZero())

	src, err = SourceConfig{Name: "ol", Type: "csv", Path: "orders.csv", Format: "orderlog"}.Build()
	require.NoError(t, err)
	assert.Equal(t, source.OrderLog, src.(*source.CSVFeed).Format)

	src, err = SourceConfig{Name: "l1", Type: "csv", Path: "l1.csv", Format: "level1"}.Build()
	require.NoError(t, err)
	assert.Equal(t, source.Level1, src.(*source.CSVFeed).Format)

	src, err = Default().Sources[0].Build()
	require.NoError(t, err)
	gen, ok := src.(*source.Generator)
	require.True(t, ok)
	assert.Equal(t, "synthetic", gen.Name())
	assert.Len(t, gen.Values(), 3600)
}

func TestBuildersAndJournal(t *testing.T) {
	b, err := BuilderConfig{VolumePolicy: "absorb"}.Builders()
	require.NoError(t, err)
	vb, ok := b.For(candles.VolumeKind)
	require.True(t, ok)
	assert.Equal(t, candles.VolumeBuilder{Policy: candles.VolumeAbsorb}, vb)

	j, err := JournalConfig{Type: "none"}.Open()
	require.NoError(t, err)
	assert.Nil(t, j)

	j, err = JournalConfig{Type: "sqlite", DBPath: filepath.Join(t.TempDir(), "c.db")}.Open()
	require.NoError(t, err)
	_, isSQLite := j.(*journal.SQLite)
	assert.True(t, isSQLite)
	assert.NoError(t, j.Close())

	_, err = JournalConfig{Type: "csv", CSVFile: filepath.Join(t.TempDir(), "no", "c.csv")}.Open()
	assert.Error(t, err)

	log, err := LogConfig{Level: "debug"}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, log)
}
