package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rustyeddy/candles/config"
	"github.com/rustyeddy/candles/journal"
	"github.com/rustyeddy/candles/source"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Series: []config.SeriesConfig{
			{Instrument: "EUR_USD", Kind: "timeframe", Arg: "M1"},
			{Instrument: "EUR_USD", Kind: "tick", Arg: "10"},
		},
		Sources: []config.SourceConfig{
			{Name: "walk", Type: "generator", Instrument: "EUR_USD", Step: "1s", Count: 120, Seed: 3},
		},
		Builder: config.BuilderConfig{VolumePolicy: "carry"},
		Journal: config.JournalConfig{
			Type:    "sqlite",
			DBPath:  filepath.Join(dir, "candles.sqlite"),
			OrgFile: filepath.Join(dir, "run.org"),
		},
		Log: config.LogConfig{Level: "info"},
	}
}

func TestExecute(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	run, err := execute(context.Background(), cfg, zaptest.NewLogger(t), &out)
	require.NoError(t, err)

	assert.Len(t, run.RunID, 26)
	assert.Equal(t, "walk", run.Dataset)
	assert.Equal(t, []string{"EUR_USD/timeframe/M1", "EUR_USD/tick/10"}, run.Series)
	assert.Equal(t, int64(240), run.Values)
	assert.Equal(t, int64(14), run.Candles)
	assert.Contains(t, out.String(), "EUR_USD/tick/10")
	assert.Contains(t, out.String(), "Results saved to: "+cfg.Journal.DBPath)

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	require.NoError(t, err)
	defer j.Close()

	counts, err := j.CountCandles(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"EUR_USD/timeframe/M1": 2, "EUR_USD/tick/10": 12}, counts)

	stored, err := j.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.Series, stored.Series)
	assert.Equal(t, run.Candles, stored.Candles)

	org, err := os.ReadFile(cfg.Journal.OrgFile)
	require.NoError(t, err)
	assert.Contains(t, string(org), ":RUN_ID:   "+run.RunID)
}

func TestExecuteCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal = config.JournalConfig{Type: "none"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	run, err := execute(ctx, cfg, zaptest.NewLogger(t), &out)
	require.NoError(t, err)
	assert.Zero(t, run.Values)
	assert.NotContains(t, out.String(), "Results saved to")
}

func TestParseSeriesFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    config.SeriesConfig
		wantErr bool
	}{
		{in: "EUR_USD:timeframe:M5", want: config.SeriesConfig{Instrument: "EUR_USD", Kind: "timeframe", Arg: "M5"}},
		{in: "BTC_USD:renko:25", want: config.SeriesConfig{Instrument: "BTC_USD", Kind: "renko", Arg: "25"}},
		{in: "EUR_USD:tick", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSeriesFlag(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteTradesReadsBack(t *testing.T) {
	gen := &source.Generator{Instrument: "EUR_USD", Count: 50, Seed: 9}
	want := gen.Values()

	var buf bytes.Buffer
	n, err := writeTrades(&buf, want)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	r := source.NewCSVReader(&buf, source.Trades)
	for i := range want {
		v, ok, err := r.Next()
		require.NoError(t, err)
		require.True(t, ok, "row %d", i)
		assert.True(t, v.Time.Equal(want[i].Time))
		assert.Equal(t, want[i].Instrument, v.Instrument)
		assert.True(t, v.Price.Decimal.Equal(want[i].Price.Decimal))
		assert.True(t, v.Volume.Decimal.Equal(want[i].Volume.Decimal))
		assert.Equal(t, want[i].Side, v.Side)
	}
	_, ok, err := r.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}
