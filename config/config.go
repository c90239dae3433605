package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/candles/candles"
	"github.com/rustyeddy/candles/journal"
	"github.com/rustyeddy/candles/market"
	"github.com/rustyeddy/candles/pkg/logger"
	"github.com/rustyeddy/candles/source"
)

// Config describes one aggregation run: what to build and from where.
type Config struct {
	Series  []SeriesConfig `json:"series" yaml:"series"`
	Sources []SourceConfig `json:"sources" yaml:"sources"`
	Builder BuilderConfig  `json:"builder" yaml:"builder"`
	Journal JournalConfig  `json:"journal" yaml:"journal"`
	Log     LogConfig      `json:"log" yaml:"log"`
}

// SeriesConfig names a series, e.g. {EUR_USD, timeframe, M5}. Sources
// lists source names feeding it; empty means every source.
type SeriesConfig struct {
	Instrument string   `json:"instrument" yaml:"instrument"`
	Kind       string   `json:"kind" yaml:"kind"`
	Arg        string   `json:"arg" yaml:"arg"`
	Sources    []string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

func (s SeriesConfig) Series() (candles.Series, error) {
	return candles.ParseSeries(s.Instrument, s.Kind, s.Arg)
}

// SourceConfig describes a csv file or a synthetic generator.
type SourceConfig struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"` // "csv" or "generator"

	// csv
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // trades, quotes, orderlog or level1
	Quote  string `json:"quote,omitempty" yaml:"quote,omitempty"`   // mid, bid or ask
	From   string `json:"from,omitempty" yaml:"from,omitempty"`     // RFC3339
	To     string `json:"to,omitempty" yaml:"to,omitempty"`

	// generator
	Instrument string `json:"instrument,omitempty" yaml:"instrument,omitempty"`
	Start      string `json:"start,omitempty" yaml:"start,omitempty"`
	Step       string `json:"step,omitempty" yaml:"step,omitempty"` // e.g. "1s", "250ms"
	Price      string `json:"price,omitempty" yaml:"price,omitempty"`
	Tick       string `json:"tick,omitempty" yaml:"tick,omitempty"`
	MaxVolume  int64  `json:"max_volume,omitempty" yaml:"max_volume,omitempty"`
	Count      int    `json:"count,omitempty" yaml:"count,omitempty"`
	Seed       int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// BuilderConfig tunes candle builders.
type BuilderConfig struct {
	VolumePolicy string `json:"volume_policy" yaml:"volume_policy"` // "carry" or "absorb"
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type    string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	CSVFile string `json:"csv_file,omitempty" yaml:"csv_file,omitempty"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgFile string `json:"org_file,omitempty" yaml:"org_file,omitempty"`
}

type LogConfig struct {
	Level       string   `json:"level" yaml:"level"`
	Format      string   `json:"format,omitempty" yaml:"format,omitempty"`
	OutputPaths []string `json:"output_paths,omitempty" yaml:"output_paths,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Series) == 0 {
		return fmt.Errorf("at least one series is required")
	}

	names := map[string]bool{}
	for i, sc := range c.Sources {
		if sc.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if names[sc.Name] {
			return fmt.Errorf("duplicate source name %q", sc.Name)
		}
		names[sc.Name] = true
		if _, err := sc.Build(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}

	seen := map[string]bool{}
	for i, sc := range c.Series {
		s, err := sc.Series()
		if err != nil {
			return fmt.Errorf("series[%d]: %w", i, err)
		}
		if seen[s.Key()] {
			return fmt.Errorf("series[%d]: duplicate series %s", i, s.Key())
		}
		seen[s.Key()] = true
		for _, name := range sc.Sources {
			if !names[name] {
				return fmt.Errorf("series[%d]: unknown source %q", i, name)
			}
		}
	}

	if _, err := c.Builder.Builders(); err != nil {
		return fmt.Errorf("builder: %w", err)
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.CSVFile == "" {
			return fmt.Errorf("journal csv_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if err := c.Log.options().Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// SourcesFor returns the source names feeding series i.
func (c *Config) SourcesFor(i int) []string {
	if len(c.Series[i].Sources) > 0 {
		return c.Series[i].Sources
	}
	out := make([]string, 0, len(c.Sources))
	for _, sc := range c.Sources {
		out = append(out, sc.Name)
	}
	return out
}

// Build constructs the source described by sc.
func (sc SourceConfig) Build() (source.Source, error) {
	switch sc.Type {
	case "csv":
		if sc.Path == "" {
			return nil, fmt.Errorf("csv source %q: path is required", sc.Name)
		}
		format, err := source.ParseFormat(sc.Format)
		if err != nil {
			return nil, err
		}
		f := source.NewCSVFeed(sc.Path, format).Named(sc.Name)
		if f.Quote, err = market.ParseQuotePrice(sc.Quote); err != nil {
			return nil, err
		}
		if f.From, err = optTime(sc.From); err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		if f.To, err = optTime(sc.To); err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
		return f, nil

	case "generator":
		if sc.Instrument == "" {
			return nil, fmt.Errorf("generator %q: instrument is required", sc.Name)
		}
		if sc.Count <= 0 {
			return nil, fmt.Errorf("generator %q: count must be positive", sc.Name)
		}
		g := &source.Generator{
			Label:      sc.Name,
			Instrument: sc.Instrument,
			MaxVolume:  sc.MaxVolume,
			Count:      sc.Count,
			Seed:       sc.Seed,
		}
		var err error
		if g.Start, err = optTime(sc.Start); err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		if sc.Step != "" {
			if g.Step, err = time.ParseDuration(sc.Step); err != nil {
				return nil, fmt.Errorf("step: %w", err)
			}
		}
		if g.Price, err = optDecimal(sc.Price, decimal.NewFromInt(100)); err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		if g.Tick, err = optDecimal(sc.Tick, decimal.Zero); err != nil {
			return nil, fmt.Errorf("tick: %w", err)
		}
		return g, nil

	default:
		return nil, fmt.Errorf("source %q: type must be 'csv' or 'generator'", sc.Name)
	}
}

func optTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func optDecimal(s string, def decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return def, nil
	}
	return market.ParsePrice(s)
}

func (b BuilderConfig) Builders() (candles.Builders, error) {
	p, err := candles.ParseVolumePolicy(b.VolumePolicy)
	if err != nil {
		return nil, err
	}
	return candles.DefaultBuilders(candles.Options{VolumePolicy: p}), nil
}

// Open creates the configured journal, or nil for "none".
func (j JournalConfig) Open() (journal.Journal, error) {
	switch j.Type {
	case "csv":
		c, err := journal.NewCSV(j.CSVFile)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "sqlite":
		db, err := journal.NewSQLite(j.DBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, nil
	}
}

func (l LogConfig) options() logger.Options {
	return logger.Options{Level: logger.Level(l.Level), Format: l.Format, OutputPaths: l.OutputPaths}
}

func (l LogConfig) Logger() (*zap.Logger, error) {
	return logger.New(l.options())
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Series: []SeriesConfig{
			{Instrument: "EUR_USD", Kind: "timeframe", Arg: "M1"},
			{Instrument: "EUR_USD", Kind: "tick", Arg: "100"},
		},
		Sources: []SourceConfig{
			{
				Name:       "synthetic",
				Type:       "generator",
				Instrument: "EUR_USD",
				Step:       "1s",
				Price:      "1.0850",
				Tick:       "0.0001",
				MaxVolume:  10,
				Count:      3600,
				Seed:       1,
			},
		},
		Builder: BuilderConfig{VolumePolicy: "carry"},
		Journal: JournalConfig{
			Type:    "csv",
			CSVFile: "./candles.csv",
		},
		Log: LogConfig{Level: "info"},
	}
}
