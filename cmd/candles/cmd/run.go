package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/candles/candles"
	"github.com/rustyeddy/candles/config"
	"github.com/rustyeddy/candles/journal"
	"github.com/rustyeddy/candles/manager"
	"github.com/rustyeddy/candles/pkg/id"
	"github.com/rustyeddy/candles/source"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build candle series from CSV data or a generator",
	Long: `Feed market data through the candle builders and journal the result.

Runs either from a configuration file or from a CSV file given on the
command line. Series are written as instrument:kind:arg.

Examples:
  candles run -f candles.yaml
  candles run --csv data/eurusd.csv -s EUR_USD:timeframe:M5 -s EUR_USD:tick:100
  candles run --csv data/quotes.csv --format quotes --quote bid --db ./candles.sqlite`,
	RunE: runRun,
}

var (
	runConfigPath   string
	runCSVPath      string
	runFormat       string
	runQuote        string
	runSeries       []string
	runVolumePolicy string
	runDBPath       string
	runOrgPath      string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file")
	runCmd.Flags().StringVarP(&runCSVPath, "csv", "c", "", "CSV file of trades or quotes")
	runCmd.Flags().StringVar(&runFormat, "format", "trades", "CSV layout: trades, quotes, orderlog or level1")
	runCmd.Flags().StringVar(&runQuote, "quote", "mid", "quote price to use: mid, bid or ask")
	runCmd.Flags().StringArrayVarP(&runSeries, "series", "s", nil, "series as instrument:kind:arg (repeatable)")
	runCmd.Flags().StringVar(&runVolumePolicy, "volume-policy", "carry", "volume candle overflow: carry or absorb")
	runCmd.Flags().StringVarP(&runDBPath, "db", "d", "", "SQLite journal path (default: CSV journal ./candles.csv)")
	runCmd.Flags().StringVar(&runOrgPath, "org", "", "write an Org mode run report to this file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := runConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	_, err = execute(ctx, cfg, log, cmd.OutOrStdout())
	return err
}

// runConfig loads the config file or assembles one from flags.
func runConfig() (*config.Config, error) {
	if runConfigPath != "" {
		cfg, err := config.LoadFromFile(runConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if runOrgPath != "" {
			cfg.Journal.OrgFile = runOrgPath
		}
		return cfg, nil
	}

	if runCSVPath == "" {
		return nil, errors.New("either --config or --csv flag is required")
	}
	if len(runSeries) == 0 {
		return nil, errors.New("at least one --series is required with --csv")
	}

	cfg := &config.Config{
		Sources: []config.SourceConfig{{
			Name:   "csv",
			Type:   "csv",
			Path:   runCSVPath,
			Format: runFormat,
			Quote:  runQuote,
		}},
		Builder: config.BuilderConfig{VolumePolicy: runVolumePolicy},
		Journal: config.JournalConfig{Type: "csv", CSVFile: "./candles.csv", OrgFile: runOrgPath},
		Log:     config.LogConfig{Level: "info"},
	}
	if runDBPath != "" {
		cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: runDBPath, OrgFile: runOrgPath}
	}
	for _, arg := range runSeries {
		sc, err := parseSeriesFlag(arg)
		if err != nil {
			return nil, err
		}
		cfg.Series = append(cfg.Series, sc)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func parseSeriesFlag(s string) (config.SeriesConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return config.SeriesConfig{}, fmt.Errorf("series %q: want instrument:kind:arg", s)
	}
	return config.SeriesConfig{Instrument: parts[0], Kind: parts[1], Arg: parts[2]}, nil
}

// execute runs one aggregation pass over cfg and reports it to out.
func execute(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer) (journal.RunRecord, error) {
	builders, err := cfg.Builder.Builders()
	if err != nil {
		return journal.RunRecord{}, err
	}

	srcs := make(map[string]source.Source, len(cfg.Sources))
	var datasets []string
	for _, sc := range cfg.Sources {
		src, err := sc.Build()
		if err != nil {
			return journal.RunRecord{}, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		srcs[sc.Name] = src
		datasets = append(datasets, datasetName(sc))
	}

	j, err := cfg.Journal.Open()
	if err != nil {
		return journal.RunRecord{}, fmt.Errorf("create journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	run := journal.RunRecord{
		RunID:   id.New(),
		Created: time.Now().UTC(),
		Dataset: strings.Join(datasets, ","),
	}
	log = log.With(zap.String("run_id", run.RunID))

	m := manager.New(manager.WithLogger(log), manager.WithBuilders(builders))
	series := make([]candles.Series, 0, len(cfg.Series))
	for i, sc := range cfg.Series {
		s, err := sc.Series()
		if err != nil {
			return run, err
		}
		if err := m.Start(s); err != nil {
			return run, err
		}
		if j != nil {
			if _, err := m.Subscribe(s, journal.Subscriber(j, run.RunID, log)); err != nil {
				return run, err
			}
		}
		for _, name := range cfg.SourcesFor(i) {
			if err := m.Attach(s, srcs[name]); err != nil {
				return run, fmt.Errorf("attach %s to %s: %w", name, s.Key(), err)
			}
		}
		series = append(series, s)
		run.Series = append(run.Series, s.Key())
	}

	fmt.Fprintf(out, "Run %s: %d series from %s\n", run.RunID, len(series), run.Dataset)
	if err := m.Run(ctx); err != nil {
		return run, fmt.Errorf("run sources: %w", err)
	}

	var errs []error
	for _, s := range series {
		errs = append(errs, m.Stop(s))
	}
	if err := errors.Join(errs...); err != nil {
		log.Error("series failed", zap.Error(err))
		run.Notes = append(run.Notes, err.Error())
	}

	var records []journal.CandleRecord
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tSTATE\tCANDLES\tACCEPTED\tMALFORMED\tOUT OF ORDER")
	for _, s := range series {
		st, err := m.Stats(s)
		if err != nil {
			return run, err
		}
		run.Values += st.Accepted
		run.Candles += int64(st.Finished)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", s.Key(), m.State(s), st.Finished, st.Accepted, st.Malformed, st.OutOfOrder)

		if cfg.Journal.OrgFile != "" {
			finished, err := m.Finished(s)
			if err != nil {
				return run, err
			}
			for c := range finished {
				records = append(records, journal.NewCandleRecord(run.RunID, c))
			}
		}
	}
	_ = tw.Flush()

	if db, ok := j.(*journal.SQLite); ok {
		if err := db.RecordRun(ctx, run); err != nil {
			return run, fmt.Errorf("record run: %w", err)
		}
		fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.Journal.DBPath)
	} else if cfg.Journal.Type == "csv" {
		fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.Journal.CSVFile)
	}

	if cfg.Journal.OrgFile != "" {
		if err := journal.WriteRunOrg(cfg.Journal.OrgFile, run, journal.Summarize(records)); err != nil {
			return run, fmt.Errorf("write org report: %w", err)
		}
		fmt.Fprintf(out, "Org report: %s\n", cfg.Journal.OrgFile)
	}

	log.Info("run complete",
		zap.Int("series", len(series)),
		zap.Int64("values", run.Values),
		zap.Int64("candles", run.Candles))
	return run, nil
}

func datasetName(sc config.SourceConfig) string {
	if sc.Type == "csv" {
		return sc.Path
	}
	return sc.Name
}
