package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/candles/config"
)

var rootCmd = &cobra.Command{
	Use:   "candles",
	Short: "Streaming candle compression for market data",
	Long: `Candles turns a stream of trades and quotes into candle series.

It provides tools for:
  - Building time frame, tick, volume, range, renko and point & figure candles
  - Replaying CSV market data or a synthetic random walk
  - Journaling finished candles to CSV or SQLite
  - Writing Org mode run reports

Complete documentation is available at https://github.com/rustyeddy/candles`,
	SilenceUsage: true,
}

var (
	logLevel  string
	logFormat string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (json or console)")
}

// newLogger builds the logger for lc with any command line overrides applied.
func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	if logLevel != "" {
		lc.Level = logLevel
	}
	if logFormat != "" {
		lc.Format = logFormat
	}
	return lc.Logger()
}
