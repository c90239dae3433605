package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/candles/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the candle journal",
	Long: `Query runs and candles recorded in a SQLite journal.

Subcommands:
  run     - Print a run as an Org mode entry
  candles - List the candles of one series in a run
  between - List candles of a series opened in a time range

Examples:
  candles journal run 01J9Z3V8Q6K1H4W2X7Y5T0R3MN
  candles journal candles 01J9Z3V8Q6K1H4W2X7Y5T0R3MN EUR_USD/timeframe/M5
  candles journal between EUR_USD/timeframe/M5 2026-01-24T00:00:00Z 2026-01-25T00:00:00Z`,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Print a run as an Org mode entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var journalCandlesCmd = &cobra.Command{
	Use:   "candles <run-id> <series>",
	Short: "List the candles of one series in a run",
	Args:  cobra.ExactArgs(2),
	RunE:  runJournalCandles,
}

var journalBetweenCmd = &cobra.Command{
	Use:   "between <series> <from> <to>",
	Short: "List candles opened in [from, to)",
	Args:  cobra.ExactArgs(3),
	RunE:  runJournalBetween,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunCmd)
	journalCmd.AddCommand(journalCandlesCmd)
	journalCmd.AddCommand(journalBetweenCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./candles.sqlite", "path to SQLite journal DB")
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	run, err := j.GetRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	var records []journal.CandleRecord
	for _, s := range run.Series {
		list, err := j.ListCandles(ctx, run.RunID, s)
		if err != nil {
			return fmt.Errorf("list candles: %w", err)
		}
		records = append(records, list...)
	}

	out, err := journal.FormatRunOrg(run, journal.Summarize(records))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runJournalCandles(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	list, err := j.ListCandles(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("list candles: %w", err)
	}
	printCandles(cmd, list)
	return nil
}

func runJournalBetween(cmd *cobra.Command, args []string) error {
	from, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		return fmt.Errorf("invalid from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, args[2])
	if err != nil {
		return fmt.Errorf("invalid to: %w", err)
	}

	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	list, err := j.ListCandlesBetween(args[0], from, to)
	if err != nil {
		return fmt.Errorf("list candles: %w", err)
	}
	printCandles(cmd, list)
	return nil
}

func printCandles(cmd *cobra.Command, list []journal.CandleRecord) {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No candles found.")
		return
	}
	for _, c := range list {
		fmt.Fprintf(out, "%s #%d %s  O %s H %s L %s C %s  V %s  N %d\n",
			c.Series, c.Seq, c.OpenTime.UTC().Format(time.RFC3339),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades)
	}
}
