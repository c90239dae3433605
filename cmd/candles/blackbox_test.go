//go:build blackbox

package main

import (
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var candlesBin string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "candles-blackbox-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	candlesBin = filepath.Join(tmp, "candles")

	// Build the binary once for all tests.
	cmd := exec.Command("go", "build", "-o", candlesBin, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	cmd := exec.Command(candlesBin, args...)
	cmd.Dir = t.TempDir()
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("command failed: %v\nargs: %v\noutput:\n%s", err, args, string(out))
	}
	return string(out)
}

func countCandles(t *testing.T, dbPath, series string) int {
	t.Helper()

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM candles WHERE series = ?`, series).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func writeQuotesCSV(t *testing.T, path, instrument string, n int, priceFn func(i int) (bid, ask float64)) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	_, _ = f.WriteString("time,instrument,bid,ask\n")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		bid, ask := priceFn(i)
		ts := start.Add(time.Second * time.Duration(i)).Format(time.RFC3339Nano)
		_, _ = fmt.Fprintf(f, "%s,%s,%.6f,%.6f\n", ts, instrument, bid, ask)
	}
}

func TestRunQuotes_JournalsCandles(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "candles.sqlite")
	quotesPath := filepath.Join(dir, "quotes.csv")

	writeQuotesCSV(t, quotesPath, "EUR_USD", 120, func(i int) (bid, ask float64) {
		mid := 1.1000 + float64(i)*0.00001
		return mid - 0.0001, mid + 0.0001
	})

	out := run(t,
		"run",
		"--csv", quotesPath,
		"--format", "quotes",
		"-s", "EUR_USD:timeframe:M1",
		"-s", "EUR_USD:tick:30",
		"--db", dbPath,
	)

	if !strings.Contains(out, "Results saved to") {
		t.Fatalf("expected results line in output, got:\n%s", out)
	}
	if n := countCandles(t, dbPath, "EUR_USD/timeframe/M1"); n != 2 {
		t.Fatalf("expected 2 M1 candles, got %d", n)
	}
	if n := countCandles(t, dbPath, "EUR_USD/tick/30"); n != 4 {
		t.Fatalf("expected 4 tick candles, got %d", n)
	}
}

func TestGenerateThenRun_WritesOrgReport(t *testing.T) {
	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	dbPath := filepath.Join(dir, "candles.sqlite")
	orgPath := filepath.Join(dir, "run.org")

	out := run(t, "generate", "-o", tradesPath, "-n", "300", "--seed", "7")
	if !strings.Contains(out, "Wrote 300 trades") {
		t.Fatalf("unexpected generate output:\n%s", out)
	}

	run(t,
		"run",
		"--csv", tradesPath,
		"-s", "EUR_USD:tick:50",
		"-s", "EUR_USD:volume:100",
		"--db", dbPath,
		"--org", orgPath,
	)

	if n := countCandles(t, dbPath, "EUR_USD/tick/50"); n != 6 {
		t.Fatalf("expected 6 tick candles, got %d", n)
	}
	org, err := os.ReadFile(orgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(org), "EUR_USD/volume/100") {
		t.Fatalf("org report misses volume series:\n%s", org)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.yaml")

	run(t, "config", "init", "-o", path)
	out := run(t, "config", "validate", "-f", path)

	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("expected valid config, got:\n%s", out)
	}
	if !strings.Contains(out, "EUR_USD/timeframe/M1") {
		t.Fatalf("expected series listing, got:\n%s", out)
	}
}
