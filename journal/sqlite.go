package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// RecordCandle stores c. Recording the same (run, series, seq) again
// replaces the earlier row.
func (j *SQLite) RecordCandle(c CandleRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO candles
		(run_id, series, instrument, kind, seq, open_time, close_time, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, c.Series, c.Instrument, c.Kind, c.Seq,
		c.OpenTime.UTC(), c.CloseTime.UTC(),
		c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades,
	)
	return err
}

func (j *SQLite) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, created, dataset, series, value_count, candle_count, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Dataset, strings.Join(r.Series, ","),
		r.Values, r.Candles, strings.Join(r.Notes, "\n"),
	)
	return err
}

func (j *SQLite) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	var (
		r             RunRecord
		series, notes string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT run_id, created, dataset, series, value_count, candle_count, notes
		FROM runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Created, &r.Dataset, &series, &r.Values, &r.Candles, &notes,
	)
	if err == sql.ErrNoRows {
		return RunRecord{}, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return RunRecord{}, err
	}
	r.Series = splitNonEmpty(series, ",")
	r.Notes = splitNonEmpty(notes, "\n")
	return r, nil
}

// ListCandles returns the candles of one series in a run, by sequence.
func (j *SQLite) ListCandles(ctx context.Context, runID, series string) ([]CandleRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+candleColumns+`
		FROM candles
		WHERE run_id = ? AND series = ?
		ORDER BY seq ASC`, runID, series)
	if err != nil {
		return nil, err
	}
	return scanCandles(rows)
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
