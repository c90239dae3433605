package journal

import (
	"database/sql"
	"fmt"
	"time"
)

const candleColumns = `run_id, series, instrument, kind, seq, open_time, close_time, open, high, low, close, volume, trades`

func scanCandle(sc interface{ Scan(...any) error }) (CandleRecord, error) {
	var rec CandleRecord
	err := sc.Scan(
		&rec.RunID,
		&rec.Series,
		&rec.Instrument,
		&rec.Kind,
		&rec.Seq,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.Open,
		&rec.High,
		&rec.Low,
		&rec.Close,
		&rec.Volume,
		&rec.Trades,
	)
	return rec, err
}

func scanCandles(rows *sql.Rows) ([]CandleRecord, error) {
	defer rows.Close()

	var out []CandleRecord
	for rows.Next() {
		rec, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCandle returns a single candle by run, series and sequence number.
func (j *SQLite) GetCandle(runID, series string, seq int64) (CandleRecord, error) {
	row := j.db.QueryRow(`
		SELECT `+candleColumns+`
		FROM candles
		WHERE run_id = ? AND series = ? AND seq = ?`, runID, series, seq)

	rec, err := scanCandle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return CandleRecord{}, fmt.Errorf("candle %s #%d in run %q not found", series, seq, runID)
		}
		return CandleRecord{}, err
	}
	return rec, nil
}

// ListCandlesBetween returns candles of a series from any run whose
// open_time is within [start, end).
func (j *SQLite) ListCandlesBetween(series string, start, end time.Time) ([]CandleRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+candleColumns+`
		FROM candles
		WHERE series = ? AND open_time >= ? AND open_time < ?
		ORDER BY open_time ASC, run_id ASC`, series, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return scanCandles(rows)
}

// CountCandles returns how many candles each series produced in a run.
func (j *SQLite) CountCandles(runID string) (map[string]int, error) {
	rows, err := j.db.Query(`
		SELECT series, COUNT(*)
		FROM candles
		WHERE run_id = ?
		GROUP BY series`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			series string
			n      int
		)
		if err := rows.Scan(&series, &n); err != nil {
			return nil, err
		}
		out[series] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
