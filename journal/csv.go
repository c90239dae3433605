package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"run_id", "series", "instrument", "kind", "seq", "open_time", "close_time", "open", "high", "low", "close", "volume", "trades"}

// CSV writes candle records to a single file. It is safe for concurrent
// use.
type CSV struct {
	mu sync.Mutex
	w  *csv.Writer
	f  *os.File
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &CSV{w: w, f: f}, nil
}

func (j *CSV) RecordCandle(c CandleRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.w.Write([]string{
		c.RunID,
		c.Series,
		c.Instrument,
		c.Kind,
		strconv.FormatInt(c.Seq, 10),
		c.OpenTime.UTC().Format(time.RFC3339Nano),
		c.CloseTime.UTC().Format(time.RFC3339Nano),
		c.Open.String(),
		c.High.String(),
		c.Low.String(),
		c.Close.String(),
		c.Volume.String(),
		strconv.FormatInt(c.Trades, 10),
	})
	if err != nil {
		return err
	}

	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		_ = j.f.Close()
		return err
	}
	return j.f.Close()
}
