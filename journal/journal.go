package journal

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/candles/candles"
)

// CandleRecord is one finished candle as stored by a journal.
type CandleRecord struct {
	RunID      string
	Series     string
	Instrument string
	Kind       string
	Seq        int64
	OpenTime   time.Time
	CloseTime  time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Trades     int64
}

func NewCandleRecord(runID string, c candles.Candle) CandleRecord {
	return CandleRecord{
		RunID:      runID,
		Series:     c.Series.Key(),
		Instrument: c.Series.Instrument,
		Kind:       c.Series.Kind.String(),
		Seq:        c.Seq,
		OpenTime:   c.OpenTime,
		CloseTime:  c.CloseTime,
		Open:       c.Open,
		High:       c.High,
		Low:        c.Low,
		Close:      c.Close,
		Volume:     c.TotalVolume,
		Trades:     c.TradeCount,
	}
}

// RunRecord describes one aggregation run.
type RunRecord struct {
	RunID   string
	Created time.Time
	Dataset string
	Series  []string
	Values  int64
	Candles int64
	Notes   []string
}

type Journal interface {
	RecordCandle(CandleRecord) error
	Close() error
}

// Subscriber returns a candle handler that writes every finished candle
// to j under runID. In-progress updates are ignored. Write errors are
// logged; they never reach the manager.
func Subscriber(j Journal, runID string, log *zap.Logger) func(candles.Update) {
	if log == nil {
		log = zap.NewNop()
	}
	return func(u candles.Update) {
		if !u.Final {
			return
		}
		if err := j.RecordCandle(NewCandleRecord(runID, u.Candle)); err != nil {
			log.Error("journal write failed",
				zap.String("run_id", runID),
				zap.String("series", u.Candle.Series.Key()),
				zap.Int64("seq", u.Candle.Seq),
				zap.Error(err))
		}
	}
}
