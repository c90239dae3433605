package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type Trade struct {
	ID         string
	Instrument string
	Time       time.Time
	Price      decimal.Decimal
	Volume     decimal.Decimal
	Side       Side
}

func FromTrade(t Trade) Value {
	return Value{
		Instrument: t.Instrument,
		Time:       t.Time,
		Price:      Some(t.Price),
		Volume:     Some(t.Volume),
		Side:       t.Side,
		Origin:     OriginTrade,
	}
}

// OrderLogEntry is one row of a full order log. Only rows that record a
// match (TradePrice set) describe a trade.
type OrderLogEntry struct {
	OrderID     string
	Instrument  string
	Time        time.Time
	Side        Side
	Price       decimal.Decimal
	Volume      decimal.Decimal
	TradeID     string
	TradePrice  decimal.NullDecimal
	TradeVolume decimal.NullDecimal
}

// FromOrderLog derives a trade value from an order-log row. The second
// result is false for rows that placed or cancelled an order without a
// match.
func FromOrderLog(e OrderLogEntry) (Value, bool) {
	if !e.TradePrice.Valid {
		return Value{}, false
	}
	vol := e.TradeVolume
	if !vol.Valid {
		vol = Some(e.Volume)
	}
	return Value{
		Instrument: e.Instrument,
		Time:       e.Time,
		Price:      e.TradePrice,
		Volume:     vol,
		Side:       e.Side,
		Origin:     OriginOrderLog,
	}, true
}

// Level1 is a set of top-of-book and last-trade fields for one instrument.
// Any field may be absent.
type Level1 struct {
	Instrument      string
	Time            time.Time
	LastTradePrice  decimal.NullDecimal
	LastTradeVolume decimal.NullDecimal
	LastTradeSide   Side
	BestBid         decimal.NullDecimal
	BestAsk         decimal.NullDecimal
}

// FromLevel1 prefers the last trade fields and falls back to the mid of
// the best bid and ask. The second result is false when neither is usable.
func FromLevel1(l Level1) (Value, bool) {
	v := Value{
		Instrument: l.Instrument,
		Time:       l.Time,
		Origin:     OriginLevel1,
	}
	if l.LastTradePrice.Valid {
		v.Price = l.LastTradePrice
		v.Volume = l.LastTradeVolume
		v.Side = l.LastTradeSide
		return v, true
	}
	if l.BestBid.Valid || l.BestAsk.Valid {
		q := Quote{Instrument: l.Instrument, Time: l.Time}
		q.Bid = l.BestBid.Decimal
		q.Ask = l.BestAsk.Decimal
		if mid := q.Mid(); !mid.IsZero() {
			v.Price = Some(mid)
			return v, true
		}
	}
	if l.LastTradeVolume.Valid {
		v.Volume = l.LastTradeVolume
		return v, true
	}
	return Value{}, false
}
