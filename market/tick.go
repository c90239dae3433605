package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

type BA struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Quote is the top of an order book: a snapshot or the result of applying a
// delta. Volumes are the sizes resting at the best levels.
type Quote struct {
	Instrument string
	Time       time.Time
	BA
	BidVolume decimal.Decimal
	AskVolume decimal.Decimal
}

func (q Quote) Mid() decimal.Decimal {
	if q.Bid.IsZero() && q.Ask.IsZero() {
		return decimal.Zero
	}
	if q.Bid.IsZero() {
		return q.Ask
	}
	if q.Ask.IsZero() {
		return q.Bid
	}
	return q.Bid.Add(q.Ask).Div(two)
}

func (q Quote) Spread() decimal.Decimal {
	return q.Ask.Sub(q.Bid)
}

// QuotePrice selects which book price becomes the candle price.
type QuotePrice int8

const (
	QuoteMid QuotePrice = iota
	QuoteBid
	QuoteAsk
)

func ParseQuotePrice(s string) (QuotePrice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mid":
		return QuoteMid, nil
	case "bid":
		return QuoteBid, nil
	case "ask":
		return QuoteAsk, nil
	default:
		return QuoteMid, fmt.Errorf("unknown quote price %q", s)
	}
}

// FromQuote normalizes a book top. The value carries the size resting at
// the selected side; mid prices carry no volume.
func FromQuote(q Quote, which QuotePrice) Value {
	v := Value{
		Instrument: q.Instrument,
		Time:       q.Time,
		Origin:     OriginOrderBook,
	}
	switch which {
	case QuoteBid:
		if !q.Bid.IsZero() {
			v.Price = Some(q.Bid)
			v.Volume = Some(q.BidVolume)
		}
		v.Side = Buy
	case QuoteAsk:
		if !q.Ask.IsZero() {
			v.Price = Some(q.Ask)
			v.Volume = Some(q.AskVolume)
		}
		v.Side = Sell
	default:
		if mid := q.Mid(); !mid.IsZero() {
			v.Price = Some(mid)
		}
	}
	return v
}
