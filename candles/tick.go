package candles

import "github.com/rustyeddy/candles/market"

// TickBuilder closes a candle as soon as it holds Count values.
type TickBuilder struct{}

func (TickBuilder) Kind() Kind { return TickKind }

func (TickBuilder) Process(s Series, active *Candle, v market.Value) Result {
	if err := admit(s, active, v); err != nil {
		return rejected(err)
	}

	c := active
	if c == nil {
		c = newCandle(s, v.Time, v.Time, v.Price.Decimal)
	}
	c.apply(v)

	if c.TradeCount >= s.Count {
		return completed(c)
	}
	return resume(active, c)
}
