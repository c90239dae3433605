package candles

import "github.com/rustyeddy/candles/market"

// RangeBuilder closes a candle as soon as High - Low reaches Size.
type RangeBuilder struct{}

func (RangeBuilder) Kind() Kind { return RangeKind }

func (RangeBuilder) Process(s Series, active *Candle, v market.Value) Result {
	if err := admit(s, active, v); err != nil {
		return rejected(err)
	}

	c := active
	if c == nil {
		c = newCandle(s, v.Time, v.Time, v.Price.Decimal)
	}
	c.apply(v)

	if c.Range().GreaterThanOrEqual(s.Size) {
		return completed(c)
	}
	return resume(active, c)
}
