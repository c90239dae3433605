package candles

import (
	"github.com/rustyeddy/candles/market"
	"github.com/shopspring/decimal"
)

// PointFigureBuilder builds point-and-figure columns. A candle is one
// column: rising (X, Direction +1) or falling (O, Direction -1). The first
// column takes its direction once price moves one box from the open. A
// column reverses when price retraces Reversal boxes from its extreme; the
// new column opens one box off that extreme.
type PointFigureBuilder struct{}

func (PointFigureBuilder) Kind() Kind { return PointFigureKind }

func (PointFigureBuilder) Process(s Series, active *Candle, v market.Value) Result {
	if err := admit(s, active, v); err != nil {
		return rejected(err)
	}

	price := v.Price.Decimal
	if active == nil {
		c := newCandle(s, v.Time, v.Time, price)
		c.apply(v)
		return started(c)
	}

	box := s.Size
	reverse := box.Mul(decimal.NewFromInt(int64(s.Reversal)))
	c := active

	switch c.Direction {
	case +1:
		if price.LessThanOrEqual(c.High.Sub(reverse)) {
			next := newCandle(s, v.Time, v.Time, c.High.Sub(box))
			next.Direction = -1
			next.apply(v)
			return started(next, c)
		}
	case -1:
		if price.GreaterThanOrEqual(c.Low.Add(reverse)) {
			next := newCandle(s, v.Time, v.Time, c.Low.Add(box))
			next.Direction = +1
			next.apply(v)
			return started(next, c)
		}
	}

	c.apply(v)
	if c.Direction == 0 {
		switch {
		case c.High.Sub(c.Open).GreaterThanOrEqual(box):
			c.Direction = +1
		case c.Open.Sub(c.Low).GreaterThanOrEqual(box):
			c.Direction = -1
		}
	}
	return unchanged(c)
}
