package candles

import "github.com/rustyeddy/candles/market"

// RenkoBuilder lays bricks of Size on a grid anchored at the first price.
// A brick closes when price reaches its open +/- Size; the next brick opens
// on the grid at that close, not at the traded price. A jump of several
// boxes closes one brick per box. The triggering value lands in the brick
// left open.
type RenkoBuilder struct{}

func (RenkoBuilder) Kind() Kind { return RenkoKind }

func (RenkoBuilder) Process(s Series, active *Candle, v market.Value) Result {
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
	c := active
	var closed []*Candle
	for {
		up := c.Open.Add(box)
		down := c.Open.Sub(box)

		var edge = up
		var dir int8
		switch {
		case price.GreaterThanOrEqual(up):
			dir = +1
		case price.LessThanOrEqual(down):
			edge, dir = down, -1
		}
		if dir == 0 {
			break
		}

		c.closeAt(edge, v.Time, dir)
		closed = append(closed, c)
		c = newCandle(s, v.Time, v.Time, edge)
	}

	c.apply(v)
	if len(closed) == 0 {
		return unchanged(c)
	}
	return started(c, closed...)
}
