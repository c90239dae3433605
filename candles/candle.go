package candles

import (
	"fmt"
	"time"

	"github.com/rustyeddy/candles/market"
	"github.com/shopspring/decimal"
)

type State int8

const (
	Active State = iota
	Finished
)

func (s State) String() string {
	if s == Finished {
		return "finished"
	}
	return "active"
}

// Candle is the aggregate of one grouping interval. While Active it is
// owned by a Container and only mutated by a Builder during a single
// Process call; once Finished it never changes again.
type Candle struct {
	Series Series
	Seq    int64 // 1-based position within the series

	OpenTime  time.Time
	CloseTime time.Time
	HighTime  time.Time
	LowTime   time.Time

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	TotalVolume decimal.Decimal
	BuyVolume   decimal.Decimal
	SellVolume  decimal.Decimal
	TradeCount  int64
	UpTicks     int64
	DownTicks   int64

	// Direction of a renko brick or point-and-figure column: +1 up, -1
	// down, 0 not yet known.
	Direction int8

	State State
}

func newCandle(s Series, openTime, at time.Time, open decimal.Decimal) *Candle {
	return &Candle{
		Series:      s,
		OpenTime:    openTime,
		CloseTime:   at,
		HighTime:    at,
		LowTime:     at,
		Open:        open,
		High:        open,
		Low:         open,
		Close:       open,
		TotalVolume: decimal.Zero,
		BuyVolume:   decimal.Zero,
		SellVolume:  decimal.Zero,
	}
}

// apply folds one accepted value into c and counts it as a trade.
func (c *Candle) apply(v market.Value) {
	c.fold(v)
	c.TradeCount++
}

// fold updates prices and volume from v without counting a trade. The
// close only moves forward in time, so a value from a lagging source
// widens high/low and adds volume without rewinding the close.
func (c *Candle) fold(v market.Value) {
	price := v.Price.Decimal
	t := v.Time

	if price.GreaterThan(c.High) {
		c.High, c.HighTime = price, t
	}
	if price.LessThan(c.Low) {
		c.Low, c.LowTime = price, t
	}
	if !t.Before(c.CloseTime) {
		switch price.Cmp(c.Close) {
		case 1:
			c.UpTicks++
		case -1:
			c.DownTicks++
		}
		c.Close, c.CloseTime = price, t
	}

	qty := v.Qty()
	c.TotalVolume = c.TotalVolume.Add(qty)
	switch v.Side {
	case market.Buy:
		c.BuyVolume = c.BuyVolume.Add(qty)
	case market.Sell:
		c.SellVolume = c.SellVolume.Add(qty)
	}
}

// closeAt ends a grid candle (renko brick) exactly at px.
func (c *Candle) closeAt(px decimal.Decimal, t time.Time, dir int8) {
	if px.GreaterThan(c.High) {
		c.High, c.HighTime = px, t
	}
	if px.LessThan(c.Low) {
		c.Low, c.LowTime = px, t
	}
	c.Close = px
	if t.After(c.CloseTime) {
		c.CloseTime = t
	}
	c.Direction = dir
}

// Snapshot returns a copy that shares nothing mutable with c.
func (c *Candle) Snapshot() Candle {
	return *c
}

// Range returns High - Low.
func (c Candle) Range() decimal.Decimal {
	return c.High.Sub(c.Low)
}

// Valid checks the OHLC ordering and volume sign.
func (c Candle) Valid() error {
	if c.Low.GreaterThan(decimal.Min(c.Open, c.Close)) {
		return fmt.Errorf("low %s above open/close", c.Low)
	}
	if c.High.LessThan(decimal.Max(c.Open, c.Close)) {
		return fmt.Errorf("high %s below open/close", c.High)
	}
	if c.TotalVolume.IsNegative() {
		return fmt.Errorf("negative volume %s", c.TotalVolume)
	}
	return nil
}

func (c Candle) String() string {
	return fmt.Sprintf("%s #%d [%s, %s) O=%s H=%s L=%s C=%s V=%s %s",
		c.Series.Key(), c.Seq,
		c.OpenTime.Format(time.RFC3339), c.CloseTime.Format(time.RFC3339),
		c.Open, c.High, c.Low, c.Close, c.TotalVolume, c.State)
}
