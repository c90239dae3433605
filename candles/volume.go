package candles

import (
	"github.com/rustyeddy/candles/market"
)

// VolumeBuilder closes a candle once its total volume reaches Size. What
// happens to volume beyond the threshold depends on Policy; neither policy
// drops or double counts volume.
type VolumeBuilder struct {
	Policy VolumePolicy
}

func (VolumeBuilder) Kind() Kind { return VolumeKind }

func (b VolumeBuilder) Process(s Series, active *Candle, v market.Value) Result {
	if err := admit(s, active, v); err != nil {
		return rejected(err)
	}

	threshold := s.Size
	price := v.Price.Decimal
	qty := v.Qty()

	c := active
	if c == nil {
		c = newCandle(s, v.Time, v.Time, price)
	}

	room := threshold.Sub(c.TotalVolume)
	if qty.LessThan(room) {
		c.apply(v)
		return resume(active, c)
	}

	if b.Policy == VolumeAbsorb {
		c.apply(v)
		return completed(c)
	}

	// The trade counts once, in the candle that takes its first piece.
	c.apply(v.WithVolume(room))
	closed := []*Candle{c}
	rest := qty.Sub(room)

	for rest.GreaterThanOrEqual(threshold) {
		full := newCandle(s, v.Time, v.Time, price)
		full.fold(v.WithVolume(threshold))
		closed = append(closed, full)
		rest = rest.Sub(threshold)
	}

	if rest.IsZero() {
		return completed(closed...)
	}

	next := newCandle(s, v.Time, v.Time, price)
	next.fold(v.WithVolume(rest))
	return started(next, closed...)
}
