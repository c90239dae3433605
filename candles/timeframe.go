package candles

import (
	"time"

	"github.com/rustyeddy/candles/market"
)

// TimeFrameBuilder groups values into fixed windows [floor(t, d), floor+d).
// Windows are aligned on the zero time, so minute, hour and day frames
// line up with wall-clock boundaries in UTC.
type TimeFrameBuilder struct{}

func (TimeFrameBuilder) Kind() Kind { return TimeFrameKind }

func (TimeFrameBuilder) Process(s Series, active *Candle, v market.Value) Result {
	if err := admit(s, active, v); err != nil {
		return rejected(err)
	}

	start := WindowStart(v.Time, s.TimeFrame)
	if active != nil && start.Equal(active.OpenTime) {
		active.apply(v)
		return unchanged(active)
	}

	next := newCandle(s, start, v.Time, v.Price.Decimal)
	next.apply(v)
	if active == nil {
		return started(next)
	}
	return started(next, active)
}

// WindowStart floors t to a multiple of d.
func WindowStart(t time.Time, d time.Duration) time.Time {
	return t.Truncate(d)
}
