package candles

import (
	"testing"
	"time"

	"github.com/rustyeddy/candles/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// at parses a clock time such as "10:00:05" on the test day.
func at(t *testing.T, clock string) time.Time {
	t.Helper()
	c, err := time.Parse("15:04:05", clock)
	require.NoError(t, err)
	return day.Add(time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute + time.Duration(c.Second())*time.Second)
}

func trade(inst string, ts time.Time, price, vol string) market.Value {
	return market.Value{
		Instrument: inst,
		Time:       ts,
		Price:      market.Some(d(price)),
		Volume:     market.Some(d(vol)),
		Origin:     market.OriginTrade,
	}
}

func assertOHLC(t *testing.T, c Candle, o, h, l, cl string) {
	t.Helper()
	assert.True(t, c.Open.Equal(d(o)), "open %s want %s", c.Open, o)
	assert.True(t, c.High.Equal(d(h)), "high %s want %s", c.High, h)
	assert.True(t, c.Low.Equal(d(l)), "low %s want %s", c.Low, l)
	assert.True(t, c.Close.Equal(d(cl)), "close %s want %s", c.Close, cl)
}

// feeder runs values through a builder and a container the way the
// manager does, minus locking and publishing.
type feeder struct {
	t  *testing.T
	s  Series
	b  Builder
	ct *Container
}

func newFeeder(t *testing.T, s Series, b Builder) *feeder {
	t.Helper()
	ct := NewContainer()
	require.True(t, ct.Register(s))
	return &feeder{t: t, s: s, b: b, ct: ct}
}

func (f *feeder) feed(v market.Value) (Result, []Update) {
	f.t.Helper()
	if err := f.ct.Admit(f.s, v.Time); err != nil {
		f.ct.Reject(f.s, err)
		return rejected(err), nil
	}
	prior, _ := f.ct.Active(f.s)
	res := f.b.Process(f.s, prior, v)
	ups, err := f.ct.Commit(f.s, prior, res)
	require.NoError(f.t, err)
	return res, ups
}

func (f *feeder) finished() []Candle {
	var out []Candle
	for c := range f.ct.Finished(f.s) {
		out = append(out, c)
	}
	return out
}

func (f *feeder) active() (Candle, bool) {
	return f.ct.Snapshot(f.s)
}
