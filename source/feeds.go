package source

import (
	"context"
	"errors"
	"iter"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/candles/market"
)

// Channel is a live source fed by Send. Values of instruments nobody has
// registered for are dropped.
type Channel struct {
	name string
	ch   chan market.Value
	done chan struct{}

	mu     sync.Mutex
	subs   map[string]int
	closed bool
}

// ErrClosed is returned by Send once the channel source is closed.
var ErrClosed = errors.New("channel source closed")

func NewChannel(name string, buffer int) *Channel {
	return &Channel{
		name: name,
		ch:   make(chan market.Value, buffer),
		done: make(chan struct{}),
		subs: make(map[string]int),
	}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) RegisterSecurity(instrument string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[instrument]++
	return nil
}

func (c *Channel) UnRegisterSecurity(instrument string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[instrument] <= 1 {
		delete(c.subs, instrument)
		return nil
	}
	c.subs[instrument]--
	return nil
}

// Instruments lists the instruments currently registered, sorted.
func (c *Channel) Instruments() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for inst := range c.subs {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

func (c *Channel) wants(instrument string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[instrument] > 0
}

// Send queues v, blocking while the buffer is full. It fails with
// ErrClosed after Close.
func (c *Channel) Send(ctx context.Context, v market.Value) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.ch <- v:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends Run once the queued values are drained.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *Channel) Run(ctx context.Context, emit func(market.Value)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v := <-c.ch:
			c.deliver(v, emit)
		case <-c.done:
			for {
				select {
				case v := <-c.ch:
					c.deliver(v, emit)
				default:
					return nil
				}
			}
		}
	}
}

func (c *Channel) deliver(v market.Value, emit func(market.Value)) {
	if c.wants(v.Instrument) {
		emit(v)
	}
}

// Replay emits a fixed slice of historical values in order.
type Replay struct {
	name   string
	values []market.Value

	// Delay paces emission; zero replays as fast as possible.
	Delay time.Duration
}

func NewReplay(name string, values []market.Value) *Replay {
	return &Replay{name: name, values: values}
}

func (r *Replay) Name() string { return r.name }

func (r *Replay) Run(ctx context.Context, emit func(market.Value)) error {
	var tick <-chan time.Time
	if r.Delay > 0 {
		t := time.NewTicker(r.Delay)
		defer t.Stop()
		tick = t.C
	}

	for _, v := range r.values {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		emit(v)
	}
	return nil
}

// Generator emits a deterministic random walk of trades. The same seed
// always yields the same values.
type Generator struct {
	Label      string // source name; defaults to "gen:<instrument>"
	Instrument string
	Start      time.Time
	Step       time.Duration
	Price      decimal.Decimal
	Tick       decimal.Decimal // price increment
	MaxVolume  int64
	Count      int
	Seed       int64
}

// genEpoch stands in for a zero Generator.Start.
var genEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func (g *Generator) Name() string {
	if g.Label != "" {
		return g.Label
	}
	return "gen:" + g.Instrument
}

func (g *Generator) Run(ctx context.Context, emit func(market.Value)) error {
	for v := range g.values() {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(v)
	}
	return nil
}

// Values returns the whole walk; handy for replaying the same data twice.
func (g *Generator) Values() []market.Value {
	out := make([]market.Value, 0, g.Count)
	for v := range g.values() {
		out = append(out, v)
	}
	return out
}

func (g *Generator) values() iter.Seq[market.Value] {
	return func(yield func(market.Value) bool) {
		rng := rand.New(rand.NewSource(g.Seed))
		tick := g.Tick
		if !tick.IsPositive() {
			tick = decimal.New(1, -2)
		}
		maxVol := g.MaxVolume
		if maxVol <= 0 {
			maxVol = 10
		}
		step := g.Step
		if step <= 0 {
			step = time.Second
		}

		px := g.Price
		ts := g.Start
		if ts.IsZero() {
			ts = genEpoch
		}
		for i := 0; i < g.Count; i++ {
			px = px.Add(tick.Mul(decimal.NewFromInt(int64(rng.Intn(5) - 2))))
			if px.LessThan(tick) {
				px = tick
			}
			side := market.Buy
			if rng.Intn(2) == 0 {
				side = market.Sell
			}
			tr := market.Trade{
				Instrument: g.Instrument,
				Time:       ts,
				Price:      px,
				Volume:     decimal.NewFromInt(rng.Int63n(maxVol) + 1),
				Side:       side,
			}
			if !yield(market.FromTrade(tr)) {
				return
			}
			ts = ts.Add(step)
		}
	}
}
