package candles

import (
	"fmt"

	"github.com/rustyeddy/candles/market"
)

// Action is the decision a builder took for one value.
type Action int8

const (
	// Unchanged: the value was folded into the open candle.
	Unchanged Action = iota
	// Started: a new candle is open. Any previous one is in Closed.
	Started
	// Completed: the value closed the open candle and nothing is open now.
	Completed
	// Rejected: the value was dropped without side effects.
	Rejected
)

func (a Action) String() string {
	switch a {
	case Unchanged:
		return "unchanged"
	case Started:
		return "started"
	case Completed:
		return "completed"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("action(%d)", int8(a))
	}
}

// Result is what a builder hands back to the container.
type Result struct {
	Action Action

	// Candle is the open candle after the value, nil when none is open.
	Candle *Candle

	// Closed lists candles this value completed, oldest first. It holds
	// the previously open candle when that one closed, followed by any
	// candles created and completed within the same call.
	Closed []*Candle

	// Err is set for Rejected and wraps ErrMalformedValue or
	// ErrOutOfOrderValue.
	Err error
}

// Builder implements the grouping rule of one candle kind. Process must
// not keep active past the call and must not do any I/O.
type Builder interface {
	Kind() Kind
	Process(s Series, active *Candle, v market.Value) Result
}

func rejected(err error) Result {
	return Result{Action: Rejected, Err: err}
}

func unchanged(c *Candle) Result {
	return Result{Action: Unchanged, Candle: c}
}

func started(c *Candle, closed ...*Candle) Result {
	return Result{Action: Started, Candle: c, Closed: closed}
}

func completed(closed ...*Candle) Result {
	return Result{Action: Completed, Closed: closed}
}

// resume returns unchanged when c is the candle that was already open and
// started otherwise.
func resume(active, c *Candle) Result {
	if c == active {
		return unchanged(c)
	}
	return started(c)
}

// admit runs the checks shared by every kind: the value must be well
// formed, carry a price, belong to the series instrument and not precede
// the open candle.
func admit(s Series, active *Candle, v market.Value) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}
	if v.Instrument != s.Instrument {
		return fmt.Errorf("%w: instrument %s fed to series %s", ErrMalformedValue, v.Instrument, s.Key())
	}
	if !v.Price.Valid {
		return fmt.Errorf("%w: %s candles need a price", ErrMalformedValue, s.Kind)
	}
	if active != nil && v.Time.Before(active.OpenTime) {
		return fmt.Errorf("%w: %s before candle open %s", ErrOutOfOrderValue, v.Time, active.OpenTime)
	}
	return nil
}

// VolumePolicy decides what happens to the part of a value that pushes a
// volume candle past its threshold.
type VolumePolicy int8

const (
	// VolumeCarry fills the candle to exactly the threshold and carries the
	// remainder into the next candle(s).
	VolumeCarry VolumePolicy = iota
	// VolumeAbsorb keeps the whole triggering volume in the closing candle.
	VolumeAbsorb
)

func (p VolumePolicy) String() string {
	if p == VolumeAbsorb {
		return "absorb"
	}
	return "carry"
}

func ParseVolumePolicy(s string) (VolumePolicy, error) {
	switch s {
	case "", "carry":
		return VolumeCarry, nil
	case "absorb":
		return VolumeAbsorb, nil
	default:
		return VolumeCarry, fmt.Errorf("unknown volume policy %q", s)
	}
}

type Options struct {
	VolumePolicy VolumePolicy
}

// Builders maps each kind to the builder that serves it.
type Builders map[Kind]Builder

func DefaultBuilders(opts Options) Builders {
	b := Builders{}
	for _, x := range []Builder{
		TimeFrameBuilder{},
		TickBuilder{},
		VolumeBuilder{Policy: opts.VolumePolicy},
		RangeBuilder{},
		RenkoBuilder{},
		PointFigureBuilder{},
	} {
		b[x.Kind()] = x
	}
	return b
}

func (b Builders) For(k Kind) (Builder, bool) {
	x, ok := b[k]
	return x, ok
}
