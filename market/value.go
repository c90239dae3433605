package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Origin tags the kind of market event a Value was normalized from.
type Origin int8

const (
	OriginTrade Origin = iota
	OriginOrderBook
	OriginOrderLog
	OriginLevel1
)

func (o Origin) String() string {
	switch o {
	case OriginTrade:
		return "trade"
	case OriginOrderBook:
		return "orderbook"
	case OriginOrderLog:
		return "orderlog"
	case OriginLevel1:
		return "level1"
	default:
		return fmt.Sprintf("origin(%d)", int8(o))
	}
}

type Side int8

const (
	SideNone Side = 0
	Buy      Side = +1
	Sell     Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return ""
	}
}

// ParseSide accepts buy/sell/b/s in any case, and an empty string for no side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "":
		return SideNone, nil
	case "buy", "BUY", "Buy", "b", "B":
		return Buy, nil
	case "sell", "SELL", "Sell", "s", "S":
		return Sell, nil
	default:
		return SideNone, fmt.Errorf("unknown side %q", s)
	}
}

// Value is one normalized market event that candle builders consume.
// Price is absent for pure volume events, Volume for pure price events.
type Value struct {
	Instrument string
	Time       time.Time
	Price      decimal.NullDecimal
	Volume     decimal.NullDecimal
	Side       Side
	Origin     Origin
}

var (
	errNoInstrument = errors.New("value has no instrument")
	errNoTime       = errors.New("value has no timestamp")
	errEmpty        = errors.New("value has neither price nor volume")
	errNegPrice     = errors.New("value has negative price")
	errNegVolume    = errors.New("value has negative volume")
)

// Validate reports the first structural problem with v, or nil.
func (v Value) Validate() error {
	if v.Instrument == "" {
		return errNoInstrument
	}
	if v.Time.IsZero() {
		return errNoTime
	}
	if !v.Price.Valid && !v.Volume.Valid {
		return errEmpty
	}
	if v.Price.Valid && v.Price.Decimal.IsNegative() {
		return errNegPrice
	}
	if v.Volume.Valid && v.Volume.Decimal.IsNegative() {
		return errNegVolume
	}
	return nil
}

// Qty returns the volume carried by v, zero when absent.
func (v Value) Qty() decimal.Decimal {
	if !v.Volume.Valid {
		return decimal.Zero
	}
	return v.Volume.Decimal
}

// WithVolume returns a copy of v carrying qty as its volume.
func (v Value) WithVolume(qty decimal.Decimal) Value {
	v.Volume = decimal.NewNullDecimal(qty)
	return v
}

func (v Value) String() string {
	p, q := "-", "-"
	if v.Price.Valid {
		p = v.Price.Decimal.String()
	}
	if v.Volume.Valid {
		q = v.Volume.Decimal.String()
	}
	return fmt.Sprintf("%s %s %s p=%s v=%s %s", v.Time.Format(time.RFC3339Nano), v.Instrument, v.Origin, p, q, v.Side)
}
