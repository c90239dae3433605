package candles

import (
	"fmt"
	"strings"
)

// Kind selects the grouping rule of a series.
type Kind int8

const (
	TimeFrameKind Kind = iota + 1
	TickKind
	VolumeKind
	RangeKind
	RenkoKind
	PointFigureKind
)

var kindNames = map[Kind]string{
	TimeFrameKind:   "timeframe",
	TickKind:        "tick",
	VolumeKind:      "volume",
	RangeKind:       "range",
	RenkoKind:       "renko",
	PointFigureKind: "pnf",
}

var kindAliases = map[string]Kind{
	"timeframe":   TimeFrameKind,
	"time-frame":  TimeFrameKind,
	"tf":          TimeFrameKind,
	"tick":        TickKind,
	"ticks":       TickKind,
	"volume":      VolumeKind,
	"range":       RangeKind,
	"renko":       RenkoKind,
	"pnf":         PointFigureKind,
	"pointfigure": PointFigureKind,
	"pf":          PointFigureKind,
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int8(k))
}

func (k Kind) valid() bool {
	_, ok := kindNames[k]
	return ok
}

func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown candle kind %q", s)
	}
	return k, nil
}

// Kinds lists every supported kind in declaration order.
func Kinds() []Kind {
	return []Kind{TimeFrameKind, TickKind, VolumeKind, RangeKind, RenkoKind, PointFigureKind}
}
