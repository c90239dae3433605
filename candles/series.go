package candles

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Series describes one aggregation request. It is a value type: two
// series are the same series iff their keys are equal. Only the grouping
// parameter that belongs to Kind is meaningful.
type Series struct {
	Instrument string
	Kind       Kind

	TimeFrame time.Duration   // TimeFrameKind
	Count     int64           // TickKind
	Size      decimal.Decimal // VolumeKind, RangeKind, RenkoKind, PointFigureKind box
	Reversal  int             // PointFigureKind, boxes needed to reverse a column
}

func TimeFrame(instrument string, d time.Duration) Series {
	return Series{Instrument: instrument, Kind: TimeFrameKind, TimeFrame: d}
}

func Ticks(instrument string, n int64) Series {
	return Series{Instrument: instrument, Kind: TickKind, Count: n}
}

func Volume(instrument string, threshold decimal.Decimal) Series {
	return Series{Instrument: instrument, Kind: VolumeKind, Size: threshold}
}

func Range(instrument string, r decimal.Decimal) Series {
	return Series{Instrument: instrument, Kind: RangeKind, Size: r}
}

func Renko(instrument string, box decimal.Decimal) Series {
	return Series{Instrument: instrument, Kind: RenkoKind, Size: box}
}

func PointFigure(instrument string, box decimal.Decimal, reversal int) Series {
	return Series{Instrument: instrument, Kind: PointFigureKind, Size: box, Reversal: reversal}
}

// Arg renders the grouping parameter, e.g. "M1", "100", "0.5x3".
func (s Series) Arg() string {
	switch s.Kind {
	case TimeFrameKind:
		return TimeFrameName(s.TimeFrame)
	case TickKind:
		return strconv.FormatInt(s.Count, 10)
	case PointFigureKind:
		return s.Size.String() + "x" + strconv.Itoa(s.Reversal)
	default:
		return s.Size.String()
	}
}

// Key is the canonical identity of s, e.g. "EUR_USD/timeframe/M1".
func (s Series) Key() string {
	return s.Instrument + "/" + s.Kind.String() + "/" + s.Arg()
}

func (s Series) String() string {
	return s.Key()
}

func (s Series) Equal(o Series) bool {
	return s.Key() == o.Key()
}

func (s Series) Validate() error {
	if s.Instrument == "" {
		return fmt.Errorf("series: instrument is required")
	}
	if !s.Kind.valid() {
		return fmt.Errorf("series %s: unknown kind", s.Instrument)
	}
	switch s.Kind {
	case TimeFrameKind:
		if s.TimeFrame <= 0 {
			return fmt.Errorf("series %s: time frame must be positive", s.Key())
		}
	case TickKind:
		if s.Count <= 0 {
			return fmt.Errorf("series %s: tick count must be positive", s.Key())
		}
	case PointFigureKind:
		if s.Reversal < 1 {
			return fmt.Errorf("series %s: reversal must be at least 1 box", s.Key())
		}
		fallthrough
	default:
		if !s.Size.IsPositive() {
			return fmt.Errorf("series %s: size must be positive", s.Key())
		}
	}
	return nil
}

// boundary is the time a candle of s ends at when it is finished: the end
// of its window for time frames, the last observed value otherwise.
func (s Series) boundary(c *Candle) time.Time {
	if s.Kind == TimeFrameKind {
		return c.OpenTime.Add(s.TimeFrame)
	}
	return c.CloseTime
}

// ParseSeries builds a series from text such as ("EUR_USD", "timeframe",
// "M5"), ("BTC_USD", "volume", "2.5") or ("ES", "pnf", "0.25x3").
func ParseSeries(instrument, kind, arg string) (Series, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Series{}, err
	}
	arg = strings.TrimSpace(arg)

	s := Series{Instrument: strings.TrimSpace(instrument), Kind: k}
	switch k {
	case TimeFrameKind:
		s.TimeFrame, err = ParseTimeFrame(arg)
	case TickKind:
		s.Count, err = strconv.ParseInt(arg, 10, 64)
	case PointFigureKind:
		box, rev, found := strings.Cut(arg, "x")
		s.Reversal = 3
		if found {
			if s.Reversal, err = strconv.Atoi(rev); err != nil {
				return Series{}, fmt.Errorf("bad reversal %q: %w", rev, err)
			}
		}
		s.Size, err = decimal.NewFromString(box)
	default:
		s.Size, err = decimal.NewFromString(arg)
	}
	if err != nil {
		return Series{}, fmt.Errorf("bad %s argument %q: %w", k, arg, err)
	}
	return s, s.Validate()
}

// TimeFrameName maps a duration to the usual chart shorthand (M1, H4,
// D1, W1, MN1) and falls back to the Go duration string.
func TimeFrameName(d time.Duration) string {
	sec := int64(d / time.Second)
	if sec <= 0 || time.Duration(sec)*time.Second != d {
		return d.String()
	}

	if sec < 3600 && sec%60 == 0 {
		return fmt.Sprintf("M%d", sec/60)
	}
	if sec < 86400 && sec%3600 == 0 {
		return fmt.Sprintf("H%d", sec/3600)
	}
	if sec%86400 == 0 {
		days := sec / 86400
		if days == 7 {
			return "W1"
		}
		if days == 30 {
			return "MN1"
		}
		return fmt.Sprintf("D%d", days)
	}
	return d.String()
}

// ParseTimeFrame accepts chart shorthands (M1, M15, H1, D1, W1, MN1) and Go
// durations ("90s", "2m").
func ParseTimeFrame(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	unit := time.Duration(0)
	rest := ""
	switch {
	case strings.HasPrefix(s, "MN"):
		unit, rest = 30*24*time.Hour, s[2:]
	case strings.HasPrefix(s, "M"):
		unit, rest = time.Minute, s[1:]
	case strings.HasPrefix(s, "H"):
		unit, rest = time.Hour, s[1:]
	case strings.HasPrefix(s, "D"):
		unit, rest = 24*time.Hour, s[1:]
	case strings.HasPrefix(s, "W"):
		unit, rest = 7*24*time.Hour, s[1:]
	}
	if unit != 0 {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("unsupported timeframe string: %s", s)
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("unsupported timeframe string: %s", s)
	}
	return d, nil
}
