package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/candles/market"
)

// Format selects the column layout of a CSV feed.
type Format int8

const (
	// Trades rows: time,instrument,price[,volume[,side]]
	Trades Format = iota
	// Quotes rows: time,instrument,bid,ask[,bidVolume,askVolume]
	Quotes
	// OrderLog rows: time,instrument,orderID,side,price,volume[,tradeID,tradePrice[,tradeVolume]]
	// Only rows with a trade price become values.
	OrderLog
	// Level1 rows: time,instrument,lastPrice[,lastVolume[,lastSide[,bid[,ask]]]]
	// Any of those columns may be blank.
	Level1
)

func (f Format) String() string {
	switch f {
	case Quotes:
		return "quotes"
	case OrderLog:
		return "orderlog"
	case Level1:
		return "level1"
	default:
		return "trades"
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "trades", "trade":
		return Trades, nil
	case "quotes", "quote", "ticks":
		return Quotes, nil
	case "orderlog", "order_log":
		return OrderLog, nil
	case "level1", "l1":
		return Level1, nil
	default:
		return Trades, fmt.Errorf("unknown csv format %q", s)
	}
}

// CSVFeed replays a CSV file. Time is RFC3339 or RFC3339Nano. A single
// header row ("time,...") is allowed, empty or short rows are skipped and
// rows outside [From, To) are filtered when those bounds are set.
type CSVFeed struct {
	Path   string
	Format Format
	Quote  market.QuotePrice // Quotes only
	From   time.Time
	To     time.Time

	name string
}

func NewCSVFeed(path string, format Format) *CSVFeed {
	return &CSVFeed{Path: path, Format: format, name: "csv:" + path}
}

// Named overrides the default "csv:<path>" name.
func (f *CSVFeed) Named(name string) *CSVFeed {
	f.name = name
	return f
}

func (f *CSVFeed) Name() string {
	if f.name == "" {
		return "csv:" + f.Path
	}
	return f.name
}

func (f *CSVFeed) Run(ctx context.Context, emit func(market.Value)) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer fh.Close()

	rows := NewCSVReader(fh, f.Format)
	rows.Quote = f.Quote
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok, err := rows.Next()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
		if !ok {
			return nil
		}
		if !inRange(v.Time, f.From, f.To) {
			continue
		}
		emit(v)
	}
}

// CSVReader pulls values one row at a time.
type CSVReader struct {
	Format Format
	Quote  market.QuotePrice

	r        *csv.Reader
	sawFirst bool
	line     int
}

func NewCSVReader(r io.Reader, format Format) *CSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVReader{Format: format, r: cr}
}

// Next returns the next parsed value, or ok=false at end of input.
func (c *CSVReader) Next() (market.Value, bool, error) {
	for {
		row, err := c.r.Read()
		if err == io.EOF {
			return market.Value{}, false, nil
		}
		if err != nil {
			return market.Value{}, false, err
		}
		c.line++
		if len(row) == 0 {
			continue
		}

		if !c.sawFirst {
			c.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		var (
			v  market.Value
			ok bool
		)
		switch c.Format {
		case Quotes:
			v, ok, err = parseQuoteRow(row, c.Quote)
		case OrderLog:
			v, ok, err = parseOrderLogRow(row)
		case Level1:
			v, ok, err = parseLevel1Row(row)
		default:
			v, ok, err = parseTradeRow(row)
		}
		if err != nil {
			return market.Value{}, false, fmt.Errorf("line %d: %w", c.line, err)
		}
		if ok {
			return v, true, nil
		}
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
		}
		t = t2
	}
	return t, nil
}

// rowHead parses the time and instrument columns shared by all formats.
// ok is false when the row is too short or either column is blank.
func rowHead(row []string, min int) (time.Time, string, bool, error) {
	if len(row) < min {
		return time.Time{}, "", false, nil
	}
	ts := strings.TrimSpace(row[0])
	inst := strings.TrimSpace(row[1])
	if ts == "" || inst == "" {
		return time.Time{}, "", false, nil
	}
	t, err := parseTime(ts)
	if err != nil {
		return time.Time{}, "", false, err
	}
	return t, inst, true, nil
}

func parseTradeRow(row []string) (market.Value, bool, error) {
	t, inst, ok, err := rowHead(row, 3)
	if !ok || err != nil {
		return market.Value{}, false, err
	}

	tr := market.Trade{Instrument: inst, Time: t}
	if tr.Price, err = market.ParsePrice(row[2]); err != nil {
		return market.Value{}, false, err
	}
	v := market.FromTrade(tr)
	v.Volume = market.None

	if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
		qty, err := market.ParsePrice(row[3])
		if err != nil {
			return market.Value{}, false, err
		}
		v = v.WithVolume(qty)
	}
	if len(row) > 4 {
		if v.Side, err = market.ParseSide(strings.TrimSpace(row[4])); err != nil {
			return market.Value{}, false, err
		}
	}
	return v, true, nil
}

func parseQuoteRow(row []string, which market.QuotePrice) (market.Value, bool, error) {
	t, inst, ok, err := rowHead(row, 4)
	if !ok || err != nil {
		return market.Value{}, false, err
	}

	q := market.Quote{Instrument: inst, Time: t}
	if q.Bid, err = market.ParsePrice(row[2]); err != nil {
		return market.Value{}, false, fmt.Errorf("bid: %w", err)
	}
	if q.Ask, err = market.ParsePrice(row[3]); err != nil {
		return market.Value{}, false, fmt.Errorf("ask: %w", err)
	}
	if len(row) >= 6 {
		if q.BidVolume, err = market.ParsePrice(row[4]); err != nil {
			return market.Value{}, false, fmt.Errorf("bid volume: %w", err)
		}
		if q.AskVolume, err = market.ParsePrice(row[5]); err != nil {
			return market.Value{}, false, fmt.Errorf("ask volume: %w", err)
		}
	}
	return market.FromQuote(q, which), true, nil
}

// column returns the trimmed value of row[i], or "" past the end.
func column(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// optDecimal parses an optional column; blank or missing is None.
func optDecimal(row []string, i int, name string) (decimal.NullDecimal, error) {
	s := column(row, i)
	if s == "" {
		return market.None, nil
	}
	d, err := market.ParsePrice(s)
	if err != nil {
		return market.None, fmt.Errorf("%s: %w", name, err)
	}
	return market.Some(d), nil
}

func parseOrderLogRow(row []string) (market.Value, bool, error) {
	t, inst, ok, err := rowHead(row, 6)
	if !ok || err != nil {
		return market.Value{}, false, err
	}

	e := market.OrderLogEntry{
		Instrument: inst,
		Time:       t,
		OrderID:    column(row, 2),
		TradeID:    column(row, 6),
	}
	if e.Side, err = market.ParseSide(column(row, 3)); err != nil {
		return market.Value{}, false, err
	}
	if e.Price, err = market.ParsePrice(row[4]); err != nil {
		return market.Value{}, false, fmt.Errorf("price: %w", err)
	}
	if e.Volume, err = market.ParsePrice(row[5]); err != nil {
		return market.Value{}, false, fmt.Errorf("volume: %w", err)
	}
	if e.TradePrice, err = optDecimal(row, 7, "trade price"); err != nil {
		return market.Value{}, false, err
	}
	if e.TradeVolume, err = optDecimal(row, 8, "trade volume"); err != nil {
		return market.Value{}, false, err
	}
	v, ok := market.FromOrderLog(e)
	return v, ok, nil
}

func parseLevel1Row(row []string) (market.Value, bool, error) {
	t, inst, ok, err := rowHead(row, 3)
	if !ok || err != nil {
		return market.Value{}, false, err
	}

	l := market.Level1{Instrument: inst, Time: t}
	if l.LastTradePrice, err = optDecimal(row, 2, "last price"); err != nil {
		return market.Value{}, false, err
	}
	if l.LastTradeVolume, err = optDecimal(row, 3, "last volume"); err != nil {
		return market.Value{}, false, err
	}
	if l.LastTradeSide, err = market.ParseSide(column(row, 4)); err != nil {
		return market.Value{}, false, err
	}
	if l.BestBid, err = optDecimal(row, 5, "bid"); err != nil {
		return market.Value{}, false, err
	}
	if l.BestAsk, err = optDecimal(row, 6, "ask"); err != nil {
		return market.Value{}, false, err
	}
	v, ok := market.FromLevel1(l)
	return v, ok, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
