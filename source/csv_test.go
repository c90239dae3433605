package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/candles/market"
)

func TestParseTradeRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		row     []string
		wantOk  bool
		wantErr bool
		check   func(t *testing.T, v market.Value)
	}{
		{
			name:   "full row",
			row:    []string{"2026-01-24T09:30:00Z", "EUR_USD", "1.1000", "5", "buy"},
			wantOk: true,
			check: func(t *testing.T, v market.Value) {
				assert.Equal(t, "EUR_USD", v.Instrument)
				assert.True(t, v.Price.Decimal.Equal(decimal.RequireFromString("1.1")))
				assert.True(t, v.Volume.Valid)
				assert.Equal(t, market.Buy, v.Side)
				assert.Equal(t, market.OriginTrade, v.Origin)
			},
		},
		{
			name:   "nano timestamp without volume",
			row:    []string{"2026-01-24T09:30:00.123456789Z", "GBP_USD", "1.25"},
			wantOk: true,
			check: func(t *testing.T, v market.Value) {
				assert.Equal(t, 123456789, v.Time.Nanosecond())
				assert.False(t, v.Volume.Valid)
			},
		},
		{
			name:   "whitespace",
			row:    []string{" 2026-01-24T09:30:00Z ", " EUR_USD ", " 1.1 ", " 2 "},
			wantOk: true,
			check: func(t *testing.T, v market.Value) {
				assert.Equal(t, "EUR_USD", v.Instrument)
			},
		},
		{name: "too few columns", row: []string{"2026-01-24T09:30:00Z", "EUR_USD"}},
		{name: "empty timestamp", row: []string{"", "EUR_USD", "1.1"}},
		{name: "empty instrument", row: []string{"2026-01-24T09:30:00Z", "", "1.1"}},
		{name: "bad time", row: []string{"yesterday", "EUR_USD", "1.1"}, wantErr: true},
		{name: "bad price", row: []string{"2026-01-24T09:30:00Z", "EUR_USD", "x"}, wantErr: true},
		{name: "bad volume", row: []string{"2026-01-24T09:30:00Z", "EUR_USD", "1", "x"}, wantErr: true},
		{name: "bad side", row: []string{"2026-01-24T09:30:00Z", "EUR_USD", "1", "1", "long"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, ok, err := parseTradeRow(tt.row)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOk, ok)
			if tt.check != nil {
				tt.check(t, v)
			}
		})
	}
}

func TestParseQuoteRow(t *testing.T) {
	t.Parallel()

	row := []string{"2026-01-24T09:30:00Z", "EUR_USD", "1.1000", "1.1002", "3", "4"}

	mid, ok, err := parseQuoteRow(row, market.QuoteMid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mid.Price.Decimal.Equal(decimal.RequireFromString("1.1001")))
	assert.False(t, mid.Volume.Valid)
	assert.Equal(t, market.OriginOrderBook, mid.Origin)

	ask, _, err := parseQuoteRow(row, market.QuoteAsk)
	require.NoError(t, err)
	assert.True(t, ask.Price.Decimal.Equal(decimal.RequireFromString("1.1002")))
	assert.True(t, ask.Volume.Decimal.Equal(decimal.NewFromInt(4)))

	_, ok, err = parseQuoteRow(row[:3], market.QuoteMid)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = parseQuoteRow([]string{"2026-01-24T09:30:00Z", "EUR_USD", "1.1", "?"}, market.QuoteMid)
	assert.Error(t, err)
}

func TestParseOrderLogRow(t *testing.T) {
	t.Parallel()

	ts := "2026-01-24T09:30:00Z"
	tests := []struct {
		name    string
		row     []string
		ok      bool
		wantErr bool
		price   string
		volume  string
		side    market.Side
	}{
		{
			name: "placed order",
			row:  []string{ts, "ES", "o1", "buy", "5000.25", "3"},
		},
		{
			name:   "match with trade volume",
			row:    []string{ts, "ES", "o1", "buy", "5000.25", "3", "t9", "5000.00", "2"},
			ok:     true,
			price:  "5000.00",
			volume: "2",
			side:   market.Buy,
		},
		{
			name:   "match falls back to order volume",
			row:    []string{ts, "ES", "o2", "s", "5000.25", "3", "t10", "5000.25"},
			ok:     true,
			price:  "5000.25",
			volume: "3",
			side:   market.Sell,
		},
		{name: "short row", row: []string{ts, "ES", "o1", "buy", "5000"}},
		{name: "bad side", row: []string{ts, "ES", "o1", "up", "5000", "1"}, wantErr: true},
		{name: "bad trade price", row: []string{ts, "ES", "o1", "buy", "5000", "1", "t1", "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok, err := parseOrderLogRow(tt.row)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, market.OriginOrderLog, v.Origin)
			assert.True(t, v.Price.Decimal.Equal(decimal.RequireFromString(tt.price)))
			assert.True(t, v.Volume.Decimal.Equal(decimal.RequireFromString(tt.volume)))
			assert.Equal(t, tt.side, v.Side)
			assert.NoError(t, v.Validate())
		})
	}
}

func TestParseLevel1Row(t *testing.T) {
	t.Parallel()

	ts := "2026-01-24T09:30:00Z"
	tests := []struct {
		name    string
		row     []string
		ok      bool
		wantErr bool
		price   string
		volume  bool
	}{
		{name: "last trade", row: []string{ts, "EUR_USD", "1.1001", "5", "buy", "1.1000", "1.1002"}, ok: true, price: "1.1001", volume: true},
		{name: "book only", row: []string{ts, "EUR_USD", "", "", "", "1.1000", "1.1002"}, ok: true, price: "1.1001"},
		{name: "last price only", row: []string{ts, "EUR_USD", "1.2"}, ok: true, price: "1.2"},
		{name: "nothing usable", row: []string{ts, "EUR_USD", "", "", ""}},
		{name: "bad bid", row: []string{ts, "EUR_USD", "", "", "", "?", "1.1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok, err := parseLevel1Row(tt.row)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, market.OriginLevel1, v.Origin)
			assert.True(t, v.Price.Decimal.Equal(decimal.RequireFromString(tt.price)))
			assert.Equal(t, tt.volume, v.Volume.Valid)
		})
	}
}

func TestCSVReaderOrderLog(t *testing.T) {
	t.Parallel()

	data := `time,instrument,order_id,side,price,volume,trade_id,trade_price,trade_volume
2026-01-24T09:30:00Z,ES,o1,buy,5000.25,3,,,
2026-01-24T09:30:01Z,ES,o2,sell,5000.25,1,t1,5000.25,1
2026-01-24T09:30:02Z,ES,o3,buy,5000.50,2,,,
2026-01-24T09:30:03Z,ES,o3,buy,5000.50,2,t2,5000.50,2
`
	r := NewCSVReader(strings.NewReader(data), OrderLog)

	var got []market.Value
	for {
		v, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Len(t, got, 2, "only matched rows become values")
	assert.Equal(t, market.Sell, got[0].Side)
	assert.True(t, got[1].Price.Decimal.Equal(decimal.RequireFromString("5000.50")))
}

func TestCSVReaderSkipsHeaderAndBlankRows(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"time,instrument,price,volume",
		"2026-01-24T09:30:00Z,EUR_USD,1.10,1",
		"",
		"2026-01-24T09:30:01Z,EUR_USD",
		"2026-01-24T09:30:02Z,EUR_USD,1.11,2",
	}, "\n")

	r := NewCSVReader(strings.NewReader(in), Trades)
	var got []market.Value
	for {
		v, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Time.Second())
}

func TestCSVReaderReportsLine(t *testing.T) {
	t.Parallel()

	in := "2026-01-24T09:30:00Z,EUR_USD,1.10\n2026-01-24T09:30:01Z,EUR_USD,oops\n"
	r := NewCSVReader(strings.NewReader(in), Trades)

	_, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestCSVFeedRunFiltersRange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.csv")
	data := "time,instrument,bid,ask\n" +
		"2026-01-24T09:29:59Z,EUR_USD,1.0,1.2\n" +
		"2026-01-24T09:30:00Z,EUR_USD,1.0,1.2\n" +
		"2026-01-24T09:30:30Z,EUR_USD,1.1,1.3\n" +
		"2026-01-24T09:31:00Z,EUR_USD,1.2,1.4\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	f := NewCSVFeed(path, Quotes)
	f.From = time.Date(2026, 1, 24, 9, 30, 0, 0, time.UTC)
	f.To = time.Date(2026, 1, 24, 9, 31, 0, 0, time.UTC)
	assert.Equal(t, "csv:"+path, f.Name())

	var got []market.Value
	require.NoError(t, f.Run(context.Background(), func(v market.Value) { got = append(got, v) }))
	require.Len(t, got, 2)
	assert.True(t, got[0].Price.Decimal.Equal(decimal.RequireFromString("1.1")))
	assert.True(t, got[1].Price.Decimal.Equal(decimal.RequireFromString("1.2")))
}

func TestCSVFeedMissingFile(t *testing.T) {
	t.Parallel()

	f := NewCSVFeed(filepath.Join(t.TempDir(), "nope.csv"), Trades).Named("hist")
	assert.Equal(t, "hist", f.Name())
	assert.Error(t, f.Run(context.Background(), func(market.Value) {}))
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("Quotes")
	require.NoError(t, err)
	assert.Equal(t, Quotes, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, Trades, f)

	for in, want := range map[string]Format{"orderlog": OrderLog, "order_log": OrderLog, "level1": Level1, "L1": Level1} {
		f, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, f)

		back, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, back)
	}

	_, err = ParseFormat("bars")
	assert.Error(t, err)
}
