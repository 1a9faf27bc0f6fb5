package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/gamma-omg/market-indicators/internal/indicator"
	"github.com/gamma-omg/market-indicators/internal/market"
	"github.com/gamma-omg/market-indicators/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type mockProvider struct {
	getBars func(ctx context.Context, q BarsQuery) ([]market.RawBar, error)
	calls   []BarsQuery
}

func (m *mockProvider) GetBars(ctx context.Context, q BarsQuery) ([]market.RawBar, error) {
	m.calls = append(m.calls, q)
	return m.getBars(ctx, q)
}

func barsProvider(bars []market.RawBar) *mockProvider {
	return &mockProvider{
		getBars: func(ctx context.Context, q BarsQuery) ([]market.RawBar, error) {
			return bars, nil
		},
	}
}

func fixed(x float64) string {
	return decimal.NewFromFloat(x).Shift(9).Round(0).String()
}

// makeBars builds n bars spaced by step whose last bar starts at last.
func makeBars(n int, step time.Duration, last time.Time) []market.RawBar {
	bars := make([]market.RawBar, n)
	for i := range n {
		c := 100 + 10*math.Sin(float64(i)/3) + float64(i)*0.5
		bars[i] = market.RawBar{
			Open:       fixed(c - 0.5),
			High:       fixed(c + 1 + float64(i%3)),
			Low:        fixed(c - 1 - float64(i%2)),
			Close:      fixed(c),
			BuyVolume:  fixed(float64(60 + (i*37)%30)),
			SellVolume: fixed(float64(40 + (i*11)%20)),
			Timestamp:  last.Add(-time.Duration(n-1-i) * step).UnixMilli(),
		}
	}
	return bars
}

func completeBars(n int) []market.RawBar {
	return makeBars(n, 5*time.Minute, testNow.Add(-10*time.Minute))
}

func newPipeline(p Provider) *Pipeline {
	return New(slog.New(slog.DiscardHandler), p, Config{
		PriceDecimals:  9,
		VolumeDecimals: 9,
		Now:            func() time.Time { return testNow },
	})
}

func TestPipeline_tooManyIndicators(t *testing.T) {
	ids := make([]string, 21)
	for i := range ids {
		ids[i] = fmt.Sprintf("sma_%d", i+2)
	}

	prov := barsProvider(completeBars(100))
	p := newPipeline(prov)

	_, err := p.Snapshot(context.Background(), Request{MarketID: "BTC-USD", Resolution: market.Res5m, Indicators: ids})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Empty(t, prov.calls)

	env := p.Execute(context.Background(), Request{MarketID: "BTC-USD", Resolution: market.Res5m, Indicators: ids})
	assert.False(t, env.OK)
	assert.Contains(t, env.Error, "too many indicators")
	assert.Nil(t, env.Snapshot)
	assert.Empty(t, prov.calls)
}

func TestPipeline_invalidRequest(t *testing.T) {
	tbl := []Request{
		{MarketID: "m", Resolution: market.Res5m},
		{MarketID: "m", Resolution: "2h", Indicators: []string{"rsi"}},
		{Resolution: market.Res5m, Indicators: []string{"rsi"}},
		{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"rsi"}, Period: "2d"},
		{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"rsi"}, WindowSize: 501},
		{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"rsi"}, PriceSource: "median"},
		{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"rsi"}, VWAPAnchor: "day"},
		{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"rsi"}, From: testNow, To: testNow.Add(-time.Hour)},
	}

	for i, req := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			prov := barsProvider(completeBars(100))
			_, err := newPipeline(prov).Snapshot(context.Background(), req)

			var reqErr *RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Empty(t, prov.calls)
		})
	}
}

func TestPipeline_countBackAndRange(t *testing.T) {
	asOf := testNow.Add(-3 * time.Hour)
	from := testNow.Add(-48 * time.Hour)
	to := testNow.Add(-time.Hour)

	tbl := []struct {
		req       Request
		countBack int
		from      time.Time
		to        time.Time
		warnings  []string
	}{
		{
			req:       Request{Indicators: []string{"rsi", "macd"}},
			countBack: 35 + 50,
			from:      testNow.Add(-24 * time.Hour),
			to:        testNow,
			warnings:  []string{},
		},
		{
			req:       Request{Indicators: []string{"sma_50"}, Mode: ModeWindow, WindowSize: 30, Period: Period7d},
			countBack: 50 + 30,
			from:      testNow.Add(-7 * 24 * time.Hour),
			to:        testNow,
			warnings:  []string{},
		},
		{
			req:       Request{Indicators: []string{"vwap"}, Mode: ModeWindow},
			countBack: 1 + 100,
			from:      testNow.Add(-24 * time.Hour),
			to:        testNow,
			warnings:  []string{},
		},
		{
			req:       Request{Indicators: []string{"rsi"}, From: from, To: to},
			countBack: 15 + 50,
			from:      from,
			to:        to,
			warnings:  []string{},
		},
		{
			req:       Request{Indicators: []string{"rsi"}, AsOf: asOf, Period: Period1h},
			countBack: 15 + 50,
			from:      asOf.Add(-time.Hour),
			to:        asOf,
			warnings:  []string{WarnAsOf},
		},
		{
			req:       Request{Indicators: []string{"rsi"}, MicroSummary: true},
			countBack: 50 + 50,
			from:      testNow.Add(-24 * time.Hour),
			to:        testNow,
			warnings:  []string{},
		},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			prov := barsProvider(completeBars(200))
			c.req.MarketID = "ETH-USD"
			c.req.Resolution = market.Res5m

			env := newPipeline(prov).Execute(context.Background(), c.req)
			require.True(t, env.OK, env.Error)
			require.Len(t, prov.calls, 1)

			q := prov.calls[0]
			assert.Equal(t, "ETH-USD", q.MarketID)
			assert.Equal(t, market.Res5m, q.Resolution)
			assert.Equal(t, c.countBack, q.CountBack)
			assert.Equal(t, c.from, q.From)
			assert.Equal(t, c.to, q.To)

			var codes []string
			if env.Snapshot != nil {
				codes = warningCodes(env.Snapshot.Warnings)
			} else {
				codes = warningCodes(env.Window.Warnings)
			}
			assert.Equal(t, c.warnings, codes)
		})
	}
}

func warningCodes(ws []Warning) []string {
	codes := make([]string, len(ws))
	for i, w := range ws {
		codes[i] = w.Code
	}
	return codes
}

func TestPipeline_asOfEchoed(t *testing.T) {
	asOf := testNow.Add(-time.Hour)
	resp, err := newPipeline(barsProvider(completeBars(100))).Snapshot(context.Background(), Request{
		MarketID:   "m",
		Resolution: market.Res5m,
		Indicators: []string{"rsi"},
		AsOf:       asOf,
	})
	require.NoError(t, err)

	require.NotNil(t, resp.AsOf)
	assert.Equal(t, asOf.UnixMilli(), *resp.AsOf)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, asOf.UnixMilli(), resp.Warnings[0].Details["asOf"])
}

func TestPipeline_providerFailure(t *testing.T) {
	malformed := completeBars(10)
	malformed[3].Close = "x1"

	tbl := []*mockProvider{
		{getBars: func(context.Context, BarsQuery) ([]market.RawBar, error) { return nil, errors.New("connection reset") }},
		{getBars: func(context.Context, BarsQuery) ([]market.RawBar, error) { return []market.RawBar{}, nil }},
		barsProvider(malformed),
	}

	for i, prov := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			_, err := newPipeline(prov).Snapshot(context.Background(), Request{
				MarketID:   "m",
				Resolution: market.Res5m,
				Indicators: []string{"rsi"},
			})

			var provErr *ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, "m", provErr.MarketID)
			assert.Len(t, prov.calls, 1)
		})
	}
}

func TestPipeline_malformedBarIsFormatError(t *testing.T) {
	bars := completeBars(10)
	bars[0].BuyVolume = "abc"

	_, err := newPipeline(barsProvider(bars)).Snapshot(context.Background(), Request{
		MarketID:   "m",
		Resolution: market.Res5m,
		Indicators: []string{"rsi"},
	})
	require.ErrorIs(t, err, market.ErrBarFormat)
}

func TestPipeline_insufficientBars(t *testing.T) {
	req := Request{
		MarketID:   "m",
		Resolution: market.Res5m,
		Indicators: []string{"rsi_14", "sma_50"},
	}

	t.Run("strict", func(t *testing.T) {
		req := req
		req.Strict = true

		_, err := newPipeline(barsProvider(completeBars(30))).Snapshot(context.Background(), req)
		var insErr *InsufficientDataError
		require.ErrorAs(t, err, &insErr)
		assert.Equal(t, 50, insErr.Required)
		assert.Equal(t, 30, insErr.Available)

		env := newPipeline(barsProvider(completeBars(30))).Execute(context.Background(), req)
		assert.False(t, env.OK)
		assert.Contains(t, env.Error, "insufficient bars")
	})

	t.Run("lenient", func(t *testing.T) {
		resp, err := newPipeline(barsProvider(completeBars(30))).Snapshot(context.Background(), req)
		require.NoError(t, err)

		require.Len(t, resp.Warnings, 1)
		assert.Equal(t, WarnInsufficientBars, resp.Warnings[0].Code)
		assert.Equal(t, map[string]any{"required": 50, "available": 30}, resp.Warnings[0].Details)

		sma := resp.Indicators["sma_50"]
		require.NotNil(t, sma)
		assert.Nil(t, sma.Value)
		assert.NotEmpty(t, sma.Error)
		assert.Equal(t, 50, sma.Meta.RequiredBars)
		assert.Equal(t, 30, sma.Meta.ProvidedBars)

		rsi := resp.Indicators["rsi_14"]
		require.NotNil(t, rsi)
		assert.NotNil(t, rsi.Value)
		assert.Empty(t, rsi.Error)
	})
}

func TestPipeline_microSummaryKeepsThreshold(t *testing.T) {
	req := Request{
		MarketID:     "m",
		Resolution:   market.Res5m,
		Indicators:   []string{"rsi"},
		MicroSummary: true,
	}

	tbl := []bool{true, false}
	for i, strict := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			req := req
			req.Strict = strict

			prov := barsProvider(completeBars(30))
			resp, err := newPipeline(prov).Snapshot(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, 50+snapshotPadding, prov.calls[0].CountBack)
			assert.Equal(t, []string{}, warningCodes(resp.Warnings))
			assert.NotNil(t, resp.Indicators["rsi"].Value)
			require.NotNil(t, resp.MicroSummary)
		})
	}
}

func TestPipeline_strictStochNeedsBars(t *testing.T) {
	req := Request{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"stoch"}, Strict: true}

	_, err := newPipeline(barsProvider(completeBars(15))).Snapshot(context.Background(), req)
	var insErr *InsufficientDataError
	require.ErrorAs(t, err, &insErr)
	assert.Equal(t, 18, insErr.Required)
	assert.Equal(t, 15, insErr.Available)

	resp, err := newPipeline(barsProvider(completeBars(18))).Snapshot(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, resp.Indicators["stoch"].Value)
}

func TestPipeline_strictIndicatorError(t *testing.T) {
	bars := completeBars(60)
	for i := range bars {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = fixed(5), fixed(5), fixed(5), fixed(5)
	}

	req := Request{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"sma_20", "bbands"}, Strict: true}
	_, err := newPipeline(barsProvider(bars)).Snapshot(context.Background(), req)

	var indErr *IndicatorError
	require.ErrorAs(t, err, &indErr)
	assert.Equal(t, "bbands", indErr.ID)

	req.Strict = false
	resp, err := newPipeline(barsProvider(bars)).Snapshot(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Indicators["bbands"].Error)
	assert.Equal(t, indicator.Scalar(5), resp.Indicators["sma_20"].Value)
}

func TestPipeline_strictUnknownIndicator(t *testing.T) {
	req := Request{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"ichimoku"}, Strict: true}
	_, err := newPipeline(barsProvider(completeBars(60))).Snapshot(context.Background(), req)

	var indErr *IndicatorError
	require.ErrorAs(t, err, &indErr)
	assert.Contains(t, indErr.Reason, "unknown indicator")
}

func TestPipeline_incompleteLastBar(t *testing.T) {
	tbl := []struct {
		age      time.Duration
		include  bool
		bars     int
		warnings []string
	}{
		{age: 200 * time.Second, bars: 59, warnings: []string{WarnIncompleteLastBar}},
		{age: 200 * time.Second, include: true, bars: 60, warnings: []string{}},
		{age: 300 * time.Second, bars: 60, warnings: []string{}},
		{age: 0, bars: 59, warnings: []string{WarnIncompleteLastBar}},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			bars := makeBars(60, 5*time.Minute, testNow.Add(-c.age))
			resp, err := newPipeline(barsProvider(bars)).Snapshot(context.Background(), Request{
				MarketID:                 "m",
				Resolution:               market.Res5m,
				Indicators:               []string{"sma_20"},
				IncludeIncompleteLastBar: c.include,
			})
			require.NoError(t, err)

			assert.Equal(t, c.bars, resp.Bars)
			assert.Equal(t, c.warnings, warningCodes(resp.Warnings))
			if len(c.warnings) > 0 {
				assert.Equal(t, bars[59].Timestamp, resp.Warnings[0].Details["timestamp"])
			}
		})
	}
}

func TestPipeline_onlyIncompleteBar(t *testing.T) {
	bars := makeBars(1, 5*time.Minute, testNow.Add(-time.Minute))
	_, err := newPipeline(barsProvider(bars)).Snapshot(context.Background(), Request{
		MarketID:   "m",
		Resolution: market.Res5m,
		Indicators: []string{"vwap"},
	})

	var insErr *InsufficientDataError
	require.ErrorAs(t, err, &insErr)
}

func TestPipeline_snapshot(t *testing.T) {
	bars := completeBars(120)
	resp, err := newPipeline(barsProvider(bars)).Snapshot(context.Background(), Request{
		MarketID:     "m",
		Resolution:   market.Res5m,
		Indicators:   []string{"SMA20", "atr", "vwap", "macd_12_26_9", "RSI-14"},
		MicroSummary: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 120, resp.Bars)
	assert.Equal(t, CurrentPriceLastClose, resp.CurrentPriceSource)
	last, err := market.ScaleDown(bars[119].Close, 9)
	require.NoError(t, err)
	assert.Equal(t, last, resp.CurrentPrice)
	assert.Nil(t, resp.AsOf)

	assert.Len(t, resp.Indicators, 5)
	for _, id := range []string{"SMA20", "atr", "vwap", "macd_12_26_9", "RSI-14"} {
		res := resp.Indicators[id]
		require.NotNil(t, res, id)
		assert.Empty(t, res.Error, id)
		assert.NotNil(t, res.Value, id)
		assert.NotNil(t, res.Delta, id)
	}
	_, ok := resp.Indicators["macd_12_26_9"].Value.(indicator.MACDValue)
	assert.True(t, ok)

	require.NotNil(t, resp.Derived.DistSMA20ATR)
	require.NotNil(t, resp.Derived.DistVWAPATR)
	sma, _ := resp.Indicators["SMA20"].Numeric()
	atr, _ := resp.Indicators["atr"].Numeric()
	assert.InDelta(t, (resp.CurrentPrice-sma)/atr, *resp.Derived.DistSMA20ATR, 1e-12)

	require.NotNil(t, resp.MicroSummary)
	assert.NotEqual(t, "unknown", resp.MicroSummary.TrendStrength)
	assert.NotEqual(t, "unknown", resp.MicroSummary.Volatility)
	assert.NotEmpty(t, resp.MicroSummary.Inputs)
}

func TestPipeline_idempotent(t *testing.T) {
	bars := completeBars(150)
	req := Request{
		MarketID:     "m",
		Resolution:   market.Res5m,
		Indicators:   []string{"sma_20", "ema_50", "rsi", "macd", "bbands", "atr", "adx", "plus_di", "minus_di", "vwap", "cci", "stoch", "mfi", "obv"},
		MicroSummary: true,
	}

	p := newPipeline(barsProvider(bars))
	first, err := json.Marshal(p.Execute(context.Background(), req))
	require.NoError(t, err)
	second, err := json.Marshal(p.Execute(context.Background(), req))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	req.Mode = ModeWindow
	first, err = json.Marshal(p.Execute(context.Background(), req))
	require.NoError(t, err)
	second, err = json.Marshal(p.Execute(context.Background(), req))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestPipeline_window(t *testing.T) {
	tbl := []struct {
		bars       int
		windowSize int
		timestamps int
	}{
		{bars: 200, windowSize: 10, timestamps: 10},
		{bars: 60, windowSize: 100, timestamps: 60},
		{bars: 60, windowSize: 0, timestamps: 60},
		{bars: 600, windowSize: 500, timestamps: 500},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			resp, err := newPipeline(barsProvider(completeBars(c.bars))).Window(context.Background(), Request{
				MarketID:   "m",
				Resolution: market.Res5m,
				Indicators: []string{"sma_20", "macd"},
				WindowSize: c.windowSize,
			})
			require.NoError(t, err)

			require.Len(t, resp.Timestamps, c.timestamps)
			for j := 1; j < len(resp.Timestamps); j++ {
				assert.Greater(t, resp.Timestamps[j], resp.Timestamps[j-1])
			}
			for id, values := range resp.Indicators {
				assert.Len(t, values, c.timestamps, id)
			}
		})
	}
}

func TestPipeline_windowWarmupIsNull(t *testing.T) {
	bars := completeBars(60)
	resp, err := newPipeline(barsProvider(bars)).Window(context.Background(), Request{
		MarketID:   "m",
		Resolution: market.Res5m,
		Indicators: []string{"sma_20", "vwap", "ichimoku"},
	})
	require.NoError(t, err)

	sma := resp.Indicators["sma_20"]
	require.Len(t, sma, 60)
	assert.Nil(t, sma[18])
	assert.NotNil(t, sma[19])

	vwap := resp.Indicators["vwap"]
	high, _ := market.ScaleDown(bars[0].High, 9)
	low, _ := market.ScaleDown(bars[0].Low, 9)
	cls, _ := market.ScaleDown(bars[0].Close, 9)
	require.NotNil(t, vwap[0])
	assert.InDelta(t, (high+low+cls)/3, float64(vwap[0].(indicator.Scalar)), 1e-9)

	for _, v := range resp.Indicators["ichimoku"] {
		assert.Nil(t, v)
	}
}

func TestPipeline_windowFlatTail(t *testing.T) {
	bars := completeBars(60)
	for i := 35; i < 60; i++ {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = fixed(5), fixed(5), fixed(5), fixed(5)
	}

	resp, err := newPipeline(barsProvider(bars)).Window(context.Background(), Request{
		MarketID:   "m",
		Resolution: market.Res5m,
		Indicators: []string{"cci", "bbands"},
	})
	require.NoError(t, err)

	for _, id := range []string{"cci", "bbands"} {
		values := resp.Indicators[id]
		require.Len(t, values, 60, id)

		finite := 0
		for _, v := range values {
			if v != nil {
				finite++
			}
		}
		assert.Equal(t, 35, finite, id)
		assert.NotNil(t, values[53], id)
		assert.Nil(t, values[59], id)
	}
}

func TestPipeline_vwapSessionAnchor(t *testing.T) {
	tbl := []struct {
		indicators []string
		warnings   []string
	}{
		{indicators: []string{"vwap"}, warnings: []string{WarnVWAPSessionAnchor}},
		{indicators: []string{"rsi"}, warnings: []string{}},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			resp, err := newPipeline(barsProvider(completeBars(60))).Snapshot(context.Background(), Request{
				MarketID:   "m",
				Resolution: market.Res5m,
				Indicators: c.indicators,
				VWAPAnchor: AnchorSession,
			})
			require.NoError(t, err)
			assert.Equal(t, c.warnings, warningCodes(resp.Warnings))
		})
	}
}

func TestPipeline_executePanic(t *testing.T) {
	prov := &mockProvider{
		getBars: func(context.Context, BarsQuery) ([]market.RawBar, error) {
			panic("provider exploded")
		},
	}

	env := newPipeline(prov).Execute(context.Background(), Request{
		MarketID:   "m",
		Resolution: market.Res5m,
		Indicators: []string{"rsi"},
	})
	assert.False(t, env.OK)
	assert.Contains(t, env.Error, "provider exploded")
}

func TestPipeline_metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := New(slog.New(slog.DiscardHandler), barsProvider(completeBars(30)), Config{
		PriceDecimals:  9,
		VolumeDecimals: 9,
		Metrics:        m,
		Now:            func() time.Time { return testNow },
	})

	env := p.Execute(context.Background(), Request{
		MarketID:   "m",
		Resolution: market.Res5m,
		Indicators: []string{"sma_50"},
	})
	require.True(t, env.OK)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("snapshot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WarningsTotal.WithLabelValues(WarnInsufficientBars)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndicatorErrors.WithLabelValues("sma")))
}

func TestPipeline_concurrentUse(t *testing.T) {
	p := newPipeline(ProviderFunc(func(context.Context, BarsQuery) ([]market.RawBar, error) {
		return completeBars(100), nil
	}))

	req := Request{MarketID: "m", Resolution: market.Res5m, Indicators: []string{"rsi", "macd", "bbands"}}
	expected, err := json.Marshal(p.Execute(context.Background(), req))
	require.NoError(t, err)

	results := make(chan []byte, 8)
	for range 8 {
		go func() {
			out, _ := json.Marshal(p.Execute(context.Background(), req))
			results <- out
		}()
	}
	for range 8 {
		assert.Equal(t, string(expected), string(<-results))
	}
}
