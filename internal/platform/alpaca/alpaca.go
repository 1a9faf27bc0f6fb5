package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/gamma-omg/market-indicators/internal/config"
	"github.com/gamma-omg/market-indicators/internal/market"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
	"github.com/shopspring/decimal"
)

// AlpacaProvider fetches historical crypto bars from the Alpaca market data
// API and re-encodes them as fixed-point strings.
type AlpacaProvider struct {
	log      *slog.Logger
	api      marketDataApi
	feed     marketdata.CryptoFeed
	decimals config.Decimals
}

func NewAlpacaProvider(log *slog.Logger, cfg config.Alpaca, decimals config.Decimals) *AlpacaProvider {
	feed := marketdata.US
	if cfg.Feed != "" {
		feed = marketdata.CryptoFeed(cfg.Feed)
	}

	return &AlpacaProvider{
		log:      log,
		api:      newAlpacaApi(cfg.ApiKey, cfg.Secret, cfg.BaseUrl),
		feed:     feed,
		decimals: decimals,
	}
}

func timeFrame(r market.Resolution) (marketdata.TimeFrame, error) {
	switch r {
	case market.Res1m:
		return marketdata.NewTimeFrame(1, marketdata.Min), nil
	case market.Res5m:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case market.Res15m:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case market.Res30m:
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case market.Res1h:
		return marketdata.NewTimeFrame(1, marketdata.Hour), nil
	case market.Res4h:
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case market.Res1d:
		return marketdata.NewTimeFrame(1, marketdata.Day), nil
	case market.Res1w:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported resolution: %s", r)
	}
}

func (ap *AlpacaProvider) GetBars(ctx context.Context, q pipeline.BarsQuery) ([]market.RawBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tf, err := timeFrame(q.Resolution)
	if err != nil {
		return nil, err
	}

	start := q.From
	if q.CountBack > 0 {
		if s := q.To.Add(-time.Duration(q.CountBack) * q.Resolution.Duration()); s.Before(start) || start.IsZero() {
			start = s
		}
	}

	history, err := ap.api.GetCryptoBars(q.MarketID, marketdata.GetCryptoBarsRequest{
		TimeFrame:  tf,
		Start:      start,
		End:        q.To,
		CryptoFeed: ap.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s bars: %w", q.MarketID, err)
	}

	if q.CountBack > 0 && len(history) > q.CountBack {
		history = history[len(history)-q.CountBack:]
	}

	bars := make([]market.RawBar, len(history))
	for i, b := range history {
		bars[i] = ap.encode(b)
	}

	ap.log.Debug("bars fetched",
		slog.String("market", q.MarketID),
		slog.String("resolution", string(q.Resolution)),
		slog.Int("count", len(bars)))

	return bars, nil
}

// encode scales a float bar to fixed point. Alpaca reports total volume
// only, so it is attributed to the buy side.
func (ap *AlpacaProvider) encode(b marketdata.CryptoBar) market.RawBar {
	price := func(x float64) string {
		return decimal.NewFromFloat(x).Shift(ap.decimals.Price).Round(0).String()
	}

	return market.RawBar{
		Timestamp:  b.Timestamp.UnixMilli(),
		Open:       price(b.Open),
		High:       price(b.High),
		Low:        price(b.Low),
		Close:      price(b.Close),
		BuyVolume:  decimal.NewFromFloat(b.Volume).Shift(ap.decimals.Volume).Round(0).String(),
		SellVolume: "0",
	}
}
