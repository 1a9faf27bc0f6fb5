package platform

import (
	"errors"
	"log/slog"

	"github.com/gamma-omg/market-indicators/internal/config"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
	"github.com/gamma-omg/market-indicators/internal/platform/alpaca"
	"github.com/gamma-omg/market-indicators/internal/platform/emulator"
)

func Create(log *slog.Logger, cfg config.Config) (pipeline.Provider, error) {
	var p pipeline.Provider

	switch c := cfg.ProviderRef.Provider.(type) {
	case config.Alpaca:
		p = alpaca.NewAlpacaProvider(log, c, cfg.Decimals)
	case config.Emulator:
		emu, err := emulator.NewEmulator(log, c)
		if err != nil {
			return nil, err
		}
		p = emu
	default:
		return nil, errors.New("unknown market data provider")
	}

	if cfg.RateLimit.RPS > 0 {
		p = NewRateLimited(p, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	return p, nil
}
