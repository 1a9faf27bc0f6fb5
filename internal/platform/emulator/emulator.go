package emulator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gamma-omg/market-indicators/internal/config"
	"github.com/gamma-omg/market-indicators/internal/market"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
	"golang.org/x/sync/singleflight"
)

// Emulator serves historical bars from CSV files. Files are read once per
// market and kept in memory at the base resolution.
type Emulator struct {
	log   *slog.Logger
	data  map[string]string
	base  market.Resolution
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string][]market.RawBar
}

func NewEmulator(log *slog.Logger, cfg config.Emulator) (*Emulator, error) {
	base := market.Res1m
	if cfg.BaseResolution != "" {
		r, err := market.ParseResolution(cfg.BaseResolution)
		if err != nil {
			return nil, fmt.Errorf("invalid emulator base resolution: %w", err)
		}
		base = r
	}

	return &Emulator{
		log:   log,
		data:  cfg.Data,
		base:  base,
		cache: make(map[string][]market.RawBar),
	}, nil
}

func (e *Emulator) GetBars(ctx context.Context, q pipeline.BarsQuery) ([]market.RawBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dur := q.Resolution.Duration()
	if dur < e.base.Duration() || dur%e.base.Duration() != 0 {
		return nil, fmt.Errorf("resolution %s cannot be built from %s bars", q.Resolution, e.base)
	}

	all, err := e.load(q.MarketID)
	if err != nil {
		return nil, err
	}

	to := q.To.UnixMilli()
	end := sort.Search(len(all), func(i int) bool { return all[i].Timestamp > to })
	bars := all[:end]

	if dur != e.base.Duration() {
		bars, err = market.Aggregate(bars, dur)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate %s bars: %w", q.MarketID, err)
		}
	}

	if q.CountBack > 0 {
		if len(bars) > q.CountBack {
			bars = bars[len(bars)-q.CountBack:]
		}
	} else {
		from := q.From.UnixMilli()
		start := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp >= from })
		bars = bars[start:]
	}

	out := make([]market.RawBar, len(bars))
	copy(out, bars)
	return out, nil
}

func (e *Emulator) load(marketID string) ([]market.RawBar, error) {
	e.mu.RLock()
	bars, ok := e.cache[marketID]
	e.mu.RUnlock()
	if ok {
		return bars, nil
	}

	path, ok := e.data[marketID]
	if !ok {
		return nil, fmt.Errorf("unknown market: %s", marketID)
	}

	v, err, _ := e.group.Do(marketID, func() (any, error) {
		rdr, err := newBarReader(path)
		if err != nil {
			return nil, err
		}

		bars, err := rdr.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s bars: %w", marketID, err)
		}

		e.mu.Lock()
		e.cache[marketID] = bars
		e.mu.Unlock()

		e.log.Debug("bars loaded", slog.String("market", marketID), slog.Int("count", len(bars)))
		return bars, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]market.RawBar), nil
}
