package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/gamma-omg/market-indicators/internal/market"
)

type Mode string

const (
	ModeSnapshot Mode = "snapshot"
	ModeWindow   Mode = "window"
)

type Period string

const (
	Period1h  Period = "1h"
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
)

var periods = map[Period]time.Duration{
	Period1h:  time.Hour,
	Period24h: 24 * time.Hour,
	Period7d:  7 * 24 * time.Hour,
	Period30d: 30 * 24 * time.Hour,
}

type VWAPAnchor string

const (
	AnchorWindow  VWAPAnchor = "window"
	AnchorSession VWAPAnchor = "session"
)

const (
	MaxIndicators     = 20
	MaxWindowSize     = 500
	DefaultWindowSize = 100

	snapshotPadding = 50
)

// Request describes one pipeline call. Zero times are unset.
type Request struct {
	MarketID                 string
	Indicators               []string
	Resolution               market.Resolution
	Mode                     Mode
	Period                   Period
	From                     time.Time
	To                       time.Time
	AsOf                     time.Time
	WindowSize               int
	PriceSource              market.PriceSource
	VWAPAnchor               VWAPAnchor
	Strict                   bool
	MicroSummary             bool
	IncludeIncompleteLastBar bool
}

func (r Request) withDefaults() Request {
	if r.Mode == "" {
		r.Mode = ModeSnapshot
	}
	if r.Period == "" {
		r.Period = Period24h
	}
	if r.WindowSize == 0 {
		r.WindowSize = DefaultWindowSize
	}
	if r.PriceSource == "" {
		r.PriceSource = market.PriceClose
	}
	if r.VWAPAnchor == "" {
		r.VWAPAnchor = AnchorWindow
	}
	return r
}

func (r Request) validate() error {
	if len(r.Indicators) > MaxIndicators {
		return &RequestError{Reason: fmt.Sprintf("too many indicators: %d requested, at most %d allowed", len(r.Indicators), MaxIndicators)}
	}
	if len(r.Indicators) == 0 {
		return &RequestError{Reason: "no indicators requested"}
	}
	if r.MarketID == "" {
		return &RequestError{Reason: "market id is required"}
	}
	if _, err := market.ParseResolution(string(r.Resolution)); err != nil {
		return &RequestError{Reason: err.Error()}
	}
	if r.Mode != ModeSnapshot && r.Mode != ModeWindow {
		return &RequestError{Reason: fmt.Sprintf("unknown mode: %s", r.Mode)}
	}
	if _, ok := periods[r.Period]; !ok {
		return &RequestError{Reason: fmt.Sprintf("unknown period: %s", r.Period)}
	}
	if r.WindowSize < 0 || r.WindowSize > MaxWindowSize {
		return &RequestError{Reason: fmt.Sprintf("window size must be within 1..%d, got %d", MaxWindowSize, r.WindowSize)}
	}
	if _, err := market.ParsePriceSource(string(r.PriceSource)); err != nil {
		return &RequestError{Reason: err.Error()}
	}
	if r.VWAPAnchor != AnchorWindow && r.VWAPAnchor != AnchorSession {
		return &RequestError{Reason: fmt.Sprintf("unknown vwap anchor: %s", r.VWAPAnchor)}
	}
	return nil
}

type BarsQuery struct {
	MarketID   string
	Resolution market.Resolution
	CountBack  int
	From       time.Time
	To         time.Time
}

// Provider is the market data source. Bars are returned oldest first.
type Provider interface {
	GetBars(ctx context.Context, q BarsQuery) ([]market.RawBar, error)
}

type ProviderFunc func(ctx context.Context, q BarsQuery) ([]market.RawBar, error)

func (f ProviderFunc) GetBars(ctx context.Context, q BarsQuery) ([]market.RawBar, error) {
	return f(ctx, q)
}
