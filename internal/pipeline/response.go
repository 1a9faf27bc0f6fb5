package pipeline

import (
	"github.com/gamma-omg/market-indicators/internal/indicator"
	"github.com/gamma-omg/market-indicators/internal/market"
	"github.com/gamma-omg/market-indicators/internal/regime"
)

const (
	WarnAsOf              = "AS_OF_TIMESTAMP"
	WarnIncompleteLastBar = "INCOMPLETE_LAST_BAR"
	WarnInsufficientBars  = "INSUFFICIENT_BARS"
	WarnVWAPSessionAnchor = "VWAP_SESSION_ANCHOR_UNSUPPORTED"
)

const CurrentPriceLastClose = "last_close"

type Warning struct {
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

type SnapshotResponse struct {
	MarketID           string                       `json:"marketId"`
	Resolution         market.Resolution            `json:"resolution"`
	From               int64                        `json:"from"`
	To                 int64                        `json:"to"`
	Bars               int                          `json:"bars"`
	AsOf               *int64                       `json:"asOf"`
	CurrentPrice       float64                      `json:"currentPrice"`
	CurrentPriceSource string                       `json:"currentPriceSource"`
	Warnings           []Warning                    `json:"warnings"`
	Indicators         map[string]*indicator.Result `json:"indicators"`
	Derived            indicator.Derived            `json:"derived"`
	MicroSummary       *regime.Summary              `json:"microSummary,omitempty"`
}

type WindowResponse struct {
	MarketID   string                       `json:"marketId"`
	Resolution market.Resolution            `json:"resolution"`
	From       int64                        `json:"from"`
	To         int64                        `json:"to"`
	Bars       int                          `json:"bars"`
	Warnings   []Warning                    `json:"warnings"`
	Timestamps []int64                      `json:"timestamps"`
	Indicators map[string][]indicator.Value `json:"indicators"`
}

// Envelope is the outcome of Execute. Exactly one of Snapshot and Window is
// set when OK is true.
type Envelope struct {
	OK       bool              `json:"ok"`
	Error    string            `json:"error,omitempty"`
	Snapshot *SnapshotResponse `json:"snapshot,omitempty"`
	Window   *WindowResponse   `json:"window,omitempty"`
}
