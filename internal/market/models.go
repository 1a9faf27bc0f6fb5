package market

import (
	"fmt"
	"time"
)

const DefaultDecimals int32 = 9

type RawBar struct {
	Open       string `json:"open"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Close      string `json:"close"`
	BuyVolume  string `json:"buy_volume"`
	SellVolume string `json:"sell_volume"`
	Timestamp  int64  `json:"timestamp"`
}

type Series struct {
	Open      []float64
	High      []float64
	Low       []float64
	Close     []float64
	Volume    []float64
	Timestamp []int64
}

func (s Series) Len() int {
	return len(s.Close)
}

type PriceSource string

const (
	PriceClose PriceSource = "close"
	PriceHLC3  PriceSource = "hlc3"
	PriceOHLC4 PriceSource = "ohlc4"
)

func ParsePriceSource(s string) (PriceSource, error) {
	switch PriceSource(s) {
	case "":
		return PriceClose, nil
	case PriceClose, PriceHLC3, PriceOHLC4:
		return PriceSource(s), nil
	default:
		return "", fmt.Errorf("unknown price source: %s", s)
	}
}

// Price builds the price series selected by src. Unknown sources fall back to close.
func (s Series) Price(src PriceSource) []float64 {
	n := s.Len()
	p := make([]float64, n)
	for i := range n {
		switch src {
		case PriceHLC3:
			p[i] = (s.High[i] + s.Low[i] + s.Close[i]) / 3
		case PriceOHLC4:
			p[i] = (s.Open[i] + s.High[i] + s.Low[i] + s.Close[i]) / 4
		default:
			p[i] = s.Close[i]
		}
	}

	return p
}

type Resolution string

const (
	Res1m  Resolution = "1m"
	Res5m  Resolution = "5m"
	Res15m Resolution = "15m"
	Res30m Resolution = "30m"
	Res1h  Resolution = "1h"
	Res4h  Resolution = "4h"
	Res1d  Resolution = "1d"
	Res1w  Resolution = "1w"
)

var resolutions = map[Resolution]time.Duration{
	Res1m:  time.Minute,
	Res5m:  5 * time.Minute,
	Res15m: 15 * time.Minute,
	Res30m: 30 * time.Minute,
	Res1h:  time.Hour,
	Res4h:  4 * time.Hour,
	Res1d:  24 * time.Hour,
	Res1w:  7 * 24 * time.Hour,
}

func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if _, ok := resolutions[r]; !ok {
		return "", fmt.Errorf("unknown resolution: %s", s)
	}

	return r, nil
}

// Duration returns zero for unknown resolutions.
func (r Resolution) Duration() time.Duration {
	return resolutions[r]
}

func (r Resolution) DurationMs() int64 {
	return r.Duration().Milliseconds()
}
