package regime

import "github.com/gamma-omg/market-indicators/internal/indicator"

const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"

	Strong   = "strong"
	Moderate = "moderate"
	Weak     = "weak"
	Unknown  = "unknown"

	PositiveStrong    = "positive_strong"
	PositiveWeakening = "positive_weakening"
	NegativeStrong    = "negative_strong"
	NegativeWeakening = "negative_weakening"

	Low  = "low"
	High = "high"
)

const (
	adxStrong = 25.0
	adxWeak   = 15.0

	rsiMid = 50.0

	atrPctLow     = 1.0
	atrPctHigh    = 3.0
	bandwidthLow  = 2.0
	bandwidthHigh = 5.0
)

// Indicators lists the identifiers Classify reads its inputs from.
var Indicators = []string{"sma_20", "sma_50", "adx_14", "plus_di", "minus_di", "rsi_14", "macd", "atr_14", "bbands"}

// Inputs holds the latest indicator readings. Nil fields are unavailable.
type Inputs struct {
	Price        float64
	SMA20        *float64
	SMA50        *float64
	PlusDI       *float64
	MinusDI      *float64
	ADX          *float64
	RSI          *float64
	MACDHist     *float64
	PrevMACDHist *float64
	ATR          *float64
	Bandwidth    *float64
}

type Summary struct {
	TrendBias     string   `json:"trendBias"`
	TrendStrength string   `json:"trendStrength"`
	Momentum      string   `json:"momentum"`
	Volatility    string   `json:"volatility"`
	Inputs        []string `json:"inputs"`
}

func Classify(in Inputs) Summary {
	s := Summary{Inputs: []string{}}
	s.TrendBias = s.trendBias(in)
	s.TrendStrength = s.trendStrength(in)
	s.Momentum = s.momentum(in)
	s.Volatility = s.volatility(in)
	return s
}

func (s *Summary) tag(t string) {
	s.Inputs = append(s.Inputs, t)
}

func (s *Summary) trendBias(in Inputs) string {
	bias := Neutral
	if in.SMA20 != nil && in.SMA50 != nil {
		switch {
		case in.Price > *in.SMA20 && *in.SMA20 > *in.SMA50:
			bias = Bullish
			s.tag("sma_cross_bullish")
		case in.Price < *in.SMA20 && *in.SMA20 < *in.SMA50:
			bias = Bearish
			s.tag("sma_cross_bearish")
		}
	}

	if in.PlusDI == nil || in.MinusDI == nil {
		return bias
	}

	// DI moves the bias one step at most.
	if *in.PlusDI > *in.MinusDI {
		s.tag("di_plus_dominant")
		switch bias {
		case Bearish:
			return Neutral
		case Neutral:
			return Bullish
		}
		return bias
	}

	s.tag("di_minus_dominant")
	switch bias {
	case Bullish:
		return Neutral
	case Neutral:
		return Bearish
	}
	return bias
}

func (s *Summary) trendStrength(in Inputs) string {
	if in.ADX == nil {
		s.tag("adx_missing")
		return Unknown
	}

	switch adx := *in.ADX; {
	case adx > adxStrong:
		s.tag("adx_strong")
		return Strong
	case adx > adxWeak:
		s.tag("adx_moderate")
		return Moderate
	default:
		s.tag("adx_weak")
		return Weak
	}
}

// momentum needs the previous histogram to call a move strong. Without it
// the move is reported as weakening.
func (s *Summary) momentum(in Inputs) string {
	if in.RSI == nil || in.MACDHist == nil {
		return Neutral
	}

	rsi, hist := *in.RSI, *in.MACDHist
	switch {
	case rsi > rsiMid && hist > 0:
		if in.PrevMACDHist != nil && hist > *in.PrevMACDHist {
			s.tag("rsi_macd_positive_rising")
			return PositiveStrong
		}
		s.tag("rsi_macd_positive_fading")
		return PositiveWeakening
	case rsi < rsiMid && hist < 0:
		if in.PrevMACDHist != nil && hist < *in.PrevMACDHist {
			s.tag("rsi_macd_negative_falling")
			return NegativeStrong
		}
		s.tag("rsi_macd_negative_fading")
		return NegativeWeakening
	}

	return Neutral
}

// volatility calls a market quiet only when both ATR% and bandwidth agree.
func (s *Summary) volatility(in Inputs) string {
	if in.ATR == nil || in.Price <= 0 {
		s.tag("atr_missing")
		return Unknown
	}

	atrPct := *in.ATR / in.Price * 100
	hasBandwidth := in.Bandwidth != nil

	if atrPct < atrPctLow && hasBandwidth && *in.Bandwidth < bandwidthLow {
		s.tag("atr_pct_low")
		s.tag("bandwidth_low")
		return Low
	}

	high := false
	if atrPct > atrPctHigh {
		s.tag("atr_pct_high")
		high = true
	}
	if hasBandwidth && *in.Bandwidth > bandwidthHigh {
		s.tag("bandwidth_high")
		high = true
	}
	if high {
		return High
	}

	return Moderate
}

// InputsFromResults reads the classifier inputs out of computed indicators.
func InputsFromResults(price float64, results map[string]*indicator.Result) Inputs {
	in := Inputs{
		Price:   price,
		SMA20:   scalar(results["sma_20"]),
		SMA50:   scalar(results["sma_50"]),
		PlusDI:  scalar(results["plus_di"]),
		MinusDI: scalar(results["minus_di"]),
		ADX:     scalar(results["adx_14"]),
		RSI:     scalar(results["rsi_14"]),
		ATR:     scalar(results["atr_14"]),
	}

	if r := results["macd"]; r != nil && r.Error == "" {
		if v, ok := r.Value.(indicator.MACDValue); ok {
			in.MACDHist = &v.Histogram
		}
		if p, ok := r.Prev.(indicator.MACDValue); ok {
			in.PrevMACDHist = &p.Histogram
		}
	}

	if r := results["bbands"]; r != nil && r.Error == "" {
		if v, ok := r.Value.(indicator.BandsValue); ok {
			in.Bandwidth = &v.Bandwidth
		}
	}

	return in
}

func scalar(r *indicator.Result) *float64 {
	v, ok := r.Numeric()
	if !ok {
		return nil
	}
	return &v
}
