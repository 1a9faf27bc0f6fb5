package indicator

type Derived struct {
	DistSMA20ATR *float64 `json:"dist_sma20_atr,omitempty"`
	DistVWAPATR  *float64 `json:"dist_vwap_atr,omitempty"`
}

// Derive measures the distance of price from sma_20 and vwap in atr_14
// units. A field is left nil when any of its inputs is missing.
func Derive(price float64, results map[string]*Result) Derived {
	var d Derived

	atr, ok := results["atr_14"].Numeric()
	if !ok || atr <= 0 || !isFinite(price) {
		return d
	}

	distance := func(id string) *float64 {
		v, ok := results[id].Numeric()
		if !ok {
			return nil
		}
		dist := (price - v) / atr
		if !isFinite(dist) {
			return nil
		}
		return &dist
	}

	d.DistSMA20ATR = distance("sma_20")
	d.DistVWAPATR = distance("vwap")
	return d
}
