package indicator

import "math"

func rsi(price []float64, period int) []float64 {
	n := len(price)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := price[i] - price[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain := wilder(gains, period, 1)
	avgLoss := wilder(losses, period, 1)

	out := nanSeries(n)
	for i := period; i < n; i++ {
		out[i] = ratioIndex(avgGain[i], avgLoss[i])
	}
	return out
}

// ratioIndex maps an up/down ratio onto 0..100. A zero denominator yields
// 100, or 50 when both sides are zero.
func ratioIndex(up, down float64) float64 {
	if down == 0 {
		if up == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+up/down)
}

func cci(in Input, period int) []float64 {
	tp := typicalPrice(in.Series)
	mean := sma(tp, period)

	out := nanSeries(len(tp))
	for i := period - 1; i < len(tp); i++ {
		dev := 0.0
		for _, v := range tp[i-period+1 : i+1] {
			dev += math.Abs(v - mean[i])
		}
		dev /= float64(period)
		out[i] = (tp[i] - mean[i]) / (cciConstant * dev)
	}
	return out
}

// stochFastK is zero when the range is flat.
func stochFastK(in Input) []float64 {
	s := in.Series
	out := nanSeries(s.Len())
	for i := stochK - 1; i < s.Len(); i++ {
		hi, lo := s.High[i], s.Low[i]
		for j := i - stochK + 1; j < i; j++ {
			hi = max(hi, s.High[j])
			lo = min(lo, s.Low[j])
		}
		if hi == lo {
			out[i] = 0
			continue
		}
		out[i] = (s.Close[i] - lo) / (hi - lo) * 100
	}
	return out
}

func stoch(in Input) []Value {
	k := sma(stochFastK(in), stochSmoothK)
	d := sma(k, stochD)
	return pack(len(k), func(i int) StochValue {
		return StochValue{K: k[i], D: d[i]}
	})
}
