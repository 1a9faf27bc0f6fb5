package indicator

import (
	"math"

	"github.com/gamma-omg/market-indicators/internal/market"
)

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func ema(data []float64, period int) []float64 {
	if len(data) < period {
		panic("not enough data to compute ema")
	}

	ema := make([]float64, len(data))
	ema[0] = data[0]

	a := 2.0 / (float64(period) + 1)
	for i, val := range data[1:] {
		ema[i+1] = val*a + ema[i]*(1-a)
	}

	return ema
}

// sma is NaN until a full window is available or while the window holds a NaN.
func sma(data []float64, period int) []float64 {
	out := nanSeries(len(data))
	for i := period - 1; i < len(data); i++ {
		sum := 0.0
		for _, v := range data[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out
}

// wilder applies Wilder smoothing to data[start:]. The first value is the
// simple mean of data[start:start+period] placed at start+period-1.
func wilder(data []float64, period, start int) []float64 {
	out := nanSeries(len(data))
	first := start + period - 1
	if first >= len(data) {
		return out
	}

	sum := 0.0
	for _, v := range data[start : first+1] {
		sum += v
	}
	out[first] = sum / float64(period)

	p := float64(period)
	for i := first + 1; i < len(data); i++ {
		out[i] = (out[i-1]*(p-1) + data[i]) / p
	}
	return out
}

func typicalPrice(s market.Series) []float64 {
	tp := make([]float64, s.Len())
	for i := range tp {
		tp[i] = (s.High[i] + s.Low[i] + s.Close[i]) / 3
	}
	return tp
}

// trueRange uses high-low for the first bar, which has no previous close.
func trueRange(s market.Series) []float64 {
	tr := make([]float64, s.Len())
	for i := range tr {
		hl := s.High[i] - s.Low[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		prev := s.Close[i-1]
		tr[i] = max(hl, math.Abs(s.High[i]-prev), math.Abs(s.Low[i]-prev))
	}
	return tr
}
