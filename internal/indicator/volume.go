package indicator

import "math"

// vwap is anchored at the first bar of the series.
func vwap(in Input) []float64 {
	tp := typicalPrice(in.Series)
	out := make([]float64, len(tp))

	pv, vol := 0.0, 0.0
	for i := range tp {
		pv += tp[i] * in.Series.Volume[i]
		vol += in.Series.Volume[i]
		if vol == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = pv / vol
	}
	return out
}

func obv(in Input) []float64 {
	s := in.Series
	out := make([]float64, s.Len())
	for i := 1; i < s.Len(); i++ {
		out[i] = out[i-1]
		switch {
		case s.Close[i] > s.Close[i-1]:
			out[i] += s.Volume[i]
		case s.Close[i] < s.Close[i-1]:
			out[i] -= s.Volume[i]
		}
	}
	return out
}

// mfi sums money flow over the last period bars. The first bar carries no
// direction, so the first value appears at period-1.
func mfi(in Input, period int) []float64 {
	tp := typicalPrice(in.Series)
	n := len(tp)

	pos := make([]float64, n)
	neg := make([]float64, n)
	for i := 1; i < n; i++ {
		flow := tp[i] * in.Series.Volume[i]
		switch {
		case tp[i] > tp[i-1]:
			pos[i] = flow
		case tp[i] < tp[i-1]:
			neg[i] = flow
		}
	}

	out := nanSeries(n)
	for i := period - 1; i < n; i++ {
		up, down := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			up += pos[j]
			down += neg[j]
		}
		out[i] = ratioIndex(up, down)
	}
	return out
}
