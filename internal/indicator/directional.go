package indicator

import "math"

type directionalSeries struct {
	plus  []float64
	minus []float64
	adx   []float64
}

// directional computes +DI and -DI from index period and ADX from index
// 2*period-1, all with Wilder smoothing.
func directional(in Input, period int) directionalSeries {
	s := in.Series
	n := s.Len()

	tr := trueRange(s)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := s.High[i] - s.High[i-1]
		down := s.Low[i-1] - s.Low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	str := wilder(tr, period, 1)
	spdm := wilder(plusDM, period, 1)
	smdm := wilder(minusDM, period, 1)

	res := directionalSeries{
		plus:  nanSeries(n),
		minus: nanSeries(n),
	}
	dx := make([]float64, n)
	for i := period; i < n; i++ {
		res.plus[i] = 100 * spdm[i] / str[i]
		res.minus[i] = 100 * smdm[i] / str[i]

		sum := res.plus[i] + res.minus[i]
		if sum != 0 {
			dx[i] = 100 * math.Abs(res.plus[i]-res.minus[i]) / sum
		}
	}

	res.adx = wilder(dx, period, period)
	return res
}
