package indicator

import "math"

func bbands(in Input) []Value {
	price := in.Price
	middle := sma(price, bbandsPeriod)

	return pack(len(price), func(i int) BandsValue {
		if i < bbandsPeriod-1 {
			return BandsValue{Middle: math.NaN()}
		}

		sd := stddev(price[i-bbandsPeriod+1:i+1], middle[i])
		upper := middle[i] + bbandsWidth*sd
		lower := middle[i] - bbandsWidth*sd
		return BandsValue{
			Upper:     upper,
			Middle:    middle[i],
			Lower:     lower,
			PercentB:  (in.Series.Close[i] - lower) / (upper - lower),
			Bandwidth: (upper - lower) / middle[i] * 100,
		}
	})
}

// stddev is the population standard deviation around mean.
func stddev(data []float64, mean float64) float64 {
	sum := 0.0
	for _, v := range data {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(data)))
}

func atr(in Input, period int) []float64 {
	return wilder(trueRange(in.Series), period, 0)
}
