package indicator

func macd(price []float64) []Value {
	fast := ema(price, macdFast)
	slow := ema(price, macdSlow)

	line := make([]float64, len(price))
	for i := range line {
		line[i] = fast[i] - slow[i]
	}

	signal := ema(line, macdSignal)
	return pack(len(price), func(i int) MACDValue {
		return MACDValue{
			MACD:      line[i],
			Signal:    signal[i],
			Histogram: line[i] - signal[i],
		}
	})
}
