package indicator

type Levels map[string]float64

type definition struct {
	name string
	// defaultPeriod is zero for families whose parameters are fixed.
	defaultPeriod int
	lookback      func(p int) (required, warmup int)
	// valueBars is the bar count of the first finite value when it exceeds
	// the required bars. Nil otherwise.
	valueBars func(p int) int
	calc      func(in Input, p int) []Value
	levels    Levels
	params    func(in Input, p int) map[string]any
}

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9

	bbandsPeriod = 20
	bbandsWidth  = 2.0

	stochK       = 14
	stochSmoothK = 3
	stochD       = 3

	diPeriod = 14

	cciConstant = 0.015
)

func fixed(required, warmup int) func(int) (int, int) {
	return func(int) (int, int) {
		return required, warmup
	}
}

func periodParams(in Input, p int) map[string]any {
	return map[string]any{"period": p}
}

func pricedParams(in Input, p int) map[string]any {
	return map[string]any{"period": p, "priceSource": string(in.PriceSource)}
}

var definitions = map[Family]definition{
	FamilySMA: {
		name:          "sma",
		defaultPeriod: 20,
		lookback:      func(p int) (int, int) { return p, p - 1 },
		calc:          func(in Input, p int) []Value { return scalars(sma(in.Price, p)) },
		params:        pricedParams,
	},
	FamilyEMA: {
		name:          "ema",
		defaultPeriod: 12,
		lookback:      func(p int) (int, int) { return 2 * p, 3 * p / 2 },
		calc:          func(in Input, p int) []Value { return scalars(ema(in.Price, p)) },
		params:        pricedParams,
	},
	FamilyRSI: {
		name:          "rsi",
		defaultPeriod: 14,
		lookback:      func(p int) (int, int) { return p + 1, p },
		calc:          func(in Input, p int) []Value { return scalars(rsi(in.Price, p)) },
		levels:        Levels{"overbought": 70, "oversold": 30},
		params:        pricedParams,
	},
	FamilyMACD: {
		name:     "macd",
		lookback: fixed(35, 33),
		calc:     func(in Input, _ int) []Value { return macd(in.Price) },
		params: func(in Input, _ int) map[string]any {
			return map[string]any{
				"fast":        macdFast,
				"slow":        macdSlow,
				"signal":      macdSignal,
				"priceSource": string(in.PriceSource),
			}
		},
	},
	FamilyBBands: {
		name:     "bbands",
		lookback: fixed(bbandsPeriod, bbandsPeriod-1),
		calc:     func(in Input, _ int) []Value { return bbands(in) },
		params: func(in Input, _ int) map[string]any {
			return map[string]any{
				"period":      bbandsPeriod,
				"stdDev":      bbandsWidth,
				"priceSource": string(in.PriceSource),
			}
		},
	},
	FamilyATR: {
		name:          "atr",
		defaultPeriod: 14,
		lookback:      func(p int) (int, int) { return p, p - 1 },
		calc:          func(in Input, p int) []Value { return scalars(atr(in, p)) },
		params:        periodParams,
	},
	FamilyADX: {
		name:          "adx",
		defaultPeriod: 14,
		lookback:      func(p int) (int, int) { return 2 * p, 2*p - 1 },
		calc:          func(in Input, p int) []Value { return scalars(directional(in, p).adx) },
		levels:        Levels{"strong": 25, "weak": 15},
		params:        periodParams,
	},
	FamilyPlusDI: {
		name:     "plus_di",
		lookback: fixed(2*diPeriod, 2*diPeriod-1),
		calc:     func(in Input, _ int) []Value { return scalars(directional(in, diPeriod).plus) },
		params:   func(in Input, _ int) map[string]any { return periodParams(in, diPeriod) },
	},
	FamilyMinusDI: {
		name:     "minus_di",
		lookback: fixed(2*diPeriod, 2*diPeriod-1),
		calc:     func(in Input, _ int) []Value { return scalars(directional(in, diPeriod).minus) },
		params:   func(in Input, _ int) map[string]any { return periodParams(in, diPeriod) },
	},
	FamilyVWAP: {
		name:     "vwap",
		lookback: fixed(1, 0),
		calc:     func(in Input, _ int) []Value { return scalars(vwap(in)) },
		params:   func(Input, int) map[string]any { return map[string]any{"anchor": "window"} },
	},
	FamilyCCI: {
		name:          "cci",
		defaultPeriod: 20,
		lookback:      func(p int) (int, int) { return p, p - 1 },
		calc:          func(in Input, p int) []Value { return scalars(cci(in, p)) },
		levels:        Levels{"overbought": 100, "oversold": -100},
		params:        periodParams,
	},
	FamilyStoch: {
		name:      "stoch",
		lookback:  fixed(stochK, stochK-1),
		valueBars: func(int) int { return stochK + stochSmoothK + stochD - 2 },
		calc:      func(in Input, _ int) []Value { return stoch(in) },
		levels:    Levels{"overbought": 80, "oversold": 20},
		params: func(Input, int) map[string]any {
			return map[string]any{
				"kPeriod":    stochK,
				"kSmoothing": stochSmoothK,
				"dPeriod":    stochD,
			}
		},
	},
	FamilyMFI: {
		name:          "mfi",
		defaultPeriod: 14,
		lookback:      func(p int) (int, int) { return p, p - 1 },
		calc:          func(in Input, p int) []Value { return scalars(mfi(in, p)) },
		levels:        Levels{"overbought": 80, "oversold": 20},
		params:        periodParams,
	},
	FamilyOBV: {
		name:     "obv",
		lookback: fixed(1, 0),
		calc:     func(in Input, _ int) []Value { return scalars(obv(in)) },
		params:   func(Input, int) map[string]any { return map[string]any{} },
	},
}

var familyByName = func() map[string]Family {
	m := make(map[string]Family, len(definitions))
	for f, def := range definitions {
		m[def.name] = f
	}
	return m
}()
