package indicator

import "math"

// Value is one output point of an indicator. Implementations are Scalar,
// MACDValue, BandsValue and StochValue.
type Value interface {
	Fields() []Field
	Sub(prev Value) Value
}

type Field struct {
	Name  string
	Value float64
}

type Scalar float64

func (v Scalar) Fields() []Field {
	return []Field{{Value: float64(v)}}
}

func (v Scalar) Sub(prev Value) Value {
	p, ok := prev.(Scalar)
	if !ok {
		return nil
	}
	return v - p
}

type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

func (v MACDValue) Fields() []Field {
	return []Field{
		{"macd", v.MACD},
		{"signal", v.Signal},
		{"histogram", v.Histogram},
	}
}

func (v MACDValue) Sub(prev Value) Value {
	p, ok := prev.(MACDValue)
	if !ok {
		return nil
	}
	return MACDValue{
		MACD:      v.MACD - p.MACD,
		Signal:    v.Signal - p.Signal,
		Histogram: v.Histogram - p.Histogram,
	}
}

type BandsValue struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	PercentB  float64 `json:"percentB"`
	Bandwidth float64 `json:"bandwidth"`
}

func (v BandsValue) Fields() []Field {
	return []Field{
		{"upper", v.Upper},
		{"middle", v.Middle},
		{"lower", v.Lower},
		{"percentB", v.PercentB},
		{"bandwidth", v.Bandwidth},
	}
}

func (v BandsValue) Sub(prev Value) Value {
	p, ok := prev.(BandsValue)
	if !ok {
		return nil
	}
	return BandsValue{
		Upper:     v.Upper - p.Upper,
		Middle:    v.Middle - p.Middle,
		Lower:     v.Lower - p.Lower,
		PercentB:  v.PercentB - p.PercentB,
		Bandwidth: v.Bandwidth - p.Bandwidth,
	}
}

type StochValue struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

func (v StochValue) Fields() []Field {
	return []Field{
		{"k", v.K},
		{"d", v.D},
	}
}

func (v StochValue) Sub(prev Value) Value {
	p, ok := prev.(StochValue)
	if !ok {
		return nil
	}
	return StochValue{K: v.K - p.K, D: v.D - p.D}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finite(v Value) bool {
	for _, f := range v.Fields() {
		if !isFinite(f.Value) {
			return false
		}
	}
	return true
}

// pack converts raw points into values, leaving nil wherever a field is not finite.
func pack[T Value](n int, at func(i int) T) []Value {
	out := make([]Value, n)
	for i := range n {
		v := at(i)
		if finite(v) {
			out[i] = v
		}
	}
	return out
}

func scalars(data []float64) []Value {
	return pack(len(data), func(i int) Scalar { return Scalar(data[i]) })
}
