package indicator

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/gamma-omg/market-indicators/internal/market"
)

type Input struct {
	Series      market.Series
	Price       []float64
	PriceSource market.PriceSource
}

func NewInput(s market.Series, src market.PriceSource) Input {
	if src == "" {
		src = market.PriceClose
	}

	return Input{
		Series:      s,
		Price:       s.Price(src),
		PriceSource: src,
	}
}

type Meta struct {
	RequiredBars int
	ProvidedBars int
	WarmupBars   int
	Params       map[string]any
}

// MarshalJSON flattens Params next to the bar counts.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Params)+3)
	maps.Copy(out, m.Params)
	out["requiredBars"] = m.RequiredBars
	out["providedBars"] = m.ProvidedBars
	out["warmupBars"] = m.WarmupBars
	return json.Marshal(out)
}

// Result is the outcome of one indicator. NeedBars is set when Error is
// caused by too few bars.
type Result struct {
	Value    Value   `json:"value"`
	Prev     Value   `json:"prev"`
	Delta    Value   `json:"delta"`
	Levels   Levels  `json:"levels,omitempty"`
	Meta     Meta    `json:"meta"`
	Error    string  `json:"error,omitempty"`
	Series   []Value `json:"-"`
	NeedBars int     `json:"-"`
}

// At returns the value at bar i, or nil when i is inside the warmup or the
// point is not finite. A failed latest value does not hide earlier points.
func (r *Result) At(i int) Value {
	if r == nil || i < r.Meta.WarmupBars || i >= len(r.Series) {
		return nil
	}
	return r.Series[i]
}

// Numeric returns the latest value when it is a scalar.
func (r *Result) Numeric() (float64, bool) {
	if r == nil || r.Error != "" {
		return 0, false
	}
	v, ok := r.Value.(Scalar)
	return float64(v), ok
}

// Compute evaluates spec over in. It returns nil for unknown identifiers and
// when fewer than RequiredBars bars are available. Numeric failures are
// reported through Result.Error.
func Compute(spec Spec, in Input) *Result {
	def, ok := definitions[spec.Family]
	n := in.Series.Len()
	if !ok || n < spec.RequiredBars {
		return nil
	}

	res := &Result{
		Levels: def.levels,
		Meta: Meta{
			RequiredBars: spec.RequiredBars,
			ProvidedBars: n,
			WarmupBars:   spec.WarmupBars,
			Params:       def.params(in, spec.Period),
		},
	}

	if def.valueBars != nil {
		if need := def.valueBars(spec.Period); n < need {
			res.Error = fmt.Sprintf("insufficient data: %s needs %d bars for a value, %d available", spec.ID, need, n)
			res.NeedBars = need
			return res
		}
	}

	series, err := calculate(def, in, spec.Period)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Series = series
	last := series[n-1]
	if last == nil {
		res.Error = fmt.Sprintf("%s produced a non-finite value", spec.ID)
		return res
	}

	res.Value = last
	if n >= 2 && series[n-2] != nil {
		res.Prev = series[n-2]
		res.Delta = last.Sub(res.Prev)
	}

	return res
}

func calculate(def definition, in Input, period int) (series []Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to calculate %s: %v", def.name, r)
		}
	}()

	series = def.calc(in, period)
	if len(series) != in.Series.Len() {
		err = fmt.Errorf("failed to calculate %s: got %d points for %d bars", def.name, len(series), in.Series.Len())
	}
	return
}
