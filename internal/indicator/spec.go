package indicator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Family int

const (
	FamilyUnknown Family = iota
	FamilySMA
	FamilyEMA
	FamilyRSI
	FamilyMACD
	FamilyBBands
	FamilyATR
	FamilyADX
	FamilyPlusDI
	FamilyMinusDI
	FamilyVWAP
	FamilyCCI
	FamilyStoch
	FamilyMFI
	FamilyOBV
)

const unknownLookback = 50

// Spec is a resolved indicator identifier.
type Spec struct {
	ID           string
	Family       Family
	Period       int
	RequiredBars int
	WarmupBars   int
}

var aliases = map[string]string{
	"rsi14":        "rsi_14",
	"sma20":        "sma_20",
	"sma50":        "sma_50",
	"sma200":       "sma_200",
	"ema12":        "ema_12",
	"ema26":        "ema_26",
	"ema50":        "ema_50",
	"ema200":       "ema_200",
	"atr14":        "atr_14",
	"adx14":        "adx_14",
	"cci20":        "cci_20",
	"mfi14":        "mfi_14",
	"macd_12_26_9": "macd",
	"bbands_20_2":  "bbands",
	"bb":           "bbands",
	"bb_20_2":      "bbands",
	"bollinger":    "bbands",
	"stoch_14_3_3": "stoch",
	"stochastic":   "stoch",
	"+di":          "plus_di",
	"di+":          "plus_di",
	"plusdi":       "plus_di",
	"di_plus":      "plus_di",
	"_di":          "minus_di",
	"di_":          "minus_di",
	"minusdi":      "minus_di",
	"di_minus":     "minus_di",
}

var periodic = regexp.MustCompile(`^(sma|ema|rsi|atr|adx|cci|mfi)_?(\d*)$`)

var prefixed = []struct {
	prefix string
	id     string
}{
	{"macd", "macd"},
	{"bbands", "bbands"},
	{"stoch", "stoch"},
	{"plus_di", "plus_di"},
	{"minus_di", "minus_di"},
}

// Normalize maps a caller supplied identifier to its canonical form, e.g.
// "RSI-14" -> "rsi_14", "rsi" -> "rsi_14", "macd_12_26_9" -> "macd".
// Identifiers it cannot recognise are returned lower-cased.
func Normalize(id string) string {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), "-", "_")
	if a, ok := aliases[n]; ok {
		n = a
	}

	if m := periodic.FindStringSubmatch(n); m != nil {
		period := definitions[familyByName[m[1]]].defaultPeriod
		if m[2] != "" {
			p, err := strconv.Atoi(m[2])
			if err != nil || p <= 0 {
				return n
			}
			period = p
		}
		return fmt.Sprintf("%s_%d", m[1], period)
	}

	for _, p := range prefixed {
		if n == p.prefix || strings.HasPrefix(n, p.prefix+"_") {
			return p.id
		}
	}

	return n
}

func Resolve(id string) Spec {
	n := Normalize(id)
	s := Spec{ID: n}

	name, suffix, _ := strings.Cut(n, "_")
	if n == "plus_di" || n == "minus_di" {
		name, suffix = n, ""
	}

	f, ok := familyByName[name]
	if !ok {
		s.RequiredBars = unknownLookback
		return s
	}

	def := definitions[f]
	period := def.defaultPeriod
	if period == 0 && suffix != "" {
		s.RequiredBars = unknownLookback
		return s
	}
	if period > 0 {
		p, err := strconv.Atoi(suffix)
		if err != nil || p <= 0 {
			s.RequiredBars = unknownLookback
			return s
		}
		period = p
	}

	s.Family = f
	s.Period = period
	s.RequiredBars, s.WarmupBars = def.lookback(period)
	return s
}

// MaxLookback is the largest RequiredBars across specs.
func MaxLookback(specs []Spec) int {
	m := 0
	for _, s := range specs {
		m = max(m, s.RequiredBars)
	}
	return m
}

func (f Family) String() string {
	if def, ok := definitions[f]; ok {
		return def.name
	}
	return "unknown"
}
