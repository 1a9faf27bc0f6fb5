package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrBarFormat = errors.New("malformed bar")

// ScaleDown converts a fixed-point decimal string into x / 10^decimals.
// The shift is done in decimal arithmetic so large integer strings keep
// their precision until the final float conversion.
func ScaleDown(x string, decimals int32) (float64, error) {
	d, err := decimal.NewFromString(x)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal: %w", ErrBarFormat, x, err)
	}

	return d.Shift(-decimals).InexactFloat64(), nil
}

func Decode(bars []RawBar, priceDecimals, volumeDecimals int32) (s Series, err error) {
	n := len(bars)
	s = Series{
		Open:      make([]float64, n),
		High:      make([]float64, n),
		Low:       make([]float64, n),
		Close:     make([]float64, n),
		Volume:    make([]float64, n),
		Timestamp: make([]int64, n),
	}

	for i, b := range bars {
		prices := []struct {
			name string
			src  string
			dst  *float64
		}{
			{"open", b.Open, &s.Open[i]},
			{"high", b.High, &s.High[i]},
			{"low", b.Low, &s.Low[i]},
			{"close", b.Close, &s.Close[i]},
		}
		for _, p := range prices {
			*p.dst, err = ScaleDown(p.src, priceDecimals)
			if err != nil {
				err = fmt.Errorf("failed to decode %s of bar %d: %w", p.name, i, err)
				return
			}
		}

		s.Volume[i], err = decodeVolume(b, volumeDecimals)
		if err != nil {
			err = fmt.Errorf("failed to decode volume of bar %d: %w", i, err)
			return
		}

		s.Timestamp[i] = b.Timestamp
	}

	return
}

func decodeVolume(b RawBar, decimals int32) (float64, error) {
	buy, err := decimal.NewFromString(b.BuyVolume)
	if err != nil {
		return 0, fmt.Errorf("%w: buy volume %q: %w", ErrBarFormat, b.BuyVolume, err)
	}

	sell, err := decimal.NewFromString(b.SellVolume)
	if err != nil {
		return 0, fmt.Errorf("%w: sell volume %q: %w", ErrBarFormat, b.SellVolume, err)
	}

	return buy.Add(sell).Shift(-decimals).InexactFloat64(), nil
}
