package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type decBar struct {
	start int64
	open  decimal.Decimal
	high  decimal.Decimal
	low   decimal.Decimal
	close decimal.Decimal
	buy   decimal.Decimal
	sell  decimal.Decimal
}

func (b *decBar) raw() RawBar {
	return RawBar{
		Open:       b.open.String(),
		High:       b.high.String(),
		Low:        b.low.String(),
		Close:      b.close.String(),
		BuyVolume:  b.buy.String(),
		SellVolume: b.sell.String(),
		Timestamp:  b.start,
	}
}

func parseDecBar(b RawBar) (d decBar, err error) {
	fields := []struct {
		name string
		src  string
		dst  *decimal.Decimal
	}{
		{"open", b.Open, &d.open},
		{"high", b.High, &d.high},
		{"low", b.Low, &d.low},
		{"close", b.Close, &d.close},
		{"buy volume", b.BuyVolume, &d.buy},
		{"sell volume", b.SellVolume, &d.sell},
	}
	for _, f := range fields {
		*f.dst, err = decimal.NewFromString(f.src)
		if err != nil {
			err = fmt.Errorf("%w: %s %q: %w", ErrBarFormat, f.name, f.src, err)
			return
		}
	}

	d.start = b.Timestamp
	return
}

// Aggregate folds ordered bars into buckets of the given interval. Buckets
// start at timestamps aligned to the interval (UTC epoch based).
func Aggregate(bars []RawBar, interval time.Duration) ([]RawBar, error) {
	step := interval.Milliseconds()
	if step <= 0 {
		return nil, fmt.Errorf("invalid aggregation interval: %s", interval)
	}

	res := make([]RawBar, 0, len(bars))

	var cur *decBar
	for i, b := range bars {
		d, err := parseDecBar(b)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate bar %d: %w", i, err)
		}

		start := b.Timestamp - b.Timestamp%step
		if cur != nil && cur.start != start {
			res = append(res, cur.raw())
			cur = nil
		}

		if cur == nil {
			d.start = start
			cur = &d
			continue
		}

		cur.close = d.close
		cur.high = decimal.Max(cur.high, d.high)
		cur.low = decimal.Min(cur.low, d.low)
		cur.buy = cur.buy.Add(d.buy)
		cur.sell = cur.sell.Add(d.sell)
	}

	if cur != nil {
		res = append(res, cur.raw())
	}

	return res, nil
}
