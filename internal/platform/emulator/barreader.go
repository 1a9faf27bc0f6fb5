package emulator

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gamma-omg/market-indicators/internal/market"
)

const barColumns = 7

type barFilter func(b market.RawBar) bool

type barReader struct {
	rdr    *csv.Reader
	closer io.Closer
	filter barFilter
}

func newBarReader(dataPath string) (*barReader, error) {
	return newBarReaderWithFilter(dataPath, func(b market.RawBar) bool { return true })
}

func newBarReaderWithFilter(dataPath string, filter barFilter) (*barReader, error) {
	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open bars file: %w", err)
	}

	rdr := csv.NewReader(bufio.NewReader(f))
	rdr.FieldsPerRecord = barColumns
	rdr.TrimLeadingSpace = true

	return &barReader{
		rdr:    rdr,
		closer: f,
		filter: filter,
	}, nil
}

// Read consumes the whole file. Rows are expected as
// timestamp(ms),open,high,low,close,buy_volume,sell_volume with a header
// line first. Values are passed through as fixed-point strings.
func (b *barReader) Read() ([]market.RawBar, error) {
	defer b.closer.Close()

	if _, err := b.rdr.Read(); err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var bars []market.RawBar
	prev := int64(-1)
	for {
		data, err := b.rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read bar data: %w", err)
		}

		ts, err := strconv.ParseInt(data[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse bar time: %w", err)
		}
		if ts <= prev {
			return nil, fmt.Errorf("bars are not ordered: %d after %d", ts, prev)
		}
		prev = ts

		bar := market.RawBar{
			Timestamp:  ts,
			Open:       data[1],
			High:       data[2],
			Low:        data[3],
			Close:      data[4],
			BuyVolume:  data[5],
			SellVolume: data[6],
		}
		if b.filter(bar) {
			bars = append(bars, bar)
		}
	}

	return bars, nil
}
