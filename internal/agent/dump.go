package agent

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/gamma-omg/market-indicators/internal/indicator"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
)

type csvWindowDump struct {
	w *csv.Writer
}

func newCsvWindowDump(w io.Writer) *csvWindowDump {
	return &csvWindowDump{csv.NewWriter(w)}
}

// column is one value field of one indicator. Scalar indicators produce a
// single column named after the indicator, structured ones id.field.
type column struct {
	id    string
	field int
}

// Dump writes one row per bar. Warmup points are left empty.
func (d *csvWindowDump) Dump(resp *pipeline.WindowResponse) error {
	ids := make([]string, 0, len(resp.Indicators))
	for id := range resp.Indicators {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	header := []string{"timestamp"}
	var cols []column
	for _, id := range ids {
		names := fieldNames(resp.Indicators[id])
		for i, name := range names {
			if name == "" {
				header = append(header, id)
			} else {
				header = append(header, id+"."+name)
			}
			cols = append(cols, column{id: id, field: i})
		}
	}

	if err := d.w.Write(header); err != nil {
		return fmt.Errorf("failed to write window dump csv header: %w", err)
	}

	for i, ts := range resp.Timestamps {
		row := make([]string, 0, len(cols)+1)
		row = append(row, strconv.FormatInt(ts, 10))
		for _, c := range cols {
			v := resp.Indicators[c.id][i]
			if v == nil {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v.Fields()[c.field].Value, 'f', -1, 64))
		}

		if err := d.w.Write(row); err != nil {
			return fmt.Errorf("failed to dump bar %d: %w", ts, err)
		}
	}

	d.w.Flush()
	return d.w.Error()
}

// fieldNames takes the layout from the first non-nil value. An indicator
// without any values still gets one column.
func fieldNames(values []indicator.Value) []string {
	for _, v := range values {
		if v == nil {
			continue
		}

		fields := v.Fields()
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name
		}
		return names
	}

	return []string{""}
}

func dumpWindow(path string, resp *pipeline.WindowResponse) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create window dump: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close window dump: %w", cerr))
		}
	}()

	return newCsvWindowDump(f).Dump(resp)
}
