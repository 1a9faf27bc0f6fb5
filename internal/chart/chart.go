package chart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/gamma-omg/market-indicators/internal/indicator"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
	"github.com/pplcc/plotext"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Chart stacks plots vertically on a shared time axis.
type Chart struct {
	plots   []*plot.Plot
	heights []float64
	w       int
	h       int
}

func New(w, h int) *Chart {
	return &Chart{w: w, h: h}
}

func (c *Chart) Add(p *plot.Plot, height float64) {
	c.plots = append(c.plots, p)
	c.heights = append(c.heights, height)
}

func (c *Chart) Len() int {
	return len(c.plots)
}

// Window adds one panel per indicator of resp, with a line per value
// field. Warmup points are left out.
func (c *Chart) Window(resp *pipeline.WindowResponse) error {
	ids := make([]string, 0, len(resp.Indicators))
	for id := range resp.Indicators {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		p, err := panel(id, resp.Timestamps, resp.Indicators[id])
		if err != nil {
			return err
		}
		if p != nil {
			c.Add(p, 1)
		}
	}

	return nil
}

func panel(id string, ts []int64, values []indicator.Value) (*plot.Plot, error) {
	var names []string
	lines := map[string]plotter.XYs{}
	for i, v := range values {
		if v == nil {
			continue
		}

		x := float64(time.UnixMilli(ts[i]).Unix())
		for _, f := range v.Fields() {
			name := f.Name
			if name == "" {
				name = id
			}
			if _, ok := lines[name]; !ok {
				names = append(names, name)
			}
			lines[name] = append(lines[name], plotter.XY{X: x, Y: f.Value})
		}
	}

	if len(names) == 0 {
		return nil, nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%d bars)", id, len(values))
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02 15:04"}
	p.Legend.Top = true

	for i, name := range names {
		l, err := plotter.NewLine(lines[name])
		if err != nil {
			return nil, fmt.Errorf("failed to plot %s: %w", name, err)
		}
		l.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(name, l)
	}

	return p, nil
}

func (c *Chart) WriteTo(w io.Writer) (int64, error) {
	if len(c.plots) == 0 {
		return 0, errors.New("nothing to draw")
	}

	var axis []*plot.Axis
	for _, p := range c.plots {
		axis = append(axis, &p.X)
	}
	plotext.UniteAxisRanges(axis)

	tbl := plotext.Table{
		RowHeights: c.heights,
		ColWidths:  []float64{1},
	}

	var plots2d [][]*plot.Plot
	for _, p := range c.plots {
		plots2d = append(plots2d, []*plot.Plot{p})
	}

	h := 0.0
	for _, v := range c.heights {
		h += v * float64(c.h)
	}

	img := vgimg.New(vg.Points(float64(c.w)), vg.Points(h))
	dc := draw.New(img)

	canvases := tbl.Align(plots2d, dc)
	for i, p := range c.plots {
		p.Draw(canvases[i][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	n, err := png.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to write chart: %w", err)
	}

	return n, nil
}

func (c *Chart) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close chart file: %w", cerr))
		}
	}()

	_, err = c.WriteTo(f)
	return err
}
