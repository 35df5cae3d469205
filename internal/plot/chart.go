// Package plot renders the charts written next to analysis outputs. Charts
// are drawn with gonum/plot and returned as BGR Mats so they go through the
// same saver as every other image.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/opencv/safe"

	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	minWidth  = 100
	minHeight = 100
)

// Chart is anything that can be laid out on a canvas.
type Chart interface {
	build() (*gonumplot.Plot, error)
}

// Series is one named polyline. Values[i] is plotted at x = i.
type Series struct {
	Name   string
	Color  color.RGBA
	Values []float64
}

type LineChart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

type Bar struct {
	Label string
	Value float64
	Color color.RGBA
}

type BarChart struct {
	Title  string
	YLabel string
	Bars   []Bar
}

// Slice is one wedge of a PieChart.
type Slice struct {
	Label string
	Value float64
	Color color.RGBA
}

type PieChart struct {
	Title  string
	Slices []Slice
}

func (c LineChart) Render(width, height int) (*safe.Mat, error) {
	return RenderRow(width, height, c)
}

func (c BarChart) Render(width, height int) (*safe.Mat, error) {
	return RenderRow(width, height, c)
}

func (c PieChart) Render(width, height int) (*safe.Mat, error) {
	return RenderRow(width, height, c)
}

// RenderRow draws charts left to right on one width x height canvas.
func RenderRow(width, height int, charts ...Chart) (*safe.Mat, error) {
	if len(charts) == 0 {
		return nil, fmt.Errorf("no charts to render")
	}
	if width < minWidth*len(charts) || height < minHeight {
		return nil, fmt.Errorf("canvas too small: %dx%d for %d charts", width, height, len(charts))
	}
	if err := safe.ValidateDimensions(width, height, "plot"); err != nil {
		return nil, err
	}

	row := make([]*gonumplot.Plot, len(charts))
	for i, c := range charts {
		p, err := c.build()
		if err != nil {
			return nil, err
		}
		row[i] = p
	}

	canvas := vgimg.NewWith(vgimg.UseImage(image.NewRGBA(image.Rect(0, 0, width, height))))
	dc := draw.New(canvas)

	tiles := draw.Tiles{Rows: 1, Cols: len(row), PadX: vg.Points(12)}
	cells := gonumplot.Align([][]*gonumplot.Plot{row}, tiles, dc)
	for i, p := range row {
		p.Draw(cells[0][i])
	}

	return conversion.ImageToMat(canvas.Image())
}

func (c LineChart) build() (*gonumplot.Plot, error) {
	if len(c.Series) == 0 {
		return nil, fmt.Errorf("line chart %q has no series", c.Title)
	}

	p := gonumplot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
	p.Y.Min = 0
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, s := range c.Series {
		if len(s.Values) == 0 {
			return nil, fmt.Errorf("series %q is empty", s.Name)
		}

		xys := make(plotter.XYs, len(s.Values))
		for i, v := range s.Values {
			xys[i].X = float64(i)
			xys[i].Y = v
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		line.LineStyle.Color = s.Color
		line.LineStyle.Width = vg.Points(2)

		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	return p, nil
}

func (c BarChart) build() (*gonumplot.Plot, error) {
	if len(c.Bars) == 0 {
		return nil, fmt.Errorf("bar chart %q has no bars", c.Title)
	}

	p := gonumplot.New()
	p.Title.Text = c.Title
	p.Y.Label.Text = c.YLabel
	p.Y.Min = 0
	p.Add(plotter.NewGrid())

	labels := make([]string, len(c.Bars))
	for i, b := range c.Bars {
		bar, err := plotter.NewBarChart(plotter.Values{b.Value}, vg.Points(20))
		if err != nil {
			return nil, fmt.Errorf("bar %q: %w", b.Label, err)
		}
		bar.XMin = float64(i)
		bar.Color = b.Color
		bar.LineStyle.Width = 0

		p.Add(bar)
		labels[i] = b.Label
	}
	p.NominalX(labels...)

	return p, nil
}

func (c PieChart) build() (*gonumplot.Plot, error) {
	total := 0.0
	for _, s := range c.Slices {
		if s.Value < 0 {
			return nil, fmt.Errorf("slice %q has negative value %v", s.Label, s.Value)
		}
		total += s.Value
	}
	if len(c.Slices) == 0 || total == 0 {
		return nil, fmt.Errorf("pie chart %q has nothing to show", c.Title)
	}

	p := gonumplot.New()
	p.Title.Text = c.Title
	p.HideAxes()
	p.Legend.Top = true

	p.Add(&pie{slices: c.Slices, total: total})
	for _, s := range c.Slices {
		p.Legend.Add(fmt.Sprintf("%s (%.1f%%)", s.Label, 100*s.Value/total), swatch(s.Color))
	}

	return p, nil
}

// pie draws its slices counter-clockwise from twelve o'clock, filling the
// largest circle that fits the data area.
type pie struct {
	slices []Slice
	total  float64
}

func (w *pie) Plot(c draw.Canvas, _ *gonumplot.Plot) {
	size := c.Max.Sub(c.Min)
	radius := vg.Length(math.Min(float64(size.X), float64(size.Y))) / 2 * 0.9
	center := vg.Point{X: c.Min.X + size.X/2, Y: c.Min.Y + size.Y/2}

	start := math.Pi / 2
	for _, s := range w.slices {
		sweep := 2 * math.Pi * s.Value / w.total
		if sweep == 0 {
			continue
		}

		var path vg.Path
		path.Move(center)
		path.Arc(center, radius, start, sweep)
		path.Close()

		c.SetColor(s.Color)
		c.Fill(path)
		start += sweep
	}
}

// swatch is a legend entry filled with one colour.
type swatch color.RGBA

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(color.RGBA(s), pts)
}
