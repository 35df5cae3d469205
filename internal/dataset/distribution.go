package dataset

import (
	"image/color"
	"strings"

	"leaffliction/internal/opencv/safe"
	"leaffliction/internal/plot"
)

type ClassCount struct {
	Label   string
	RelPath string
	Count   int
	Percent float64
}

type Distribution struct {
	Root    string
	Total   int
	Classes []ClassCount
}

func Distribute(c *Collection) Distribution {
	d := Distribution{Root: c.Root, Total: c.TotalFiles()}
	for _, cl := range c.Classes {
		cc := ClassCount{Label: cl.Label, RelPath: cl.RelPath, Count: cl.Size()}
		if d.Total > 0 {
			cc.Percent = 100 * float64(cc.Count) / float64(d.Total)
		}
		d.Classes = append(d.Classes, cc)
	}
	return d
}

// Max returns the largest class size, or 0 for an empty distribution.
func (d Distribution) Max() int {
	largest := 0
	for _, c := range d.Classes {
		if c.Count > largest {
			largest = c.Count
		}
	}
	return largest
}

var (
	colorByType = map[string]color.RGBA{
		"healthy": {R: 0x4C, G: 0xAF, B: 0x50, A: 255},
		"rot":     {R: 0x4B, G: 0x36, B: 0x21, A: 255},
		"scab":    {R: 0x8B, G: 0x45, B: 0x13, A: 255},
		"rust":    {R: 0xB7, G: 0x41, B: 0x0E, A: 255},
		"Esca":    {R: 0x8B, G: 0x45, B: 0x13, A: 255},
		"spot":    {R: 0xB7, G: 0x41, B: 0x0E, A: 255},
	}
	defaultBarColor = color.RGBA{R: 0x60, G: 0x7D, B: 0x8B, A: 255}
)

// TypeColor picks a bar colour from the disease suffix of a class label,
// e.g. "Apple_rust" is coloured as rust.
func TypeColor(label string) color.RGBA {
	parts := strings.Split(label, "_")
	if c, ok := colorByType[parts[len(parts)-1]]; ok {
		return c
	}
	return defaultBarColor
}

// Render draws class counts as a bar chart with a pie chart of the shares
// beside it. An empty collection gets the bar chart alone.
func (d Distribution) Render(width, height int) (*safe.Mat, error) {
	bars := plot.BarChart{
		Title:  d.Root + " class distribution",
		YLabel: "images",
	}
	pie := plot.PieChart{Title: d.Root + " class share"}
	for _, c := range d.Classes {
		fill := TypeColor(c.Label)
		bars.Bars = append(bars.Bars, plot.Bar{Label: c.Label, Value: float64(c.Count), Color: fill})
		pie.Slices = append(pie.Slices, plot.Slice{Label: c.Label, Value: float64(c.Count), Color: fill})
	}
	if d.Total == 0 {
		return bars.Render(width, height)
	}
	return plot.RenderRow(width, height, bars, pie)
}
