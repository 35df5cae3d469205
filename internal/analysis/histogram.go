package analysis

import (
	"fmt"
	"image/color"

	"leaffliction/internal/models"
	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/opencv/safe"
	"leaffliction/internal/plot"
	"leaffliction/internal/segmentation"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

const histogramBins = 256

type channelSpec struct {
	name  string
	space conversion.ColorSpace
	index int
	color color.RGBA
}

// histogramChannels fixes both the series order and each series colour.
var histogramChannels = []channelSpec{
	{"Blue", conversion.ColorSpaceBGR, 0, color.RGBA{B: 255, A: 255}},
	{"Blue-Yellow", conversion.ColorSpaceLab, 2, color.RGBA{R: 255, G: 255, A: 255}},
	{"Green", conversion.ColorSpaceBGR, 1, color.RGBA{G: 128, A: 255}},
	{"Green-Magenta", conversion.ColorSpaceLab, 1, color.RGBA{R: 255, B: 255, A: 255}},
	{"Hue", conversion.ColorSpaceHSV, 0, color.RGBA{R: 128, B: 128, A: 255}},
	{"Lightness", conversion.ColorSpaceLab, 0, color.RGBA{R: 128, G: 128, B: 128, A: 255}},
	{"Red", conversion.ColorSpaceBGR, 2, color.RGBA{R: 255, A: 255}},
	{"Saturation", conversion.ColorSpaceHSV, 1, color.RGBA{G: 255, B: 255, A: 255}},
	{"Value", conversion.ColorSpaceHSV, 2, color.RGBA{R: 255, G: 165, A: 255}},
}

// ChannelNames lists the histogram series in output order.
func ChannelNames() []string {
	names := make([]string, len(histogramChannels))
	for i, c := range histogramChannels {
		names[i] = c.name
	}
	return names
}

// ChannelSeries holds the share of foreground pixels, in percent, at each
// intensity 0..255.
type ChannelSeries struct {
	Name    string
	Color   color.RGBA
	Percent []float64
}

type ChannelHistogram struct {
	Series     []ChannelSeries
	Foreground int
}

func (h *ChannelHistogram) Lookup(name string) (ChannelSeries, bool) {
	for _, s := range h.Series {
		if s.Name == name {
			return s, true
		}
	}
	return ChannelSeries{}, false
}

// Render draws every series on one chart with a shared intensity axis.
func (h *ChannelHistogram) Render(width, height int) (*safe.Mat, error) {
	chart := plot.LineChart{
		Title:  "Color histogram",
		XLabel: "Pixel intensity",
		YLabel: "Proportion of pixels (%)",
	}
	for _, s := range h.Series {
		chart.Series = append(chart.Series, plot.Series{Name: s.Name, Color: s.Color, Values: s.Percent})
	}
	return chart.Render(width, height)
}

// Histogram computes the nine channel distributions over the closed
// foreground of img.
func (a *Analyzer) Histogram(img *safe.Mat, mask *segmentation.Mask) (*ChannelHistogram, error) {
	if err := checkCongruent(img, mask, "Histogram"); err != nil {
		return nil, err
	}

	closed, err := mask.MorphClose(a.params.CloseKernel)
	if err != nil {
		return nil, err
	}
	defer closed.Close()

	foreground := closed.ForegroundCount()
	if foreground == 0 {
		return nil, models.DegenerateMask("Histogram", "", map[string]interface{}{
			"width":  mask.Cols(),
			"height": mask.Rows(),
		})
	}

	masked, err := applyMask(img, closed, a.params.FillColor)
	if err != nil {
		return nil, err
	}
	defer masked.Close()

	spaces := make(map[conversion.ColorSpace]*safe.Mat, 3)
	defer func() {
		for _, m := range spaces {
			m.Close()
		}
	}()

	result := &ChannelHistogram{Foreground: foreground}
	for _, ch := range histogramChannels {
		src, ok := spaces[ch.space]
		if !ok {
			src, err = conversion.ConvertColorSpace(masked, ch.space)
			if err != nil {
				return nil, fmt.Errorf("histogram %s: %w", ch.name, err)
			}
			spaces[ch.space] = src
		}

		percent, err := maskedPercentages(src, ch.index, closed)
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", ch.name, err)
		}

		result.Series = append(result.Series, ChannelSeries{Name: ch.name, Color: ch.color, Percent: percent})
	}

	return result, nil
}

func maskedPercentages(src *safe.Mat, channel int, mask *segmentation.Mask) ([]float64, error) {
	hist := gocv.NewMat()
	defer hist.Close()

	err := gocv.CalcHist([]gocv.Mat{src.GetMat()}, []int{channel}, mask.Mat().GetMat(), &hist,
		[]int{histogramBins}, []float64{0, histogramBins}, false)
	if err != nil {
		return nil, err
	}

	values := make([]float64, histogramBins)
	for i := range values {
		values[i] = float64(hist.GetFloatAt(i, 0))
	}

	total := floats.Sum(values)
	if total == 0 {
		return nil, models.DegenerateMask("Histogram", "", map[string]interface{}{"channel": channel})
	}
	floats.Scale(100/total, values)

	return values, nil
}
