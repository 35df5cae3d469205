package analysis

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/opencv/safe"
	"leaffliction/internal/segmentation"

	"gonum.org/v1/gonum/stat"
)

var (
	topColor    = color.RGBA{R: 255, A: 255}
	bottomColor = color.RGBA{B: 255, A: 255}
	medialColor = color.RGBA{G: 255, A: 255}
)

// LandmarkSet traces the upper edge, lower edge and medial line of the
// foreground along the x axis. All three slices have the same length and
// are ordered left to right.
type LandmarkSet struct {
	Top    []image.Point
	Bottom []image.Point
	Center []image.Point
}

func (l LandmarkSet) Len() int {
	return len(l.Top)
}

type LandmarkResult struct {
	Landmarks LandmarkSet
	Annotated *safe.Mat
}

func (r *LandmarkResult) Close() {
	if r == nil {
		return
	}
	r.Annotated.Close()
}

// ExtractLandmarks splits the bounding box width into LandmarkWindows
// vertical windows and, for each window holding foreground, averages the
// per-column top and bottom foreground rows.
func (a *Analyzer) ExtractLandmarks(mask *segmentation.Mask) (LandmarkSet, error) {
	box, err := segmentation.BoundingBoxOf(mask)
	if err != nil {
		return LandmarkSet{}, err
	}

	width := box.Width()
	windows := a.params.LandmarkWindows
	if windows > width {
		windows = width
	}

	var set LandmarkSet
	for w := 0; w < windows; w++ {
		x0 := box.XMin + w*width/windows
		x1 := box.XMin + (w+1)*width/windows

		var tops, bottoms []float64
		for x := x0; x < x1; x++ {
			top, bottom, ok := columnExtent(mask, x, box)
			if !ok {
				continue
			}
			tops = append(tops, float64(top))
			bottoms = append(bottoms, float64(bottom))
		}
		if len(tops) == 0 {
			continue
		}

		cx := (x0 + x1 - 1) / 2
		top := stat.Mean(tops, nil)
		bottom := stat.Mean(bottoms, nil)

		set.Top = append(set.Top, image.Pt(cx, int(math.Round(top))))
		set.Bottom = append(set.Bottom, image.Pt(cx, int(math.Round(bottom))))
		set.Center = append(set.Center, image.Pt(cx, int(math.Round((top+bottom)/2))))
	}

	return set, nil
}

func columnExtent(mask *segmentation.Mask, x int, box segmentation.BoundingBox) (int, int, bool) {
	top, bottom := -1, -1
	for y := box.YMin; y <= box.YMax; y++ {
		if mask.IsForeground(y, x) {
			if top < 0 {
				top = y
			}
			bottom = y
		}
	}
	return top, bottom, top >= 0
}

// Landmarks extracts the landmark set and draws it on a copy of img:
// top points red, bottom points blue, medial points green.
func (a *Analyzer) Landmarks(img *safe.Mat, mask *segmentation.Mask) (*LandmarkResult, error) {
	if err := checkCongruent(img, mask, "Landmarks"); err != nil {
		return nil, err
	}

	set, err := a.ExtractLandmarks(mask)
	if err != nil {
		return nil, err
	}

	out, err := conversion.ToBGR(img)
	if err != nil {
		return nil, err
	}

	r := a.params.LandmarkRadius
	for _, layer := range []struct {
		points []image.Point
		color  color.RGBA
	}{
		{set.Top, topColor},
		{set.Bottom, bottomColor},
		{set.Center, medialColor},
	} {
		for _, p := range layer.points {
			if err := drawDisk(out, p, r, layer.color); err != nil {
				out.Close()
				return nil, fmt.Errorf("draw landmark at %v: %w", p, err)
			}
		}
	}

	return &LandmarkResult{Landmarks: set, Annotated: out}, nil
}

// drawDisk sets every pixel within radius r of p, skipping pixels outside
// the image.
func drawDisk(img *safe.Mat, p image.Point, r int, c color.RGBA) error {
	if err := safe.ValidateMatForOperation(img, "drawDisk"); err != nil {
		return err
	}
	rows, cols := img.Rows(), img.Cols()
	bgr := [3]uint8{c.B, c.G, c.R}

	for i := -r; i <= r; i++ {
		for j := -r; j <= r; j++ {
			x, y := p.X+i, p.Y+j
			if i*i+j*j > r*r || x < 0 || x >= cols || y < 0 || y >= rows {
				continue
			}
			for ch, v := range bgr {
				if err := img.SetUCharAt3(y, x, ch, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
