package segmentation

import (
	"fmt"
	"math"

	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/opencv/safe"

	"gonum.org/v1/gonum/stat"
)

// edgeThreshold is the Sobel magnitude above which a pixel counts as an edge.
const edgeThreshold = 30.0

// Quality scores how well a mask fits the image it was computed from.
type Quality struct {
	ForegroundRatio  float64 // fraction of pixels marked foreground
	RegionUniformity float64 // 1 / (1 + weighted in-region luminance variance / 255)
	BoundaryAccuracy float64 // share of image edges that lie on a mask boundary
}

func (q Quality) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"foreground_ratio":  q.ForegroundRatio,
		"region_uniformity": q.RegionUniformity,
		"boundary_accuracy": q.BoundaryAccuracy,
	}
}

// Overlap compares two masks over the same frame.
type Overlap struct {
	IoU  float64
	Dice float64
}

// Agreement returns IoU and Dice of the foreground of a and b. Two empty
// masks agree perfectly.
func Agreement(a, b *Mask) (Overlap, error) {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return Overlap{}, fmt.Errorf("mask dimensions must match: %dx%d vs %dx%d",
			a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}

	var both, onlyA, onlyB int
	for i := range a.data {
		fa, fb := a.data[i] != Background, b.data[i] != Background
		switch {
		case fa && fb:
			both++
		case fa:
			onlyA++
		case fb:
			onlyB++
		}
	}

	union := both + onlyA + onlyB
	if union == 0 {
		return Overlap{IoU: 1, Dice: 1}, nil
	}
	return Overlap{
		IoU:  float64(both) / float64(union),
		Dice: 2 * float64(both) / float64(2*both+onlyA+onlyB),
	}, nil
}

// Assess computes the Quality of mask against img.
func Assess(img *safe.Mat, mask *Mask) (Quality, error) {
	if err := safe.ValidateColor(img, "Assess"); err != nil {
		return Quality{}, err
	}
	if img.Rows() != mask.Rows() || img.Cols() != mask.Cols() {
		return Quality{}, fmt.Errorf("mask %dx%d does not match image %dx%d",
			mask.Cols(), mask.Rows(), img.Cols(), img.Rows())
	}

	bgr, err := conversion.ToBGR(img)
	if err != nil {
		return Quality{}, err
	}
	defer bgr.Close()

	gray, err := conversion.ConvertBGRToGray(bgr)
	if err != nil {
		return Quality{}, err
	}
	defer gray.Close()

	lum := gray.Bytes()
	rows, cols := mask.Rows(), mask.Cols()

	var fg, bg []float64
	for i, v := range lum {
		if mask.data[i] != Background {
			fg = append(fg, float64(v))
		} else {
			bg = append(bg, float64(v))
		}
	}

	q := Quality{ForegroundRatio: float64(len(fg)) / float64(rows*cols)}

	weighted := 0.0
	if len(fg) > 1 {
		weighted += float64(len(fg)) * stat.Variance(fg, nil)
	}
	if len(bg) > 1 {
		weighted += float64(len(bg)) * stat.Variance(bg, nil)
	}
	q.RegionUniformity = 1 / (1 + weighted/float64(rows*cols)/255)

	q.BoundaryAccuracy = boundaryAccuracy(lum, mask, rows, cols)
	return q, nil
}

func boundaryAccuracy(lum []byte, mask *Mask, rows, cols int) float64 {
	at := func(y, x int) float64 { return float64(lum[y*cols+x]) }

	var edges, kept int
	for y := 1; y < rows-1; y++ {
		for x := 1; x < cols-1; x++ {
			gx := at(y-1, x+1) + 2*at(y, x+1) + at(y+1, x+1) - at(y-1, x-1) - 2*at(y, x-1) - at(y+1, x-1)
			gy := at(y+1, x-1) + 2*at(y+1, x) + at(y+1, x+1) - at(y-1, x-1) - 2*at(y-1, x) - at(y-1, x+1)
			if math.Hypot(gx, gy) <= edgeThreshold {
				continue
			}
			edges++
			if onBoundary(mask, y, x) {
				kept++
			}
		}
	}

	if edges == 0 {
		return 1
	}
	return float64(kept) / float64(edges)
}

func onBoundary(mask *Mask, y, x int) bool {
	center := mask.IsForeground(y, x)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dy != 0 || dx != 0) && mask.IsForeground(y+dy, x+dx) != center {
				return true
			}
		}
	}
	return false
}
