package augment

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Quad is a source quadrilateral in corner order upper-left, lower-left,
// lower-right, upper-right.
type Quad [4]gocv.Point2f

// MeshCell pairs a destination rectangle with the source quad sampled into it.
type MeshCell struct {
	Dst image.Rectangle
	Src Quad
}

// DeformMesh is the single full-image cell used by Deform.
func DeformMesh(w, h int, params Params) []MeshCell {
	fw, fh := float32(w), float32(h)
	d := params.Deform

	return []MeshCell{{
		Dst: image.Rect(0, 0, w, h),
		Src: Quad{
			{X: float32(d.UpperLeft[0]), Y: float32(d.UpperLeft[1])},
			{X: float32(d.LowerLeft[0]), Y: fh + float32(d.LowerLeft[1])},
			{X: fw + float32(d.LowerRight[0]), Y: fh + float32(d.LowerRight[1])},
			{X: fw + float32(d.UpperRight[0]), Y: float32(d.UpperRight[1])},
		},
	}}
}

// WaveMesh tiles the destination with WaveGrid-sized cells, column by
// column, and displaces every corner sinusoidally.
func WaveMesh(w, h int, params Params) []MeshCell {
	g := params.WaveGrid
	cells := make([]MeshCell, 0, ((w+g-1)/g)*((h+g-1)/g))

	for x := 0; x < w; x += g {
		for y := 0; y < h; y += g {
			x0, y0, x1, y1 := float64(x), float64(y), float64(x+g), float64(y+g)
			cells = append(cells, MeshCell{
				Dst: image.Rect(x, y, x+g, y+g),
				Src: Quad{
					wavePoint(x0, y0, params),
					wavePoint(x0, y1, params),
					wavePoint(x1, y1, params),
					wavePoint(x1, y0, params),
				},
			})
		}
	}
	return cells
}

// wavePoint displaces y first, then x using the displaced y.
func wavePoint(x, y float64, params Params) gocv.Point2f {
	y = y + params.WaveAmplitude*math.Sin(x/params.WavePeriod)
	x = x + params.WaveAmplitude*math.Sin(y/params.WavePeriod)
	return gocv.Point2f{X: float32(x), Y: float32(y)}
}

func Deform(src *safe.Mat, params Params) (*safe.Mat, error) {
	if err := safe.ValidateColor(src, "Deform"); err != nil {
		return nil, err
	}
	return MeshWarp(src, DeformMesh(src.Cols(), src.Rows(), params), params)
}

func Wave(src *safe.Mat, params Params) (*safe.Mat, error) {
	if err := safe.ValidateColor(src, "Wave"); err != nil {
		return nil, err
	}
	return MeshWarp(src, WaveMesh(src.Cols(), src.Rows(), params), params)
}

// MeshWarp fills each destination cell by bilinear interpolation over its
// source quad, evaluated at pixel centres. Pixels outside every cell, or
// mapped outside the source, take the fill colour.
func MeshWarp(src *safe.Mat, cells []MeshCell, params Params) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "MeshWarp"); err != nil {
		return nil, err
	}

	w, h := src.Cols(), src.Rows()
	bounds := image.Rect(0, 0, w, h)

	mapX := make([]float32, w*h)
	mapY := make([]float32, w*h)
	for i := range mapX {
		mapX[i] = -1
		mapY[i] = -1
	}

	for _, cell := range cells {
		dst := cell.Dst.Intersect(bounds)
		if dst.Empty() {
			continue
		}

		cw := float64(cell.Dst.Dx())
		ch := float64(cell.Dst.Dy())
		ul, ll, lr, ur := cell.Src[0], cell.Src[1], cell.Src[2], cell.Src[3]

		for py := dst.Min.Y; py < dst.Max.Y; py++ {
			t := (float64(py-cell.Dst.Min.Y) + 0.5) / ch
			for px := dst.Min.X; px < dst.Max.X; px++ {
				s := (float64(px-cell.Dst.Min.X) + 0.5) / cw

				a := (1 - s) * (1 - t)
				b := s * (1 - t)
				c := s * t
				d := (1 - s) * t

				sx := float64(ul.X)*a + float64(ur.X)*b + float64(lr.X)*c + float64(ll.X)*d
				sy := float64(ul.Y)*a + float64(ur.Y)*b + float64(lr.Y)*c + float64(ll.Y)*d

				// Continuous coordinates to pixel-centre indices.
				idx := py*w + px
				mapX[idx] = float32(sx - 0.5)
				mapY[idx] = float32(sy - 0.5)
			}
		}
	}

	mx, err := floatMat(mapX, h, w)
	if err != nil {
		return nil, err
	}
	defer mx.Close()

	my, err := floatMat(mapY, h, w)
	if err != nil {
		return nil, err
	}
	defer my.Close()

	dst := gocv.NewMat()
	gocv.Remap(src.GetMat(), &dst, &mx, &my, gocv.InterpolationLinear, gocv.BorderConstant, params.FillColor)

	return safe.Wrap(dst, "mesh")
}

// floatMat copies data into an owned CV_32FC1 Mat.
func floatMat(data []float32, rows, cols int) (gocv.Mat, error) {
	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	view, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV32F, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to build remap table: %w", err)
	}
	defer view.Close()

	return view.Clone(), nil
}
