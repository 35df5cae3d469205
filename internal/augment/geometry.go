package augment

import (
	"fmt"
	"image"
	"math"

	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Flip mirrors the image across its vertical axis.
func Flip(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateColor(src, "Flip"); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	gocv.Flip(src.GetMat(), &dst, 1)

	return safe.Wrap(dst, "flip")
}

// Rotate turns the image by params.RotateAngle degrees (negative is
// clockwise) and grows the canvas so no source pixel is lost. Uncovered
// corners are painted with the fill colour.
func Rotate(src *safe.Mat, params Params) (*safe.Mat, error) {
	if err := safe.ValidateColor(src, "Rotate"); err != nil {
		return nil, err
	}

	w, h := src.Cols(), src.Rows()
	rad := params.RotateAngle * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	newW := int(math.Ceil(float64(w)*cos + float64(h)*sin - 1e-9))
	newH := int(math.Ceil(float64(w)*sin + float64(h)*cos - 1e-9))

	if err := safe.ValidateDimensions(newW, newH, "Rotate"); err != nil {
		return nil, err
	}

	center := image.Point{X: w / 2, Y: h / 2}
	m := gocv.GetRotationMatrix2D(center, params.RotateAngle, 1.0)
	defer m.Close()

	// Shift so the old centre lands on the centre of the expanded canvas.
	m.SetDoubleAt(0, 2, m.GetDoubleAt(0, 2)+float64(newW)/2-float64(center.X))
	m.SetDoubleAt(1, 2, m.GetDoubleAt(1, 2)+float64(newH)/2-float64(center.Y))

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src.GetMat(), &dst, m, image.Point{X: newW, Y: newH},
		gocv.InterpolationLinear, gocv.BorderConstant, params.FillColor)

	return safe.Wrap(dst, "rotate")
}

// Crop removes a border of round(CropFraction*W) pixels from every side and
// scales what remains back to the original size. On each axis the border is
// capped at (size-1)/2 so at least one row and column always remain.
func Crop(src *safe.Mat, params Params) (*safe.Mat, error) {
	if err := safe.ValidateColor(src, "Crop"); err != nil {
		return nil, err
	}

	w, h := src.Cols(), src.Rows()
	border := int(math.Round(params.CropFraction * float64(w)))
	bx := min(border, (w-1)/2)
	by := min(border, (h-1)/2)

	rect := image.Rectangle{Min: image.Pt(bx, by), Max: image.Pt(w-bx, h-by)}

	srcMat := src.GetMat()
	region := srcMat.Region(rect)
	defer region.Close()

	dst := gocv.NewMat()
	if err := gocv.Resize(region, &dst, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationCubic); err != nil {
		dst.Close()
		return nil, fmt.Errorf("crop resize failed: %w", err)
	}

	return safe.Wrap(dst, "crop")
}
