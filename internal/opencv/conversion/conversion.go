package conversion

import (
	"fmt"
	"image"

	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ToBGR normalizes 1-, 3- and 4-channel 8-bit images to a fresh 3-channel BGR
// Mat. The input is never modified.
func ToBGR(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateColor(src, "BGR normalization"); err != nil {
		return nil, err
	}

	if src.Channels() == 3 {
		return src.Clone()
	}

	var code gocv.ColorConversionCode
	switch src.Channels() {
	case 1:
		code = gocv.ColorGrayToBGR
	case 4:
		code = gocv.ColorBGRAToBGR
	default:
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}

	dst := gocv.NewMat()
	if err := gocv.CvtColor(src.GetMat(), &dst, code); err != nil {
		dst.Close()
		return nil, fmt.Errorf("BGR normalization failed: %w", err)
	}

	return safe.Wrap(dst, "bgr")
}

// ImageToMat converts a decoded Go image into a BGR Mat.
func ImageToMat(img image.Image) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	if err := safe.ValidateDimensions(bounds.Dx(), bounds.Dy(), "image to Mat conversion"); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image to Mat conversion failed: %w", err)
	}

	return safe.Wrap(mat, "decoded")
}
