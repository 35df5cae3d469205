package conversion

import (
	"fmt"

	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ColorSpace identifies the representation a channel is read from.
type ColorSpace int

const (
	ColorSpaceBGR ColorSpace = iota
	ColorSpaceLab
	ColorSpaceHSV
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceBGR:
		return "BGR"
	case ColorSpaceLab:
		return "Lab"
	case ColorSpaceHSV:
		return "HSV"
	default:
		return "unknown"
	}
}

// ConvertColorSpace converts a BGR image into target. BGR returns a clone.
func ConvertColorSpace(src *safe.Mat, target ColorSpace) (*safe.Mat, error) {
	switch target {
	case ColorSpaceBGR:
		return ToBGR(src)
	case ColorSpaceLab:
		return ConvertBGRToLab(src)
	case ColorSpaceHSV:
		return ConvertBGRToHSV(src)
	default:
		return nil, fmt.Errorf("unsupported color space %v", target)
	}
}

// ConvertBGRToHSV converts BGR image to HSV color space (8-bit hue in 0..179)
func ConvertBGRToHSV(src *safe.Mat) (*safe.Mat, error) {
	return convertBGR(src, gocv.ColorBGRToHSV, "BGR to HSV")
}

// ConvertBGRToLab converts BGR image to 8-bit Lab color space
func ConvertBGRToLab(src *safe.Mat) (*safe.Mat, error) {
	return convertBGR(src, gocv.ColorBGRToLab, "BGR to Lab")
}

// ConvertBGRToGray converts BGR image to single-channel luminance
func ConvertBGRToGray(src *safe.Mat) (*safe.Mat, error) {
	return convertBGR(src, gocv.ColorBGRToGray, "BGR to gray")
}

func convertBGR(src *safe.Mat, code gocv.ColorConversionCode, operation string) (*safe.Mat, error) {
	if err := validateBGRMat(src, operation); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	if err := gocv.CvtColor(src.GetMat(), &dst, code); err != nil {
		dst.Close()
		return nil, fmt.Errorf("%s conversion failed: %w", operation, err)
	}

	return safe.Wrap(dst, operation)
}

// ExtractChannel copies channel index of src into a new single-channel Mat.
func ExtractChannel(src *safe.Mat, index int) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "channel extraction"); err != nil {
		return nil, err
	}

	if index < 0 || index >= src.Channels() {
		return nil, fmt.Errorf("channel %d out of bounds [0, %d)", index, src.Channels())
	}

	if src.Channels() == 1 {
		return src.Clone()
	}

	channels := gocv.Split(src.GetMat())
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	return safe.NewMatFromMat(channels[index])
}

func validateBGRMat(mat *safe.Mat, operation string) error {
	if err := safe.ValidateMatForOperation(mat, operation); err != nil {
		return err
	}
	if mat.Channels() != 3 {
		return fmt.Errorf("%s requires 3 channels, got %d", operation, mat.Channels())
	}
	return nil
}
