package segmentation

import (
	"fmt"

	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// labGreenMagenta is the index of the a* channel in an OpenCV Lab image.
const labGreenMagenta = 1

// Segment separates leaf from background on the green-magenta axis of Lab.
// Otsu picks the split and the darker (greener) side becomes foreground.
// An image without contrast on that axis yields an all-background mask.
func Segment(img *safe.Mat) (*Mask, error) {
	if err := safe.ValidateColor(img, "Segment"); err != nil {
		return nil, err
	}

	bgr, err := conversion.ToBGR(img)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	lab, err := conversion.ConvertBGRToLab(bgr)
	if err != nil {
		return nil, err
	}
	defer lab.Close()

	a, err := conversion.ExtractChannel(lab, labGreenMagenta)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if minVal, maxVal, _, _ := gocv.MinMaxLoc(a.GetMat()); minVal == maxVal {
		empty, err := safe.NewMatFromScalar(a.Rows(), a.Cols(), gocv.MatTypeCV8UC1, gocv.NewScalar(0, 0, 0, 0))
		if err != nil {
			return nil, err
		}
		defer empty.Close()
		return NewMask(empty)
	}

	binary := gocv.NewMat()
	gocv.Threshold(a.GetMat(), &binary, 0, float32(Foreground), gocv.ThresholdBinaryInv+gocv.ThresholdOtsu)

	wrapped, err := safe.Wrap(binary, "segment")
	if err != nil {
		return nil, fmt.Errorf("otsu threshold failed: %w", err)
	}
	defer wrapped.Close()

	return NewMask(wrapped)
}
