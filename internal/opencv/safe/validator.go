package safe

import (
	"fmt"

	"leaffliction/internal/models"

	"gocv.io/x/gocv"
)

// ValidateMatForOperation rejects nil, closed, and zero-size images with an
// UnsupportedImage error naming the operation.
func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return models.UnsupportedImage(operation, "", nil, fmt.Errorf("Mat is nil"))
	}

	if !mat.IsValid() {
		return models.UnsupportedImage(operation, "", map[string]interface{}{
			"mat": mat.Tag(),
		}, fmt.Errorf("Mat is closed"))
	}

	if mat.Empty() || mat.Rows() <= 0 || mat.Cols() <= 0 {
		return models.UnsupportedImage(operation, "", map[string]interface{}{
			"width":  mat.Cols(),
			"height": mat.Rows(),
		}, fmt.Errorf("zero-size image"))
	}

	return nil
}

// ValidateColor additionally requires a 1-, 3- or 4-channel 8-bit image.
func ValidateColor(mat *Mat, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	switch mat.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
		return nil
	default:
		return models.UnsupportedImage(operation, "", map[string]interface{}{
			"channels": mat.Channels(),
			"type":     int(mat.Type()),
		}, fmt.Errorf("only 8-bit 1, 3 or 4 channel images are supported"))
	}
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return models.UnsupportedImage(operation, "", map[string]interface{}{
			"width":  width,
			"height": height,
		}, fmt.Errorf("invalid dimensions"))
	}

	if width > 32768 || height > 32768 {
		return models.UnsupportedImage(operation, "", map[string]interface{}{
			"width":  width,
			"height": height,
		}, fmt.Errorf("dimensions exceed maximum size"))
	}

	return nil
}
