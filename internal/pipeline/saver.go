package pipeline

import (
	"fmt"
	"image/gif"
	"os"
	"path/filepath"
	"strings"

	"leaffliction/internal/logger"
	"leaffliction/internal/models"
	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

type imageSaver struct {
	logger logger.Logger
}

func NewSaver(log logger.Logger) ImageSaver {
	return &imageSaver{logger: log}
}

// SaveToPath encodes img by the extension of path into a hidden sibling
// file and renames it into place, so readers never see a partial image.
func (s *imageSaver) SaveToPath(path string, img *safe.Mat) error {
	if err := safe.ValidateMatForOperation(img, "SaveImage"); err != nil {
		return models.WriteFailure("SaveImage", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.WriteFailure("SaveImage", path, err)
	}

	tmp := PartialName(path)
	if err := encode(tmp, img); err != nil {
		os.Remove(tmp)
		return models.WriteFailure("SaveImage", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return models.WriteFailure("SaveImage", path, err)
	}

	s.logger.Debug("ImageSaver", "image saved", map[string]interface{}{
		"path":   path,
		"width":  img.Cols(),
		"height": img.Rows(),
	})

	return nil
}

func encode(path string, img *safe.Mat) error {
	if strings.EqualFold(filepath.Ext(path), ".gif") {
		return encodeGIF(path, img)
	}

	if !gocv.IMWrite(path, img.GetMat()) {
		return fmt.Errorf("OpenCV could not encode %s", filepath.Ext(path))
	}
	return nil
}

// encodeGIF covers OpenCV builds without a GIF encoder.
func encodeGIF(path string, img *safe.Mat) error {
	mat := img.GetMat()
	decoded, err := mat.ToImage()
	if err != nil {
		return fmt.Errorf("failed to convert Mat to image: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := gif.Encode(f, decoded, nil); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
