package pipeline

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"leaffliction/internal/logger"
	"leaffliction/internal/models"
	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type imageLoader struct {
	logger logger.Logger
}

func NewLoader(log logger.Logger) ImageLoader {
	return &imageLoader{logger: log}
}

// LoadFromPath reads the header with the Go decoders, then decodes with
// OpenCV. Formats OpenCV was built without fall back to a full Go decode.
func (l *imageLoader) LoadFromPath(path string) (*ImageData, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, models.InvalidPath("LoadImage", path, err)
	}
	if info.IsDir() {
		return nil, models.InvalidPath("LoadImage", path, fmt.Errorf("is a directory"))
	}

	cfg, headerFormat, err := readHeader(path)
	if err != nil {
		return nil, models.UnsupportedImage("LoadImage", path, nil, err)
	}
	if err := safe.ValidateDimensions(cfg.Width, cfg.Height, "LoadImage"); err != nil {
		return nil, models.UnsupportedImage("LoadImage", path, map[string]interface{}{
			"width":  cfg.Width,
			"height": cfg.Height,
		}, err)
	}

	mat, err := l.decode(path)
	if err != nil {
		return nil, models.UnsupportedImage("LoadImage", path, nil, err)
	}

	data := &ImageData{
		Mat:      mat,
		Path:     path,
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Format:   determineActualFormat(strings.ToLower(filepath.Ext(path)), headerFormat),
	}

	l.logger.Debug("ImageLoader", "image loaded", map[string]interface{}{
		"path":     path,
		"width":    data.Width,
		"height":   data.Height,
		"channels": data.Channels,
		"format":   data.Format,
	})

	return data, nil
}

func readHeader(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()

	return image.DecodeConfig(f)
}

func (l *imageLoader) decode(path string) (*safe.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if !mat.Empty() {
		return safe.Wrap(mat, "loaded_image")
	}
	mat.Close()

	l.logger.Debug("ImageLoader", "OpenCV could not decode, using Go decoder", map[string]interface{}{
		"path": path,
	})

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return conversion.ImageToMat(img)
}

func determineActualFormat(extension, headerFormat string) string {
	switch extension {
	case ".tiff", ".tif":
		return "tiff"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".bmp":
		return "bmp"
	case ".gif":
		return "gif"
	case ".webp":
		return "webp"
	default:
		if headerFormat != "" {
			return headerFormat
		}
		return "unknown"
	}
}
