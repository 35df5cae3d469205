package pipeline

import (
	"context"

	"leaffliction/internal/opencv/safe"
)

// ImageData is a decoded image and where it came from. The Mat is owned by
// the ImageData; Close releases it.
type ImageData struct {
	Mat      *safe.Mat
	Path     string
	Width    int
	Height   int
	Channels int
	Format   string
}

func (d *ImageData) Close() {
	if d == nil {
		return
	}
	d.Mat.Close()
}

// ImageLoader decodes an image file into BGR form.
type ImageLoader interface {
	LoadFromPath(path string) (*ImageData, error)
}

// ImageSaver writes an image so that it appears under path only once fully
// written.
type ImageSaver interface {
	SaveToPath(path string, img *safe.Mat) error
}

// Task is one unit of work for the Executor.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}
