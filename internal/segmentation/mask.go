package segmentation

import (
	"fmt"
	"image"

	"leaffliction/internal/models"
	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const (
	Background uint8 = 0
	Foreground uint8 = 255
)

// Mask is an immutable single-channel binary image congruent with the
// image it was derived from. Cells are Background or Foreground.
type Mask struct {
	mat  *safe.Mat
	data []byte
	rows int
	cols int
}

// NewMask copies m, which must be a non-empty CV_8UC1 Mat. Any non-zero
// cell is treated as foreground.
func NewMask(m *safe.Mat) (*Mask, error) {
	if err := safe.ValidateMatForOperation(m, "NewMask"); err != nil {
		return nil, err
	}
	if m.Type() != gocv.MatTypeCV8UC1 {
		return nil, models.UnsupportedImage("NewMask", "", map[string]interface{}{
			"channels": m.Channels(),
		}, fmt.Errorf("mask must be single-channel 8-bit"))
	}

	binary := gocv.NewMat()
	gocv.Threshold(m.GetMat(), &binary, 0, float32(Foreground), gocv.ThresholdBinary)

	wrapped, err := safe.Wrap(binary, "mask")
	if err != nil {
		return nil, fmt.Errorf("failed to binarize mask: %w", err)
	}

	return &Mask{
		mat:  wrapped,
		data: wrapped.Bytes(),
		rows: wrapped.Rows(),
		cols: wrapped.Cols(),
	}, nil
}

// NewMaskFromBytes builds a mask from row-major cells.
func NewMaskFromBytes(rows, cols int, data []byte) (*Mask, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("mask data has %d cells, want %d", len(data), rows*cols)
	}

	view, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC1, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build mask: %w", err)
	}
	defer view.Close()

	m, err := safe.NewMatFromMat(view)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	return NewMask(m)
}

func (m *Mask) Rows() int {
	return m.rows
}

func (m *Mask) Cols() int {
	return m.cols
}

// At reports the cell at row y, column x. Coordinates outside the mask read
// as Background.
func (m *Mask) At(y, x int) uint8 {
	if y < 0 || y >= m.rows || x < 0 || x >= m.cols {
		return Background
	}
	return m.data[y*m.cols+x]
}

func (m *Mask) IsForeground(y, x int) bool {
	return m.At(y, x) != Background
}

func (m *Mask) ForegroundCount() int {
	count := 0
	for _, v := range m.data {
		if v != Background {
			count++
		}
	}
	return count
}

// Bytes returns a copy of the cells in row-major order.
func (m *Mask) Bytes() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Mat exposes the backing Mat for library calls. It is owned by the mask.
func (m *Mask) Mat() *safe.Mat {
	return m.mat
}

// MorphClose fills gaps smaller than a kernelSize x kernelSize rectangle.
func (m *Mask) MorphClose(kernelSize int) (*Mask, error) {
	if kernelSize <= 0 {
		return nil, fmt.Errorf("kernel size must be positive, got %d", kernelSize)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(m.mat.GetMat(), &closed, gocv.MorphClose, kernel)

	wrapped, err := safe.NewMatFromMat(closed)
	if err != nil {
		return nil, fmt.Errorf("morphological close failed: %w", err)
	}
	defer wrapped.Close()

	return NewMask(wrapped)
}

// Close releases the backing Mat.
func (m *Mask) Close() {
	if m == nil {
		return
	}
	m.mat.Close()
}

// BoundingBox is the inclusive extent of the foreground.
type BoundingBox struct {
	YMin, YMax int
	XMin, XMax int
}

func (b BoundingBox) Width() int {
	return b.XMax - b.XMin + 1
}

func (b BoundingBox) Height() int {
	return b.YMax - b.YMin + 1
}

// Rect converts to a half-open image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax+1, b.YMax+1)
}

// BoundingBoxOf fails with DegenerateMask when the mask has no foreground.
func BoundingBoxOf(m *Mask) (BoundingBox, error) {
	box := BoundingBox{YMin: m.rows, YMax: -1, XMin: m.cols, XMax: -1}

	for y := 0; y < m.rows; y++ {
		row := m.data[y*m.cols : (y+1)*m.cols]
		for x, v := range row {
			if v == Background {
				continue
			}
			if y < box.YMin {
				box.YMin = y
			}
			if y > box.YMax {
				box.YMax = y
			}
			if x < box.XMin {
				box.XMin = x
			}
			if x > box.XMax {
				box.XMax = x
			}
		}
	}

	if box.YMax < 0 {
		return BoundingBox{}, models.DegenerateMask("BoundingBox", "", map[string]interface{}{
			"width":      m.cols,
			"height":     m.rows,
			"foreground": 0,
		})
	}
	return box, nil
}
