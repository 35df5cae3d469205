package augment

import (
	"errors"
	"image"
	"testing"

	"leaffliction/internal/models"
	"leaffliction/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func gradientImage(t *testing.T, rows, cols int) *safe.Mat {
	t.Helper()

	m, err := safe.NewMat(rows, cols, gocv.MatTypeCV8UC3)
	require.NoError(t, err)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			require.NoError(t, m.SetUCharAt3(y, x, 0, uint8(x*7)))
			require.NoError(t, m.SetUCharAt3(y, x, 1, uint8(y*11)))
			require.NoError(t, m.SetUCharAt3(y, x, 2, uint8(x+y)))
		}
	}
	return m
}

func solidImage(t *testing.T, rows, cols int, v float64) *safe.Mat {
	t.Helper()

	m, err := safe.NewMatFromScalar(rows, cols, gocv.MatTypeCV8UC3, gocv.NewScalar(v, v, v, 0))
	require.NoError(t, err)
	return m
}

func TestRegistryOrder(t *testing.T) {
	r, err := NewRegistry(DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, []string{"Flip", "Rotate", "Blur", "Contrast", "Crop", "Deform", "Wave"}, r.Names())
	assert.Equal(t, 7, r.Len())
	assert.Equal(t, "Flip", r.At(7).Name)
	assert.Equal(t, "Wave", r.At(-1).Name)

	op, err := r.Lookup("Crop")
	require.NoError(t, err)
	assert.Equal(t, "Crop", op.Name)

	_, err = r.Lookup("Sharpen")
	assert.Error(t, err)
}

func TestRegistryRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.WaveGrid = 0

	_, err := NewRegistry(p)
	assert.Error(t, err)
}

func TestFlipIsInvolution(t *testing.T) {
	src := gradientImage(t, 8, 10)
	defer src.Close()

	once, err := Flip(src)
	require.NoError(t, err)
	defer once.Close()

	twice, err := Flip(once)
	require.NoError(t, err)
	defer twice.Close()

	assert.NotEqual(t, src.Bytes(), once.Bytes())
	assert.Equal(t, src.Bytes(), twice.Bytes())

	left, _ := src.GetUCharAt3(0, 0, 0)
	mirrored, _ := once.GetUCharAt3(0, 9, 0)
	assert.Equal(t, left, mirrored)
}

func TestRotateExpandsCanvas(t *testing.T) {
	src := solidImage(t, 50, 100, 0)
	defer src.Close()

	dst, err := Rotate(src, DefaultParams())
	require.NoError(t, err)
	defer dst.Close()

	assert.Greater(t, dst.Cols(), 100)
	assert.Greater(t, dst.Rows(), 50)

	corner, err := dst.GetUCharAt3(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), corner)

	centre, err := dst.GetUCharAt3(dst.Rows()/2, dst.Cols()/2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), centre)
}

func TestSizePreservingOperators(t *testing.T) {
	params := DefaultParams()
	ops := map[string]Func{
		"Flip":     Flip,
		"Blur":     func(m *safe.Mat) (*safe.Mat, error) { return Blur(m, params) },
		"Contrast": func(m *safe.Mat) (*safe.Mat, error) { return Contrast(m, params) },
		"Crop":     func(m *safe.Mat) (*safe.Mat, error) { return Crop(m, params) },
		"Deform":   func(m *safe.Mat) (*safe.Mat, error) { return Deform(m, params) },
		"Wave":     func(m *safe.Mat) (*safe.Mat, error) { return Wave(m, params) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			src := gradientImage(t, 37, 53)
			defer src.Close()
			before := src.Bytes()

			dst, err := op(src)
			require.NoError(t, err)
			defer dst.Close()

			assert.Equal(t, 53, dst.Cols())
			assert.Equal(t, 37, dst.Rows())
			assert.Equal(t, before, src.Bytes(), "input must not be modified")
		})
	}
}

func TestOperatorsRejectInvalidInput(t *testing.T) {
	r, err := NewRegistry(DefaultParams())
	require.NoError(t, err)

	closed := solidImage(t, 4, 4, 0)
	closed.Close()

	for _, op := range r.Operators() {
		_, err := op.Apply(nil)
		assert.True(t, errors.Is(err, models.ErrUnsupportedImage), op.Name)

		_, err = op.Apply(closed)
		assert.True(t, errors.Is(err, models.ErrUnsupportedImage), op.Name)
	}
}

func TestCropKeepsWideImages(t *testing.T) {
	src := solidImage(t, 30, 100, 77)
	defer src.Close()

	out, err := Crop(src, DefaultParams())
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 30, out.Rows())
	assert.Equal(t, 100, out.Cols())
	v, err := out.GetUCharAt3(15, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(77), v)

	tiny := solidImage(t, 2, 3, 5)
	defer tiny.Close()
	p := DefaultParams()
	p.CropFraction = 0.49
	small, err := Crop(tiny, p)
	require.NoError(t, err)
	defer small.Close()
	assert.Equal(t, 2, small.Rows())
}

func TestCropCapsVerticalBorderAtCentre(t *testing.T) {
	// 15px border on a 20-row image: only rows 9 and 10 may survive.
	src := gradientImage(t, 20, 100)
	defer src.Close()

	out, err := Crop(src, DefaultParams())
	require.NoError(t, err)
	defer out.Close()

	for _, y := range []int{0, 19} {
		v, err := out.GetUCharAt3(y, 50, 1)
		require.NoError(t, err)
		assert.InDelta(t, 104, int(v), 15, "row %d", y)
	}
}

func TestContrastStretchesRange(t *testing.T) {
	src, err := safe.NewMat(10, 51, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer src.Close()

	for y := 0; y < 10; y++ {
		for x := 0; x < 51; x++ {
			for c := 0; c < 3; c++ {
				require.NoError(t, src.SetUCharAt3(y, x, c, uint8(100+x)))
			}
		}
	}

	dst, err := Contrast(src, DefaultParams())
	require.NoError(t, err)
	defer dst.Close()

	lo, _ := dst.GetUCharAt3(0, 0, 0)
	hi, _ := dst.GetUCharAt3(0, 50, 0)
	assert.Equal(t, uint8(0), lo)
	assert.Equal(t, uint8(255), hi)
}

func TestAutocontrastUniformIsIdentity(t *testing.T) {
	var hist [256]float64
	hist[42] = 1000

	table := autocontrastTable(hist, 5)
	for i, v := range table {
		assert.Equal(t, uint8(i), v)
	}
}

func TestWaveMeshLayout(t *testing.T) {
	cells := WaveMesh(100, 100, DefaultParams())
	require.Len(t, cells, 25)

	assert.Equal(t, image.Rect(0, 0, 20, 20), cells[0].Dst)
	assert.Equal(t, image.Pt(0, 20), cells[1].Dst.Min, "cells are ordered column by column")
	assert.Equal(t, gocv.Point2f{X: 0, Y: 0}, cells[0].Src[0])

	// (20,20): y moves first, x then uses the moved y.
	corner := cells[6].Src[0]
	assert.InDelta(t, 27.4221, corner.Y, 1e-3)
	assert.InDelta(t, 30.0831, corner.X, 1e-3)
	assert.Equal(t, corner, cells[0].Src[2], "shared corners match")
	assert.Equal(t, corner, cells[1].Src[3])
	assert.Equal(t, corner, cells[5].Src[1])

	for _, c := range cells {
		assert.Len(t, c.Src, 4)
	}
}

func TestDeformFillsUncoveredArea(t *testing.T) {
	src := solidImage(t, 100, 100, 0)
	defer src.Close()

	dst, err := Deform(src, DefaultParams())
	require.NoError(t, err)
	defer dst.Close()

	corner, _ := dst.GetUCharAt3(0, 0, 0)
	centre, _ := dst.GetUCharAt3(50, 50, 0)
	assert.Equal(t, uint8(255), corner)
	assert.Equal(t, uint8(0), centre)

	mesh := DeformMesh(100, 100, DefaultParams())
	require.Len(t, mesh, 1)
	assert.Equal(t, gocv.Point2f{X: 120, Y: 190}, mesh[0].Src[2])
}
