package conversion

import (
	"image"
	"image/color"
	"testing"

	"leaffliction/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestToBGRFromGray(t *testing.T) {
	gray, err := safe.NewMatFromScalar(5, 7, gocv.MatTypeCV8UC1, gocv.NewScalar(77, 0, 0, 0))
	require.NoError(t, err)
	defer gray.Close()

	bgr, err := ToBGR(gray)
	require.NoError(t, err)
	defer bgr.Close()

	assert.Equal(t, 3, bgr.Channels())
	assert.Equal(t, 5, bgr.Rows())
	assert.Equal(t, 7, bgr.Cols())
	for c := 0; c < 3; c++ {
		v, err := bgr.GetUCharAt3(2, 2, c)
		require.NoError(t, err)
		assert.Equal(t, uint8(77), v)
	}
}

func TestExtractChannel(t *testing.T) {
	src, err := safe.NewMatFromScalar(4, 4, gocv.MatTypeCV8UC3, gocv.NewScalar(1, 2, 3, 0))
	require.NoError(t, err)
	defer src.Close()

	ch, err := ExtractChannel(src, 2)
	require.NoError(t, err)
	defer ch.Close()

	assert.Equal(t, 1, ch.Channels())
	v, err := ch.GetUCharAt(3, 3)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), v)

	_, err = ExtractChannel(src, 3)
	assert.Error(t, err)
}

func TestLabSeparatesGreenFromMagenta(t *testing.T) {
	green, err := safe.NewMatFromScalar(2, 2, gocv.MatTypeCV8UC3, gocv.NewScalar(0, 200, 0, 0))
	require.NoError(t, err)
	defer green.Close()
	magenta, err := safe.NewMatFromScalar(2, 2, gocv.MatTypeCV8UC3, gocv.NewScalar(200, 0, 200, 0))
	require.NoError(t, err)
	defer magenta.Close()

	gLab, err := ConvertColorSpace(green, ColorSpaceLab)
	require.NoError(t, err)
	defer gLab.Close()
	mLab, err := ConvertColorSpace(magenta, ColorSpaceLab)
	require.NoError(t, err)
	defer mLab.Close()

	ga, err := gLab.GetUCharAt3(0, 0, 1)
	require.NoError(t, err)
	ma, err := mLab.GetUCharAt3(0, 0, 1)
	require.NoError(t, err)

	assert.Less(t, ga, uint8(128))
	assert.Greater(t, ma, uint8(128))
}

func TestImageToMatKeepsColorOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 250, G: 10, B: 20, A: 255})
		}
	}

	m, err := ImageToMat(img)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, 3, m.Channels())
	b, _ := m.GetUCharAt3(1, 1, 0)
	r, _ := m.GetUCharAt3(1, 1, 2)
	assert.Equal(t, uint8(20), b)
	assert.Equal(t, uint8(250), r)
}
