package safe

import (
	"errors"
	"testing"

	"leaffliction/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewMatRejectsZeroSize(t *testing.T) {
	_, err := NewMat(0, 10, gocv.MatTypeCV8UC3)
	assert.Error(t, err)

	_, err = NewMatFromScalar(10, -1, gocv.MatTypeCV8UC1, gocv.NewScalar(0, 0, 0, 0))
	assert.Error(t, err)
}

func TestPixelAccessAndBounds(t *testing.T) {
	m, err := NewMatFromScalar(4, 6, gocv.MatTypeCV8UC3, gocv.NewScalar(10, 20, 30, 0))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 4, m.Rows())
	assert.Equal(t, 6, m.Cols())
	assert.Equal(t, 3, m.Channels())

	v, err := m.GetUCharAt3(2, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(30), v)

	require.NoError(t, m.SetUCharAt3(2, 3, 0, 99))
	v, err = m.GetUCharAt3(2, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(99), v)

	_, err = m.GetUCharAt3(4, 0, 0)
	assert.Error(t, err)
	_, err = m.GetUCharAt3(0, 0, 3)
	assert.Error(t, err)

	assert.Len(t, m.Bytes(), 4*6*3)
}

func TestCloneIsIndependent(t *testing.T) {
	m, err := NewMatFromScalar(3, 3, gocv.MatTypeCV8UC1, gocv.NewScalar(5, 0, 0, 0))
	require.NoError(t, err)
	defer m.Close()

	c, err := m.Clone()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetUCharAt(1, 1, 200))
	v, err := m.GetUCharAt(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), v)
	assert.NotEqual(t, m.ID(), c.ID())
}

func TestCloseInvalidates(t *testing.T) {
	m, err := NewMat(2, 2, gocv.MatTypeCV8UC1)
	require.NoError(t, err)

	m.Close()
	m.Close()

	assert.False(t, m.IsValid())
	assert.True(t, m.Empty())
	assert.Zero(t, m.Rows())

	_, err = m.Clone()
	assert.Error(t, err)
}

func TestValidateMatForOperation(t *testing.T) {
	err := ValidateMatForOperation(nil, "flip")
	assert.True(t, errors.Is(err, models.ErrUnsupportedImage))

	m, err := NewMat(2, 2, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	assert.NoError(t, ValidateMatForOperation(m, "flip"))
	assert.NoError(t, ValidateColor(m, "flip"))

	m.Close()
	err = ValidateMatForOperation(m, "flip")
	assert.True(t, errors.Is(err, models.ErrUnsupportedImage))
}

func TestValidateColorRejectsFloatImages(t *testing.T) {
	m, err := NewMat(2, 2, gocv.MatTypeCV32FC1)
	require.NoError(t, err)
	defer m.Close()

	err = ValidateColor(m, "contrast")
	assert.True(t, errors.Is(err, models.ErrUnsupportedImage))
}

func TestValidateDimensions(t *testing.T) {
	assert.NoError(t, ValidateDimensions(640, 480, "rotate"))
	assert.Error(t, ValidateDimensions(0, 480, "rotate"))
	assert.Error(t, ValidateDimensions(40000, 10, "rotate"))
}
