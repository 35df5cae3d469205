package segmentation

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgreement(t *testing.T) {
	a := maskFromRect(t, 10, 10, image.Rect(0, 0, 4, 10))
	defer a.Close()
	b := maskFromRect(t, 10, 10, image.Rect(2, 0, 6, 10))
	defer b.Close()

	self, err := Agreement(a, a)
	require.NoError(t, err)
	assert.Equal(t, Overlap{IoU: 1, Dice: 1}, self)

	o, err := Agreement(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 20.0/60.0, o.IoU, 1e-9)
	assert.InDelta(t, 40.0/80.0, o.Dice, 1e-9)

	empty := maskFromRect(t, 10, 10, image.Rectangle{})
	defer empty.Close()
	o, err = Agreement(empty, empty)
	require.NoError(t, err)
	assert.Equal(t, 1.0, o.IoU)

	other := maskFromRect(t, 5, 10, image.Rectangle{})
	defer other.Close()
	_, err = Agreement(a, other)
	assert.Error(t, err)
}

func TestAssessSegmentedLeaf(t *testing.T) {
	img := leafImage(t, 80, 120)
	defer img.Close()

	mask, err := Segment(img)
	require.NoError(t, err)
	defer mask.Close()

	q, err := Assess(img, mask)
	require.NoError(t, err)
	assert.InDelta(t, 0.157, q.ForegroundRatio, 0.02)
	assert.Greater(t, q.RegionUniformity, 0.99)
	assert.Greater(t, q.BoundaryAccuracy, 0.9)

	blank := maskFromRect(t, 80, 120, image.Rectangle{})
	defer blank.Close()

	poor, err := Assess(img, blank)
	require.NoError(t, err)
	assert.Zero(t, poor.ForegroundRatio)
	assert.Zero(t, poor.BoundaryAccuracy)
	assert.Less(t, poor.RegionUniformity, q.RegionUniformity)
}

func TestAssessRejectsMismatchedMask(t *testing.T) {
	img := leafImage(t, 40, 40)
	defer img.Close()
	mask := maskFromRect(t, 20, 40, image.Rectangle{})
	defer mask.Close()

	_, err := Assess(img, mask)
	assert.Error(t, err)
}
