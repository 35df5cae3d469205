package augment

import (
	"fmt"
	"image"
	"math"

	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Blur loses detail by resampling: the image is shrunk by BlurScale and
// stretched back to its original size.
func Blur(src *safe.Mat, params Params) (*safe.Mat, error) {
	if err := safe.ValidateColor(src, "Blur"); err != nil {
		return nil, err
	}

	w, h := src.Cols(), src.Rows()
	smallW := maxInt(1, int(math.Round(float64(w)*params.BlurScale)))
	smallH := maxInt(1, int(math.Round(float64(h)*params.BlurScale)))

	small := gocv.NewMat()
	defer small.Close()
	if err := gocv.Resize(src.GetMat(), &small, image.Point{X: smallW, Y: smallH}, 0, 0, gocv.InterpolationCubic); err != nil {
		return nil, fmt.Errorf("blur downscale failed: %w", err)
	}

	dst := gocv.NewMat()
	if err := gocv.Resize(small, &dst, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationCubic); err != nil {
		dst.Close()
		return nil, fmt.Errorf("blur upscale failed: %w", err)
	}

	return safe.Wrap(dst, "blur")
}

// Contrast stretches each BGR channel so that, after discarding
// ContrastCutoff percent of pixels from both tails, the remaining range
// covers 0..255.
func Contrast(src *safe.Mat, params Params) (*safe.Mat, error) {
	if err := safe.ValidateColor(src, "Contrast"); err != nil {
		return nil, err
	}

	bgr, err := conversion.ToBGR(src)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	lut, err := safe.NewMat(1, 256, gocv.MatTypeCV8UC3)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup table: %w", err)
	}
	defer lut.Close()

	for c := 0; c < 3; c++ {
		hist, err := channelHistogram(bgr, c)
		if err != nil {
			return nil, err
		}

		table := autocontrastTable(hist, params.ContrastCutoff)
		for i, v := range table {
			if err := lut.SetUCharAt3(0, i, c, v); err != nil {
				return nil, err
			}
		}
	}

	dst := gocv.NewMat()
	gocv.LUT(bgr.GetMat(), lut.GetMat(), &dst)

	return safe.Wrap(dst, "contrast")
}

func channelHistogram(src *safe.Mat, channel int) ([256]float64, error) {
	var out [256]float64

	hist := gocv.NewMat()
	defer hist.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	err := gocv.CalcHist([]gocv.Mat{src.GetMat()}, []int{channel}, mask, &hist,
		[]int{256}, []float64{0, 256}, false)
	if err != nil {
		return out, fmt.Errorf("histogram failed for channel %d: %w", channel, err)
	}

	for i := 0; i < 256; i++ {
		out[i] = float64(hist.GetFloatAt(i, 0))
	}
	return out, nil
}

// autocontrastTable builds the 256-entry remap for one channel. An empty or
// single-valued channel maps to the identity.
func autocontrastTable(hist [256]float64, cutoff float64) [256]uint8 {
	var total float64
	for _, v := range hist {
		total += v
	}

	cut := math.Floor(total * cutoff / 100)
	trimmed := hist

	remaining := cut
	for lo := 0; lo < 256 && remaining > 0; lo++ {
		if remaining > trimmed[lo] {
			remaining -= trimmed[lo]
			trimmed[lo] = 0
		} else {
			trimmed[lo] -= remaining
			remaining = 0
		}
	}

	remaining = cut
	for hi := 255; hi >= 0 && remaining > 0; hi-- {
		if remaining > trimmed[hi] {
			remaining -= trimmed[hi]
			trimmed[hi] = 0
		} else {
			trimmed[hi] -= remaining
			remaining = 0
		}
	}

	lo := 0
	for lo < 256 && trimmed[lo] == 0 {
		lo++
	}
	hi := 255
	for hi >= 0 && trimmed[hi] == 0 {
		hi--
	}

	var table [256]uint8
	if hi <= lo {
		for i := range table {
			table[i] = uint8(i)
		}
		return table
	}

	scale := 255.0 / float64(hi-lo)
	offset := -float64(lo) * scale
	for i := range table {
		v := int(float64(i)*scale + offset)
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		table[i] = uint8(v)
	}
	return table
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
