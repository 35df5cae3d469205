package augment

import (
	"fmt"
	"image/color"
)

// Params holds every constant the operators depend on. Operators capture a
// copy at registry construction, so a Params value fully determines output.
type Params struct {
	FillColor      color.RGBA
	RotateAngle    float64
	BlurScale      float64
	ContrastCutoff float64
	CropFraction   float64
	Deform         DeformOffsets
	WaveGrid       int
	WaveAmplitude  float64
	WavePeriod     float64
}

// DeformOffsets displaces each source corner of the full-image quad.
// Each entry is an (dx, dy) pair added to UL=(0,0), LL=(0,H), LR=(W,H),
// UR=(W,0).
type DeformOffsets struct {
	UpperLeft  [2]float64
	LowerLeft  [2]float64
	LowerRight [2]float64
	UpperRight [2]float64
}

func DefaultParams() Params {
	return Params{
		FillColor:      color.RGBA{R: 255, G: 255, B: 255, A: 255},
		RotateAngle:    -20,
		BlurScale:      0.3,
		ContrastCutoff: 5,
		CropFraction:   0.15,
		Deform: DeformOffsets{
			UpperLeft:  [2]float64{0, -50},
			LowerLeft:  [2]float64{-50, 0},
			LowerRight: [2]float64{20, 90},
			UpperRight: [2]float64{0, 0},
		},
		WaveGrid:      20,
		WaveAmplitude: 30,
		WavePeriod:    80,
	}
}

func (p Params) Validate() error {
	if p.BlurScale <= 0 || p.BlurScale > 1 {
		return fmt.Errorf("blur scale must be in (0, 1], got %v", p.BlurScale)
	}
	if p.ContrastCutoff < 0 || p.ContrastCutoff >= 50 {
		return fmt.Errorf("contrast cutoff must be in [0, 50), got %v", p.ContrastCutoff)
	}
	if p.CropFraction < 0 || p.CropFraction >= 0.5 {
		return fmt.Errorf("crop fraction must be in [0, 0.5), got %v", p.CropFraction)
	}
	if p.WaveGrid <= 0 {
		return fmt.Errorf("wave grid must be positive, got %d", p.WaveGrid)
	}
	if p.WavePeriod == 0 {
		return fmt.Errorf("wave period must be non-zero")
	}
	return nil
}
