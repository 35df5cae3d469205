package analysis

import (
	"fmt"
	"image/color"

	"leaffliction/internal/opencv/safe"
	"leaffliction/internal/segmentation"
)

type Params struct {
	CloseKernel     int
	LineThickness   int
	BlurKernel      int
	LandmarkWindows int
	LandmarkRadius  int
	FillColor       color.RGBA
	HighlightColor  color.RGBA
	OutlineColor    color.RGBA
	PlotWidth       int
	PlotHeight      int
}

func DefaultParams() Params {
	return Params{
		CloseKernel:     15,
		LineThickness:   2,
		BlurKernel:      3,
		LandmarkWindows: 20,
		LandmarkRadius:  4,
		FillColor:       color.RGBA{R: 255, G: 255, B: 255, A: 255},
		HighlightColor:  color.RGBA{G: 255, A: 255},
		OutlineColor:    color.RGBA{B: 255, A: 255},
		PlotWidth:       1000,
		PlotHeight:      600,
	}
}

func (p Params) Validate() error {
	if p.CloseKernel <= 0 {
		return fmt.Errorf("close kernel must be positive, got %d", p.CloseKernel)
	}
	if p.LineThickness <= 0 {
		return fmt.Errorf("line thickness must be positive, got %d", p.LineThickness)
	}
	if p.BlurKernel <= 0 || p.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be a positive odd number, got %d", p.BlurKernel)
	}
	if p.LandmarkWindows <= 0 {
		return fmt.Errorf("landmark windows must be positive, got %d", p.LandmarkWindows)
	}
	if p.LandmarkRadius < 0 {
		return fmt.Errorf("landmark radius must not be negative, got %d", p.LandmarkRadius)
	}
	return nil
}

// Analyzer derives visualisations and measurements from an image and its
// segmentation mask. It holds no per-image state and is safe for
// concurrent use.
type Analyzer struct {
	params Params
}

func NewAnalyzer(params Params) (*Analyzer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis parameters: %w", err)
	}
	return &Analyzer{params: params}, nil
}

func (a *Analyzer) Params() Params {
	return a.params
}

func checkCongruent(img *safe.Mat, mask *segmentation.Mask, operation string) error {
	if err := safe.ValidateColor(img, operation); err != nil {
		return err
	}
	if mask == nil {
		return fmt.Errorf("%s: mask is nil", operation)
	}
	if mask.Rows() != img.Rows() || mask.Cols() != img.Cols() {
		return fmt.Errorf("%s: mask %dx%d does not match image %dx%d", operation,
			mask.Cols(), mask.Rows(), img.Cols(), img.Rows())
	}
	return nil
}
