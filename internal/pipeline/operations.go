package pipeline

import (
	"fmt"
	"strings"

	"leaffliction/internal/analysis"
	"leaffliction/internal/opencv/safe"
	"leaffliction/internal/segmentation"
)

// OperationOutput is what one analysis operation produces for one image.
// Stats is set only by shape analysis.
type OperationOutput struct {
	Image *safe.Mat
	Stats *analysis.ShapeStats
}

func (o *OperationOutput) Close() {
	if o == nil {
		return
	}
	o.Image.Close()
}

// Operation is a named analysis step. Label is used in output file names.
type Operation struct {
	Key   string
	Label string
	Run   func(a *analysis.Analyzer, img *safe.Mat, mask *segmentation.Mask, plotW, plotH int) (*OperationOutput, error)
}

var operations = []Operation{
	{Key: "blur", Label: "GaussianBlur", Run: runGaussianBlur},
	{Key: "mask", Label: "Mask", Run: runMask},
	{Key: "roi", Label: "RoiObjects", Run: runROI},
	{Key: "analyze", Label: "AnalyzeObjects", Run: runAnalyze},
	{Key: "landmarks", Label: "Pseudolandmarks", Run: runLandmarks},
	{Key: "histogram", Label: "Histogram", Run: runHistogram},
}

// Operations returns every operation in output order.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

// LookupOperations resolves keys in the order given. No keys selects all.
func LookupOperations(keys []string) ([]Operation, error) {
	if len(keys) == 0 {
		return Operations(), nil
	}

	selected := make([]Operation, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if seen[key] {
			continue
		}
		op, ok := findOperation(key)
		if !ok {
			return nil, fmt.Errorf("unknown operation %q", key)
		}
		seen[key] = true
		selected = append(selected, op)
	}
	return selected, nil
}

func findOperation(key string) (Operation, bool) {
	for _, op := range operations {
		if op.Key == key {
			return op, true
		}
	}
	return Operation{}, false
}

func wrapImage(img *safe.Mat, err error) (*OperationOutput, error) {
	if err != nil {
		return nil, err
	}
	return &OperationOutput{Image: img}, nil
}

func runGaussianBlur(a *analysis.Analyzer, _ *safe.Mat, mask *segmentation.Mask, _, _ int) (*OperationOutput, error) {
	return wrapImage(a.GaussianBlur(mask))
}

func runMask(a *analysis.Analyzer, img *safe.Mat, mask *segmentation.Mask, _, _ int) (*OperationOutput, error) {
	return wrapImage(a.MaskedOverlay(img, mask))
}

func runROI(a *analysis.Analyzer, img *safe.Mat, mask *segmentation.Mask, _, _ int) (*OperationOutput, error) {
	return wrapImage(a.ROIOverlay(img, mask))
}

func runAnalyze(a *analysis.Analyzer, img *safe.Mat, mask *segmentation.Mask, _, _ int) (*OperationOutput, error) {
	res, err := a.AnalyzeObjects(img, mask)
	if err != nil {
		return nil, err
	}
	res.Region.Close()

	stats := res.Stats
	return &OperationOutput{Image: res.Annotated, Stats: &stats}, nil
}

func runLandmarks(a *analysis.Analyzer, img *safe.Mat, mask *segmentation.Mask, _, _ int) (*OperationOutput, error) {
	res, err := a.Landmarks(img, mask)
	if err != nil {
		return nil, err
	}
	return &OperationOutput{Image: res.Annotated}, nil
}

func runHistogram(a *analysis.Analyzer, img *safe.Mat, mask *segmentation.Mask, plotW, plotH int) (*OperationOutput, error) {
	h, err := a.Histogram(img, mask)
	if err != nil {
		return nil, err
	}
	return wrapImage(h.Render(plotW, plotH))
}
