package analysis

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"

	"leaffliction/internal/models"
	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/opencv/safe"
	"leaffliction/internal/segmentation"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

var (
	contourColor = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	hullColor    = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	guideColor   = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	centerColor  = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Ellipse is the least-squares ellipse fitted to the region outline.
type Ellipse struct {
	Center       image.Point
	MajorAxis    float64
	MinorAxis    float64
	Angle        float64
	Eccentricity float64
}

type ShapeStats struct {
	Area               int
	Perimeter          float64
	Width              int
	Height             int
	Extent             float64
	ConvexHullArea     float64
	Solidity           float64
	ConvexHullVertices int
	CenterOfMass       [2]float64
	Ellipse            Ellipse
	ObjectInFrame      bool
}

func (s ShapeStats) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"area":                 s.Area,
		"perimeter":            s.Perimeter,
		"width":                s.Width,
		"height":               s.Height,
		"extent":               s.Extent,
		"convex_hull_area":     s.ConvexHullArea,
		"solidity":             s.Solidity,
		"convex_hull_vertices": s.ConvexHullVertices,
		"center_of_mass_x":     s.CenterOfMass[0],
		"center_of_mass_y":     s.CenterOfMass[1],
		"ellipse_major_axis":   s.Ellipse.MajorAxis,
		"ellipse_minor_axis":   s.Ellipse.MinorAxis,
		"ellipse_angle":        s.Ellipse.Angle,
		"ellipse_eccentricity": s.Ellipse.Eccentricity,
		"object_in_frame":      s.ObjectInFrame,
	}
}

// ObjectAnalysis owns Annotated and Region; Close releases both.
type ObjectAnalysis struct {
	Stats     ShapeStats
	Annotated *safe.Mat
	Region    *segmentation.Mask
}

func (o *ObjectAnalysis) Close() {
	if o == nil {
		return
	}
	o.Annotated.Close()
	o.Region.Close()
}

// MaskedOverlay keeps foreground pixels and paints the background with the
// fill colour, after closing small gaps in the mask.
func (a *Analyzer) MaskedOverlay(img *safe.Mat, mask *segmentation.Mask) (*safe.Mat, error) {
	if err := checkCongruent(img, mask, "MaskedOverlay"); err != nil {
		return nil, err
	}

	closed, err := mask.MorphClose(a.params.CloseKernel)
	if err != nil {
		return nil, err
	}
	defer closed.Close()

	return applyMask(img, closed, a.params.FillColor)
}

// applyMask copies the foreground of img onto a canvas of the fill colour.
func applyMask(img *safe.Mat, mask *segmentation.Mask, fill color.RGBA) (*safe.Mat, error) {
	bgr, err := conversion.ToBGR(img)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	canvas, err := safe.NewMatFromScalar(bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC3,
		gocv.NewScalar(float64(fill.B), float64(fill.G), float64(fill.R), 0))
	if err != nil {
		return nil, fmt.Errorf("failed to create canvas: %w", err)
	}

	src := bgr.GetMat()
	dst := canvas.GetMat()
	src.CopyToWithMask(&dst, mask.Mat().GetMat())

	return canvas, nil
}

// ROIOverlay paints the foreground with the highlight colour and frames the
// bounding box with an outline band drawn just outside it.
func (a *Analyzer) ROIOverlay(img *safe.Mat, mask *segmentation.Mask) (*safe.Mat, error) {
	if err := checkCongruent(img, mask, "ROIOverlay"); err != nil {
		return nil, err
	}

	box, err := segmentation.BoundingBoxOf(mask)
	if err != nil {
		return nil, err
	}

	out, err := conversion.ToBGR(img)
	if err != nil {
		return nil, err
	}

	highlight, err := safe.NewMatFromScalar(out.Rows(), out.Cols(), gocv.MatTypeCV8UC3,
		gocv.NewScalar(float64(a.params.HighlightColor.B), float64(a.params.HighlightColor.G), float64(a.params.HighlightColor.R), 0))
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to create highlight layer: %w", err)
	}
	defer highlight.Close()

	dst := out.GetMat()
	hl := highlight.GetMat()
	hl.CopyToWithMask(&dst, mask.Mat().GetMat())

	for _, band := range outlineBands(box, a.params.LineThickness) {
		gocv.Rectangle(&dst, band, a.params.OutlineColor, -1)
	}

	return out, nil
}

// outlineBands returns the four filled rectangles of thickness t that
// surround box on the outside. Drawing clips them to the image.
func outlineBands(box segmentation.BoundingBox, t int) []image.Rectangle {
	r := box.Rect()
	return []image.Rectangle{
		image.Rect(r.Min.X-t, r.Min.Y-t, r.Max.X+t, r.Min.Y),
		image.Rect(r.Min.X-t, r.Max.Y, r.Max.X+t, r.Max.Y+t),
		image.Rect(r.Min.X-t, r.Min.Y, r.Min.X, r.Max.Y),
		image.Rect(r.Max.X, r.Min.Y, r.Max.X+t, r.Max.Y),
	}
}

// AnalyzeObjects measures the foreground using its own bounding box as the
// region of interest.
func (a *Analyzer) AnalyzeObjects(img *safe.Mat, mask *segmentation.Mask) (*ObjectAnalysis, error) {
	if err := checkCongruent(img, mask, "AnalyzeObjects"); err != nil {
		return nil, err
	}

	box, err := segmentation.BoundingBoxOf(mask)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeObjectsInROI(img, mask, box.Rect())
}

// AnalyzeObjectsInROI keeps every connected component with at least one
// pixel inside roi, merges the survivors into one region and measures it.
func (a *Analyzer) AnalyzeObjectsInROI(img *safe.Mat, mask *segmentation.Mask, roi image.Rectangle) (*ObjectAnalysis, error) {
	if err := checkCongruent(img, mask, "AnalyzeObjectsInROI"); err != nil {
		return nil, err
	}

	region, err := filterByROI(mask, roi)
	if err != nil {
		return nil, err
	}

	stats, outline, hull, err := measure(region)
	if err != nil {
		region.Close()
		return nil, err
	}

	annotated, err := a.annotate(img, stats, outline, hull)
	if err != nil {
		region.Close()
		return nil, err
	}

	return &ObjectAnalysis{Stats: stats, Annotated: annotated, Region: region}, nil
}

func filterByROI(mask *segmentation.Mask, roi image.Rectangle) (*segmentation.Mask, error) {
	labels := gocv.NewMat()
	defer labels.Close()

	n := gocv.ConnectedComponents(mask.Mat().GetMat(), &labels)

	rows, cols := mask.Rows(), mask.Cols()
	raw := labels.ToBytes()
	label := func(i int) int {
		return int(int32(binary.LittleEndian.Uint32(raw[i*4:])))
	}

	keep := make([]bool, n)
	kept := 0
	area := roi.Intersect(image.Rect(0, 0, cols, rows))
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if l := label(y*cols + x); l > 0 && l < n && !keep[l] {
				keep[l] = true
				kept++
			}
		}
	}

	if kept == 0 {
		return nil, models.DegenerateMask("AnalyzeObjects", "", map[string]interface{}{
			"components": n - 1,
			"roi":        roi.String(),
		})
	}

	data := make([]byte, rows*cols)
	for i := range data {
		if l := label(i); l > 0 && l < n && keep[l] {
			data[i] = segmentation.Foreground
		}
	}

	return segmentation.NewMaskFromBytes(rows, cols, data)
}

func measure(region *segmentation.Mask) (ShapeStats, [][]image.Point, []image.Point, error) {
	var s ShapeStats

	box, err := segmentation.BoundingBoxOf(region)
	if err != nil {
		return s, nil, nil, err
	}

	xs := make([]float64, 0, region.ForegroundCount())
	ys := make([]float64, 0, cap(xs))
	for y := box.YMin; y <= box.YMax; y++ {
		for x := box.XMin; x <= box.XMax; x++ {
			if region.IsForeground(y, x) {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}

	s.Area = len(xs)
	s.Width = box.Width()
	s.Height = box.Height()
	s.Extent = float64(s.Area) / float64(s.Width*s.Height)
	s.CenterOfMass = [2]float64{stat.Mean(xs, nil), stat.Mean(ys, nil)}
	s.ObjectInFrame = box.XMin > 0 && box.YMin > 0 &&
		box.XMax < region.Cols()-1 && box.YMax < region.Rows()-1

	contours := gocv.FindContours(region.Mat().GetMat(), gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	var outline [][]image.Point
	var all []image.Point
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		s.Perimeter += gocv.ArcLength(c, true)

		pts := c.ToPoints()
		outline = append(outline, pts)
		all = append(all, pts...)
	}

	hull := convexHull(all)
	if len(hull) >= 3 {
		pv := gocv.NewPointVectorFromPoints(hull)
		s.ConvexHullArea = gocv.ContourArea(pv)
		pv.Close()
	}
	s.ConvexHullVertices = len(hull)
	if s.ConvexHullArea > 0 {
		s.Solidity = float64(s.Area) / s.ConvexHullArea
	} else {
		s.Solidity = 1
	}

	if len(all) >= 5 {
		pv := gocv.NewPointVectorFromPoints(all)
		fitted := gocv.FitEllipse(pv)
		pv.Close()

		major := math.Max(float64(fitted.Width), float64(fitted.Height))
		minor := math.Min(float64(fitted.Width), float64(fitted.Height))
		s.Ellipse = Ellipse{
			Center:    fitted.Center,
			MajorAxis: major,
			MinorAxis: minor,
			Angle:     fitted.Angle,
		}
		if major > 0 {
			s.Ellipse.Eccentricity = math.Sqrt(1 - (minor/major)*(minor/major))
		}
	}

	return s, outline, hull, nil
}

func convexHull(points []image.Point) []image.Point {
	if len(points) == 0 {
		return nil
	}

	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	indices := gocv.NewMat()
	defer indices.Close()
	gocv.ConvexHull(pv, &indices, false, false)

	hull := make([]image.Point, 0, indices.Rows())
	for i := 0; i < indices.Rows(); i++ {
		idx := int(indices.GetIntAt(i, 0))
		if idx >= 0 && idx < len(points) {
			hull = append(hull, points[idx])
		}
	}
	return hull
}

func (a *Analyzer) annotate(img *safe.Mat, s ShapeStats, outline [][]image.Point, hull []image.Point) (*safe.Mat, error) {
	out, err := conversion.ToBGR(img)
	if err != nil {
		return nil, err
	}

	dst := out.GetMat()
	thickness := a.params.LineThickness

	if len(outline) > 0 {
		contours := gocv.NewPointsVectorFromPoints(outline)
		gocv.DrawContours(&dst, contours, -1, contourColor, thickness)
		contours.Close()
	}

	if len(hull) >= 2 {
		hv := gocv.NewPointsVectorFromPoints([][]image.Point{hull})
		gocv.DrawContours(&dst, hv, -1, hullColor, thickness)
		hv.Close()
	}

	cx := int(math.Round(s.CenterOfMass[0]))
	cy := int(math.Round(s.CenterOfMass[1]))
	halfW, halfH := s.Width/2, s.Height/2
	gocv.Line(&dst, image.Pt(cx-halfW, cy), image.Pt(cx+halfW, cy), guideColor, thickness)
	gocv.Line(&dst, image.Pt(cx, cy-halfH), image.Pt(cx, cy+halfH), guideColor, thickness)
	gocv.Circle(&dst, image.Pt(cx, cy), thickness*2, centerColor, -1)

	return out, nil
}

// GaussianBlur smooths the mask edges with a BlurKernel x BlurKernel kernel
// and returns the single-channel result.
func (a *Analyzer) GaussianBlur(mask *segmentation.Mask) (*safe.Mat, error) {
	if mask == nil {
		return nil, fmt.Errorf("GaussianBlur: mask is nil")
	}

	k := a.params.BlurKernel
	dst := gocv.NewMat()
	gocv.GaussianBlur(mask.Mat().GetMat(), &dst, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	return safe.Wrap(dst, "gaussian_blur")
}
