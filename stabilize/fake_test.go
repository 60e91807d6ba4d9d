package stabilize

import (
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/sayr777/GstStabilizer/flow"
	"github.com/sayr777/GstStabilizer/vision"
)

// fakePrimitives implements vision.Primitives for testing. Behavior defaults
// to "static scene": four well-spread corners, tracked to their own
// positions, fitting an identity transform, warp copying the source. Any of
// the function fields overrides one primitive.
type fakePrimitives struct {
	DetectFn func(img gocv.Mat, maxCorners int, quality, minDist float64, mask *gocv.Mat) ([]flow.Point, error)
	RefineFn func(img gocv.Mat, pts []flow.Point, win int, term vision.TermParams) ([]flow.Point, error)
	TrackFn  func(prev, cur gocv.Mat, pts []flow.Point, win, levels int, term vision.TermParams) ([]flow.Point, []bool, []float32, error)
	FitFn    func(origins, destinations []flow.Point, reprojThreshold float64) (*mat.Dense, error)
	WarpFn   func(src gocv.Mat, dst *gocv.Mat, h *mat.Dense, width, height int) error

	DetectCalls  int
	DetectPixels []uint8  // first pixel of each image handed to detection
	Masks        []*gocv.Mat
	FitCalls     int
	WarpMatrices []*mat.Dense
}

var _ vision.Primitives = (*fakePrimitives)(nil)

func (p *fakePrimitives) DetectCorners(img gocv.Mat, maxCorners int, quality, minDist float64, mask *gocv.Mat) ([]flow.Point, error) {
	p.DetectCalls++
	p.DetectPixels = append(p.DetectPixels, img.GetUCharAt(0, 0))
	p.Masks = append(p.Masks, mask)
	if p.DetectFn != nil {
		return p.DetectFn(img, maxCorners, quality, minDist, mask)
	}
	return []flow.Point{{X: 1, Y: 1}, {X: 6, Y: 1}, {X: 1, Y: 6}, {X: 6, Y: 6}}, nil
}

func (p *fakePrimitives) RefineCorners(img gocv.Mat, pts []flow.Point, win int, term vision.TermParams) ([]flow.Point, error) {
	if p.RefineFn != nil {
		return p.RefineFn(img, pts, win, term)
	}
	return pts, nil
}

func (p *fakePrimitives) TrackPoints(prev, cur gocv.Mat, pts []flow.Point, win, levels int, term vision.TermParams) ([]flow.Point, []bool, []float32, error) {
	if p.TrackFn != nil {
		return p.TrackFn(prev, cur, pts, win, levels, term)
	}
	status := make([]bool, len(pts))
	errs := make([]float32, len(pts))
	for i := range status {
		status[i] = true
	}
	return pts, status, errs, nil
}

func (p *fakePrimitives) FitHomography(origins, destinations []flow.Point, reprojThreshold float64) (*mat.Dense, error) {
	p.FitCalls++
	if p.FitFn != nil {
		return p.FitFn(origins, destinations, reprojThreshold)
	}
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), nil
}

func (p *fakePrimitives) WarpPerspective(src gocv.Mat, dst *gocv.Mat, h *mat.Dense, width, height int) error {
	p.WarpMatrices = append(p.WarpMatrices, mat.DenseCopyOf(h))
	if p.WarpFn != nil {
		return p.WarpFn(src, dst, h, width, height)
	}
	src.CopyTo(dst)
	return nil
}

// translation returns the homography for a pure translation.
func translation(tx, ty float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	})
}
