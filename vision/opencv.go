package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/sayr777/GstStabilizer/flow"
)

// OpenCV implements Primitives on top of gocv. It is stateless and safe to
// share, though the pipeline only ever drives it from one goroutine.
type OpenCV struct{}

var _ Primitives = OpenCV{}

// guard converts a panic out of the underlying library into a classified
// backend error. gocv surfaces OpenCV assertion failures as panics; they
// must not escape the primitives boundary.
func guard(op string, err *error) {
	if r := recover(); r != nil {
		*err = &Error{Op: op, Kind: KindBackend, Err: fmt.Errorf("%v", r)}
	}
}

func (OpenCV) DetectCorners(img gocv.Mat, maxCorners int, quality, minDist float64, mask *gocv.Mat) (pts []flow.Point, err error) {
	defer guard("detect_corners", &err)

	corners := gocv.NewMat()
	defer corners.Close()
	gocv.GoodFeaturesToTrack(img, &corners, maxCorners, quality, minDist)

	pts = pointsOfMat(corners)
	if mask != nil {
		// The binding does not expose the detector's mask argument, so the
		// inclusion mask is applied to the candidates instead.
		pts = filterByMask(pts, *mask)
	}
	return pts, nil
}

func (OpenCV) RefineCorners(img gocv.Mat, pts []flow.Point, win int, term TermParams) (refined []flow.Point, err error) {
	defer guard("refine_subpixel", &err)

	if len(pts) == 0 {
		return nil, nil
	}
	corners := matOfPoints(pts)
	defer corners.Close()
	gocv.CornerSubPix(img, &corners,
		image.Pt(win, win),
		image.Pt(-1, -1),
		termCriteria(term))
	return pointsOfMat(corners), nil
}

func (OpenCV) TrackPoints(prev, cur gocv.Mat, pts []flow.Point, win, levels int, term TermParams) (tracked []flow.Point, status []bool, errs []float32, err error) {
	defer guard("track_points", &err)

	if len(pts) == 0 {
		return nil, nil, nil, nil
	}
	prevPts := matOfPoints(pts)
	defer prevPts.Close()
	curPts := gocv.NewMat()
	defer curPts.Close()
	statusMat := gocv.NewMat()
	defer statusMat.Close()
	errMat := gocv.NewMat()
	defer errMat.Close()

	gocv.CalcOpticalFlowPyrLKWithParams(prev, cur, prevPts, curPts,
		&statusMat, &errMat,
		image.Pt(win, win),
		levels,
		termCriteria(term),
		0,    // flags
		1e-4) // minimum eigenvalue threshold (library default)

	tracked = pointsOfMat(curPts)
	status = make([]bool, len(tracked))
	errs = make([]float32, len(tracked))
	for i := range tracked {
		status[i] = statusMat.GetUCharAt(i, 0) != 0
		errs[i] = errMat.GetFloatAt(i, 0)
	}
	return tracked, status, errs, nil
}

func (OpenCV) FitHomography(origins, destinations []flow.Point, reprojThreshold float64) (h *mat.Dense, err error) {
	defer guard("fit_homography", &err)

	if len(origins) < 4 {
		return nil, &Error{
			Op:   "fit_homography",
			Kind: KindNoSolution,
			Err:  fmt.Errorf("need at least 4 correspondences, got %d", len(origins)),
		}
	}
	if len(origins) != len(destinations) {
		return nil, fmt.Errorf("vision: fit_homography: mismatched lengths %d/%d", len(origins), len(destinations))
	}

	src := matOfPoints(origins)
	defer src.Close()
	dst := matOfPoints(destinations)
	defer dst.Close()
	inliers := gocv.NewMat()
	defer inliers.Close()

	m := gocv.FindHomography(src, &dst, gocv.HomographyMethodRANSAC, reprojThreshold, &inliers, 2000, 0.995)
	defer m.Close()
	if m.Empty() {
		return nil, &Error{Op: "fit_homography", Kind: KindNoSolution}
	}

	h = mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h.Set(r, c, m.GetDoubleAt(r, c))
		}
	}
	return h, nil
}

func (OpenCV) WarpPerspective(src gocv.Mat, dst *gocv.Mat, h *mat.Dense, width, height int) (err error) {
	defer guard("warp_perspective", &err)

	// Downcast from the float64 accumulator only here, at the warp call.
	hm := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer hm.Close()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			hm.SetDoubleAt(r, c, h.At(r, c))
		}
	}

	// Inverse mapping with a transparent border: destination pixels with no
	// source composite over whatever dst already holds.
	gocv.WarpPerspectiveWithParams(src, dst, hm,
		image.Pt(width, height),
		gocv.InterpolationLinear|gocv.WarpInverseMap,
		gocv.BorderTransparent,
		color.RGBA{})
	return nil
}

func termCriteria(t TermParams) gocv.TermCriteria {
	return gocv.NewTermCriteria(gocv.MaxIter+gocv.EPS, t.MaxIterations, t.Epsilon)
}

// matOfPoints packs points into an Nx1 two-channel float32 Mat, the layout
// the point-based primitives expect.
func matOfPoints(pts []flow.Point) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 1, gocv.MatTypeCV32FC2)
	for i, p := range pts {
		m.SetFloatAt(i, 0, p.X)
		m.SetFloatAt(i, 1, p.Y)
	}
	return m
}

// pointsOfMat unpacks an Nx1 two-channel float32 Mat into points.
func pointsOfMat(m gocv.Mat) []flow.Point {
	n := m.Rows()
	if n == 0 {
		return nil
	}
	pts := make([]flow.Point, n)
	for i := 0; i < n; i++ {
		pts[i] = flow.Point{X: m.GetFloatAt(i, 0), Y: m.GetFloatAt(i, 1)}
	}
	return pts
}

// filterByMask keeps points whose pixel in mask is non-zero. Points outside
// the mask bounds are dropped.
func filterByMask(pts []flow.Point, mask gocv.Mat) []flow.Point {
	kept := pts[:0]
	for _, p := range pts {
		x, y := int(p.X), int(p.Y)
		if x < 0 || x >= mask.Cols() || y < 0 || y >= mask.Rows() {
			continue
		}
		if mask.GetUCharAt(y, x) != 0 {
			kept = append(kept, p)
		}
	}
	return kept
}
