// Package vision is the boundary to the low-level vision primitives the
// stabilizer orchestrates: corner detection, pyramidal point tracking,
// robust homography fitting and perspective warping.
//
// The numerical internals live in OpenCV (via gocv); this package pins down
// the input/output contracts the core relies on and classifies the ways the
// primitives can fail, so callers can distinguish recoverable numerical
// failures from real bugs.
package vision

import (
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/sayr777/GstStabilizer/flow"
)

// TermParams is the max-iterations-or-epsilon stopping rule shared by the
// iterative primitives.
type TermParams struct {
	// MaxIterations bounds the iteration count.
	MaxIterations int
	// Epsilon terminates early once the update falls below it.
	Epsilon float64
}

// Primitives is the minimal set of vision operations the stabilizer needs.
//
// Implementations must guarantee:
//   - Calls are blocking and synchronous; no background work.
//   - Input images are never mutated.
//   - Numerical failures are reported as *Error, never as panics.
type Primitives interface {
	// DetectCorners finds up to maxCorners trackable points in a
	// single-channel 8-bit image. quality is the minimum accepted corner
	// quality relative to the best eigenvalue; minDist the minimum pairwise
	// Euclidean separation. A non-nil mask excludes points at zero pixels.
	DetectCorners(img gocv.Mat, maxCorners int, quality, minDist float64, mask *gocv.Mat) ([]flow.Point, error)

	// RefineCorners refines detected corners to sub-pixel accuracy using a
	// search window of win pixels around each point.
	RefineCorners(img gocv.Mat, pts []flow.Point, win int, term TermParams) ([]flow.Point, error)

	// TrackPoints locates pts from prev in cur using pyramidal iterative
	// tracking. It returns the tracked positions together with a per-point
	// status flag (false = tracking failed for that point) and tracking
	// error estimate. All three slices are index-aligned with pts.
	TrackPoints(prev, cur gocv.Mat, pts []flow.Point, win, levels int, term TermParams) (tracked []flow.Point, status []bool, errs []float32, err error)

	// FitHomography fits a 3x3 perspective transform mapping origins onto
	// destinations with an outlier-robust estimator. It fails with
	// KindNoSolution when fewer than 4 usable correspondences remain or
	// the geometry is degenerate.
	FitHomography(origins, destinations []flow.Point, reprojThreshold float64) (*mat.Dense, error)

	// WarpPerspective renders src through the inverse of h into dst, which
	// must already hold the pixels to composite over: destination pixels
	// with no source mapping keep their existing value.
	WarpPerspective(src gocv.Mat, dst *gocv.Mat, h *mat.Dense, width, height int) error
}
