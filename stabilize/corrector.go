package stabilize

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/sayr777/GstStabilizer/flow"
	"github.com/sayr777/GstStabilizer/internal/imgutil"
	"github.com/sayr777/GstStabilizer/pipeline"
	"github.com/sayr777/GstStabilizer/vision"
)

// Corrector is the pipeline stage that warps each frame by the inverse of
// the estimated camera motion so the output stream appears static.
//
// It maintains a reference state across the stream: the image the next
// frame's motion is measured against, and optionally the feature positions
// ("anchor") to track from it. The very first frame establishes the
// reference and passes through unmodified. Numerical failures are bounded
// to a single uncorrected frame: the failing frame passes through raw and
// tracking re-bootstraps from it.
//
// Transform accumulation happens in float64 so long composed chains do not
// drift; matrices are downcast only at the warp call.
type Corrector struct {
	cfg    CorrectorConfig
	vis    vision.Primitives
	finder Finder
	out    pipeline.Pusher
	log    *slog.Logger

	// ref is the image the next frame is measured against: the current raw
	// frame in composed mode, the corrected output in direct mode.
	ref gocv.Mat
	// anchor holds the reference's feature positions, when known. nil means
	// the finder must re-detect.
	anchor []flow.Point
	// lastOut is the previously pushed output, the compositing base for the
	// next warp.
	lastOut gocv.Mat
	// acc is the accumulated transform, identity at start.
	acc *mat.Dense

	started bool
}

// NewCorrector builds the corrector stage. A nil vis uses the OpenCV-backed
// primitives; corrected frames go to out.
func NewCorrector(cfg CorrectorConfig, vis vision.Primitives, out pipeline.Pusher, log *slog.Logger) (*Corrector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vis == nil {
		vis = vision.OpenCV{}
	}
	if out == nil {
		out = pipeline.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	finder, err := NewFinder(cfg.Algorithm, cfg.Tracker, vis, log)
	if err != nil {
		return nil, err
	}
	return &Corrector{
		cfg:    cfg,
		vis:    vis,
		finder: finder,
		out:    out,
		log:    log,
		acc:    identity(),
	}, nil
}

// Push implements pipeline.Pusher.
func (c *Corrector) Push(f pipeline.Frame) error {
	cur, err := imgutil.MatOfFrame(f)
	if err != nil {
		return fmt.Errorf("corrector: %w", err)
	}

	if !c.started {
		// First frame: it becomes the reference and the compositing base,
		// and passes through untouched. No transform is computed yet.
		c.ref = cur
		c.lastOut = cur.Clone()
		c.anchor = nil
		c.started = true
		c.log.Debug("corrector: reference established", "pts", f.PTS)
		return c.out.Push(f)
	}
	defer cur.Close()

	rec, err := c.flow(cur)
	if err != nil {
		return c.fail(f, cur, err)
	}
	if rec.Len() == 0 {
		// Tracking miss. Pass through and keep the reference as is: a frame
		// we could not track is the last thing to rebase onto.
		c.log.Debug("corrector: no usable flow, passing through", "pts", f.PTS)
		return c.out.Push(f)
	}

	// The fitted transform maps reference coordinates into current-frame
	// coordinates.
	h, err := c.vis.FitHomography(rec.Origins, rec.Destinations, c.cfg.ReprojThreshold)
	if err != nil {
		return c.fail(f, cur, err)
	}

	if c.cfg.Mode == ModeComposed {
		// The flow was measured between raw frames, so transforms must
		// accumulate: acc maps the very first reference into this frame.
		next := mat.NewDense(3, 3, nil)
		next.Mul(h, c.acc)
		c.acc = next
	} else {
		c.acc = h
	}

	// Render the current frame back into the reference's coordinate space,
	// compositing over the previous output so unmapped border pixels do not
	// flicker.
	dst := c.lastOut.Clone()
	if err := c.vis.WarpPerspective(cur, &dst, c.acc, f.Width, f.Height); err != nil {
		dst.Close()
		return c.fail(f, cur, err)
	}
	outFrame, err := imgutil.FrameOfMat(dst, f)
	if err != nil {
		dst.Close()
		return fmt.Errorf("corrector: %w", err)
	}

	if err := c.rebase(cur, dst, h, rec); err != nil {
		dst.Close()
		return c.fail(f, cur, err)
	}
	c.lastOut.Close()
	c.lastOut = dst
	return c.out.Push(outFrame)
}

// flow obtains the correspondences between the reference and cur.
func (c *Corrector) flow(cur gocv.Mat) (*flow.Record, error) {
	refGray := imgutil.Gray(c.ref)
	defer refGray.Close()
	curGray := imgutil.Gray(cur)
	defer curGray.Close()
	return c.finder.Flow(refGray, curGray, c.anchor)
}

// rebase updates the reference state after a successful correction.
func (c *Corrector) rebase(cur, corrected gocv.Mat, h *mat.Dense, rec *flow.Record) error {
	if c.cfg.Mode == ModeComposed {
		// Keep comparing against raw geometry: the accumulator does the
		// aligning, so the anchor carries forward unwarped.
		c.ref.Close()
		c.ref = cur.Clone()
		c.anchor = rec.Destinations
		return nil
	}
	// Direct mode re-bases every frame onto the corrected image, so the
	// anchor must move into corrected coordinates: the warp renders through
	// the inverse of h, hence the inverse maps raw positions to corrected
	// ones.
	anchor, err := projectInverse(rec.Destinations, h)
	if err != nil {
		return err
	}
	c.ref.Close()
	c.ref = corrected.Clone()
	c.anchor = anchor
	return nil
}

// fail recovers from a classified vision failure by pushing the raw frame
// and re-bootstrapping tracking from it, as if the stream restarted here.
// Anything else is a real error and propagates.
func (c *Corrector) fail(f pipeline.Frame, cur gocv.Mat, err error) error {
	var verr *vision.Error
	if !errors.As(err, &verr) {
		return fmt.Errorf("corrector: %w", err)
	}
	c.log.Warn("corrector: transform failure, passing frame through",
		"pts", f.PTS,
		"kind", verr.Kind.String(),
		"error", err,
	)
	c.ref.Close()
	c.ref = cur.Clone()
	c.anchor = nil
	return c.out.Push(f)
}

// Close releases the reference state and the finder.
func (c *Corrector) Close() error {
	if c.started {
		c.ref.Close()
		c.lastOut.Close()
		c.started = false
	}
	return c.finder.Close()
}

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// projectInverse applies the inverse of h projectively to each point.
func projectInverse(pts []flow.Point, h *mat.Dense) ([]flow.Point, error) {
	var inv mat.Dense
	if err := inv.Inverse(h); err != nil {
		return nil, &vision.Error{Op: "project_points", Kind: vision.KindDegenerate, Err: err}
	}
	out := make([]flow.Point, len(pts))
	for i, p := range pts {
		x := inv.At(0, 0)*float64(p.X) + inv.At(0, 1)*float64(p.Y) + inv.At(0, 2)
		y := inv.At(1, 0)*float64(p.X) + inv.At(1, 1)*float64(p.Y) + inv.At(1, 2)
		w := inv.At(2, 0)*float64(p.X) + inv.At(2, 1)*float64(p.Y) + inv.At(2, 2)
		if math.Abs(w) < 1e-12 {
			return nil, &vision.Error{
				Op:   "project_points",
				Kind: vision.KindDegenerate,
				Err:  fmt.Errorf("point %d maps to infinity", i),
			}
		}
		out[i] = flow.Point{X: float32(x / w), Y: float32(y / w)}
	}
	return out, nil
}
