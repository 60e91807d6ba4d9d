package stabilize

import (
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/sayr777/GstStabilizer/flow"
	"github.com/sayr777/GstStabilizer/vision"
)

// Sub-pixel refinement parameters. These are properties of the refinement
// step itself, not of the tracking session, so they are not configurable.
const subPixWin = 10

var subPixTerm = vision.TermParams{MaxIterations: 20, Epsilon: 0.03}

// LucasKanade finds correspondences by detecting corners in the previous
// frame and following them into the current one with pyramidal iterative
// optical flow.
type LucasKanade struct {
	cfg TrackerConfig
	vis vision.Primitives
	log *slog.Logger

	// mask is the cached inclusion mask, built lazily on the first frame
	// whose dimensions are known. nil when no ignore box is configured.
	mask *gocv.Mat
}

var _ Finder = (*LucasKanade)(nil)

// NewLucasKanade builds a point-tracking finder. A nil vis uses the
// OpenCV-backed primitives; a nil log uses slog.Default.
func NewLucasKanade(cfg TrackerConfig, vis vision.Primitives, log *slog.Logger) (*LucasKanade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vis == nil {
		vis = vision.OpenCV{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &LucasKanade{cfg: cfg, vis: vis, log: log}, nil
}

// Flow implements Finder.
func (f *LucasKanade) Flow(prev, cur gocv.Mat, anchor []flow.Point) (*flow.Record, error) {
	origins := anchor
	if origins == nil {
		var err error
		origins, err = f.detect(prev)
		if err != nil {
			return nil, err
		}
	}
	if len(origins) == 0 {
		return &flow.Record{}, nil
	}

	term := vision.TermParams{MaxIterations: f.cfg.MaxIterations, Epsilon: f.cfg.Epsilon}
	tracked, status, _, err := f.vis.TrackPoints(prev, cur, origins, f.cfg.WinSize, f.cfg.PyramidLevels, term)
	if err != nil {
		return nil, err
	}
	if len(tracked) != len(origins) || len(status) != len(origins) {
		return nil, fmt.Errorf("stabilize: tracker returned %d points and %d flags for %d origins",
			len(tracked), len(status), len(origins))
	}

	// Drop pairs the tracker gave up on, plus anything touching the ignore
	// box. The box was already masked out of detection, but tracked points
	// can drift into it and anchors bypass detection entirely.
	rec := &flow.Record{}
	box := f.cfg.IgnoreBox
	for i := range origins {
		if !status[i] || box.Contains(origins[i]) || box.Contains(tracked[i]) {
			continue
		}
		rec.Origins = append(rec.Origins, origins[i])
		rec.Destinations = append(rec.Destinations, tracked[i])
	}
	f.log.Debug("tracker: flow computed",
		"detected", len(origins),
		"kept", rec.Len(),
	)
	return rec, nil
}

// detect finds and refines corner candidates in img, honoring the ignore
// mask when a box is configured.
func (f *LucasKanade) detect(img gocv.Mat) ([]flow.Point, error) {
	pts, err := f.vis.DetectCorners(img,
		f.cfg.CornerCount,
		f.cfg.QualityLevel,
		float64(f.cfg.MinDistance),
		f.maskFor(img))
	if err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, nil
	}
	return f.vis.RefineCorners(img, pts, subPixWin, subPixTerm)
}

// maskFor returns the session mask, building it on first use from the
// frame's actual dimensions.
func (f *LucasKanade) maskFor(img gocv.Mat) *gocv.Mat {
	if !f.cfg.IgnoreBox.Enabled() {
		return nil
	}
	if f.mask == nil {
		m := buildMask(f.cfg.IgnoreBox, img.Cols(), img.Rows())
		f.mask = &m
		f.log.Debug("tracker: ignore mask built",
			"width", img.Cols(),
			"height", img.Rows(),
		)
	}
	return f.mask
}

// Close releases the cached mask.
func (f *LucasKanade) Close() error {
	if f.mask != nil {
		err := f.mask.Close()
		f.mask = nil
		return err
	}
	return nil
}
