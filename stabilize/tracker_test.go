package stabilize

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/sayr777/GstStabilizer/flow"
	"github.com/sayr777/GstStabilizer/vision"
)

func grayMat(t *testing.T, size int) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC1)
	t.Cleanup(func() { m.Close() })
	return m
}

func boxedConfig() TrackerConfig {
	cfg := DefaultTrackerConfig()
	cfg.IgnoreBox = IgnoreBox{MinX: 10, MaxX: 50, MinY: 10, MaxY: 50}
	return cfg
}

func newTestTracker(t *testing.T, cfg TrackerConfig, fake *fakePrimitives) *LucasKanade {
	t.Helper()
	lk, err := NewLucasKanade(cfg, fake, nil)
	if err != nil {
		t.Fatalf("NewLucasKanade failed: %v", err)
	}
	t.Cleanup(func() { lk.Close() })
	return lk
}

// TestFilterDropsFailedAndIgnored verifies the post-tracking filter: points
// whose tracking failed, or whose origin or destination touches the ignore
// box, never reach the record — even when the underlying detector returned
// them before masking.
func TestFilterDropsFailedAndIgnored(t *testing.T) {
	origins := []flow.Point{
		{X: 20, Y: 20}, // inside the box: detector leak, must be dropped
		{X: 60, Y: 60}, // good
		{X: 5, Y: 5},   // tracking fails
		{X: 55, Y: 8},  // destination drifts into the box
	}
	fake := &fakePrimitives{
		DetectFn: func(gocv.Mat, int, float64, float64, *gocv.Mat) ([]flow.Point, error) {
			return origins, nil
		},
		TrackFn: func(_, _ gocv.Mat, pts []flow.Point, _, _ int, _ vision.TermParams) ([]flow.Point, []bool, []float32, error) {
			tracked := []flow.Point{
				{X: 21, Y: 21},
				{X: 61, Y: 59},
				{X: 6, Y: 6},
				{X: 50, Y: 12}, // inside the box
			}
			return tracked, []bool{true, true, false, true}, make([]float32, len(pts)), nil
		},
	}
	lk := newTestTracker(t, boxedConfig(), fake)

	rec, err := lk.Flow(grayMat(t, 64), grayMat(t, 64), nil)
	if err != nil {
		t.Fatalf("Flow failed: %v", err)
	}
	if rec.Len() != 1 {
		t.Fatalf("kept %d correspondences, want 1: %+v", rec.Len(), rec)
	}
	if rec.Origins[0] != (flow.Point{X: 60, Y: 60}) {
		t.Errorf("wrong survivor: %+v", rec.Origins[0])
	}
	for _, p := range append(rec.Origins, rec.Destinations...) {
		if lk.cfg.IgnoreBox.Contains(p) {
			t.Errorf("point %+v inside the ignore box survived filtering", p)
		}
	}
}

// TestMaskBuiltLazilyOncePerSession verifies the inclusion mask is built on
// first use, sized to the frame, and reused afterwards.
func TestMaskBuiltLazilyOncePerSession(t *testing.T) {
	fake := &fakePrimitives{}
	lk := newTestTracker(t, boxedConfig(), fake)

	prev, cur := grayMat(t, 64), grayMat(t, 64)
	for i := 0; i < 2; i++ {
		if _, err := lk.Flow(prev, cur, nil); err != nil {
			t.Fatalf("Flow %d failed: %v", i, err)
		}
	}

	if len(fake.Masks) != 2 {
		t.Fatalf("detection ran %d times, want 2", len(fake.Masks))
	}
	if fake.Masks[0] == nil {
		t.Fatal("no mask passed to detection despite an enabled ignore box")
	}
	if fake.Masks[0] != fake.Masks[1] {
		t.Error("mask rebuilt between frames; it must be cached for the session")
	}
	if fake.Masks[0].Rows() != 64 || fake.Masks[0].Cols() != 64 {
		t.Errorf("mask is %dx%d, want 64x64", fake.Masks[0].Cols(), fake.Masks[0].Rows())
	}
}

// TestNoMaskWithoutBox verifies detection runs unmasked when no ignore box
// is configured.
func TestNoMaskWithoutBox(t *testing.T) {
	fake := &fakePrimitives{}
	lk := newTestTracker(t, DefaultTrackerConfig(), fake)

	if _, err := lk.Flow(grayMat(t, 64), grayMat(t, 64), nil); err != nil {
		t.Fatalf("Flow failed: %v", err)
	}
	if len(fake.Masks) != 1 || fake.Masks[0] != nil {
		t.Errorf("expected one unmasked detection, got %v", fake.Masks)
	}
}

// TestNoFeaturesIsValid verifies an empty detection yields an empty record,
// not an error, and skips tracking altogether.
func TestNoFeaturesIsValid(t *testing.T) {
	tracked := false
	fake := &fakePrimitives{
		DetectFn: func(gocv.Mat, int, float64, float64, *gocv.Mat) ([]flow.Point, error) {
			return nil, nil
		},
		TrackFn: func(_, _ gocv.Mat, pts []flow.Point, _, _ int, _ vision.TermParams) ([]flow.Point, []bool, []float32, error) {
			tracked = true
			return pts, nil, nil, nil
		},
	}
	lk := newTestTracker(t, DefaultTrackerConfig(), fake)

	rec, err := lk.Flow(grayMat(t, 64), grayMat(t, 64), nil)
	if err != nil {
		t.Fatalf("Flow failed: %v", err)
	}
	if rec == nil || rec.Len() != 0 {
		t.Errorf("expected a valid empty record, got %+v", rec)
	}
	if tracked {
		t.Error("tracking ran with no features")
	}
}

// TestAnchorSkipsDetection verifies a supplied anchor bypasses detection and
// is tracked directly.
func TestAnchorSkipsDetection(t *testing.T) {
	var trackedOrigins []flow.Point
	fake := &fakePrimitives{
		TrackFn: func(_, _ gocv.Mat, pts []flow.Point, _, _ int, _ vision.TermParams) ([]flow.Point, []bool, []float32, error) {
			trackedOrigins = pts
			status := make([]bool, len(pts))
			for i := range status {
				status[i] = true
			}
			return pts, status, make([]float32, len(pts)), nil
		},
	}
	lk := newTestTracker(t, DefaultTrackerConfig(), fake)

	anchor := []flow.Point{{X: 2, Y: 3}, {X: 30, Y: 31}}
	rec, err := lk.Flow(grayMat(t, 64), grayMat(t, 64), anchor)
	if err != nil {
		t.Fatalf("Flow failed: %v", err)
	}
	if fake.DetectCalls != 0 {
		t.Errorf("detection ran despite an anchor: %d calls", fake.DetectCalls)
	}
	if len(trackedOrigins) != 2 || trackedOrigins[0] != anchor[0] {
		t.Errorf("anchor not tracked: %+v", trackedOrigins)
	}
	if rec.Len() != 2 {
		t.Errorf("kept %d correspondences, want 2", rec.Len())
	}
}
