// Package stabilize removes apparent camera motion from a frame stream.
//
// It contains the two processing stages distilled from the classic
// "virtual tripod" design: a FlowFinder that turns consecutive frames into
// point-correspondence records, and a Corrector that fits a perspective
// transform to those correspondences and warps each frame so the stream
// appears static.
package stabilize

import (
	"fmt"
	"image"

	"github.com/sayr777/GstStabilizer/flow"
)

// Algorithm selects how feature correspondences are found between frames.
type Algorithm int

const (
	// AlgorithmPointTracking detects corners once and follows them with
	// pyramidal Lucas-Kanade optical flow. Fast and precise, not good for
	// large changes between frames.
	AlgorithmPointTracking Algorithm = iota
	// AlgorithmRedetection finds descriptor-based features independently in
	// both frames and matches them. Slower, tolerates large motion.
	AlgorithmRedetection
)

// String returns the configuration-surface name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmPointTracking:
		return "point-tracking"
	case AlgorithmRedetection:
		return "feature-redetection"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm maps a configuration string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "point-tracking":
		return AlgorithmPointTracking, nil
	case "feature-redetection":
		return AlgorithmRedetection, nil
	default:
		return 0, fmt.Errorf("stabilize: unknown algorithm %q", s)
	}
}

// AccumulationMode selects how successive per-frame transforms combine into
// the running total the warp uses.
type AccumulationMode int

const (
	// ModeDirect replaces the accumulator with each new frame-pair
	// transform. The reference is rebased onto the corrected output every
	// frame, so each hop is a fresh, small transform.
	ModeDirect AccumulationMode = iota
	// ModeComposed multiplies each new transform onto the accumulator, which
	// then always maps the very first reference frame into the current
	// frame's coordinate space. Comparisons stay against raw geometry.
	ModeComposed
)

// String returns the configuration-surface name of the mode.
func (m AccumulationMode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeComposed:
		return "composed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseAccumulationMode maps a configuration string to an AccumulationMode.
func ParseAccumulationMode(s string) (AccumulationMode, error) {
	switch s {
	case "direct":
		return ModeDirect, nil
	case "composed":
		return ModeComposed, nil
	default:
		return 0, fmt.Errorf("stabilize: unknown accumulation mode %q", s)
	}
}

// IgnoreBox is an inclusive rectangular region excluded from feature
// detection and tracking. The sentinel value -1 in any coordinate disables
// the box; this matches the element property convention of the original
// configuration surface.
type IgnoreBox struct {
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// DisabledIgnoreBox returns the box with every coordinate at the disabled
// sentinel.
func DisabledIgnoreBox() IgnoreBox {
	return IgnoreBox{MinX: -1, MaxX: -1, MinY: -1, MaxY: -1}
}

// Enabled reports whether the box is active: it is disabled as soon as any
// coordinate holds the sentinel.
func (b IgnoreBox) Enabled() bool {
	return b.MinX != -1 && b.MaxX != -1 && b.MinY != -1 && b.MaxY != -1
}

// Rect returns the box as a half-open rectangle, the explicit representation
// used internally. Only meaningful when Enabled.
func (b IgnoreBox) Rect() image.Rectangle {
	return image.Rect(b.MinX, b.MinY, b.MaxX+1, b.MaxY+1)
}

// Contains reports whether p falls inside an enabled box.
func (b IgnoreBox) Contains(p flow.Point) bool {
	if !b.Enabled() {
		return false
	}
	return p.X >= float32(b.MinX) && p.X <= float32(b.MaxX) &&
		p.Y >= float32(b.MinY) && p.Y <= float32(b.MaxY)
}

// TrackerConfig holds the feature detection and tracking parameters.
type TrackerConfig struct {
	// CornerCount is the maximum number of corners to detect.
	CornerCount int
	// QualityLevel is the multiplier for the best corner eigenvalue below
	// which candidates are rejected.
	QualityLevel float64
	// MinDistance is the minimum Euclidean distance between detected
	// corners, in pixels.
	MinDistance int
	// WinSize is the side of the search window at each pyramid level.
	WinSize int
	// PyramidLevels is the maximal pyramid level number. 0 disables
	// pyramids (single level).
	PyramidLevels int
	// MaxIterations bounds the iterative flow search per point.
	MaxIterations int
	// Epsilon terminates the search once the update is that small.
	Epsilon float64
	// IgnoreBox excludes a region from detection and tracking.
	IgnoreBox IgnoreBox
}

// DefaultTrackerConfig returns the tracker defaults of the standalone flow
// finder stage.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		CornerCount:   20,
		QualityLevel:  0.1,
		MinDistance:   200,
		WinSize:       30,
		PyramidLevels: 4,
		MaxIterations: 50,
		Epsilon:       0.001,
		IgnoreBox:     DisabledIgnoreBox(),
	}
}

// Validate reports the first invalid parameter, if any.
func (c TrackerConfig) Validate() error {
	if c.CornerCount <= 0 {
		return fmt.Errorf("stabilize: corner count must be positive, got %d", c.CornerCount)
	}
	if c.QualityLevel <= 0 || c.QualityLevel > 1 {
		return fmt.Errorf("stabilize: corner quality level must be in (0, 1], got %g", c.QualityLevel)
	}
	if c.MinDistance <= 0 {
		return fmt.Errorf("stabilize: corner min distance must be positive, got %d", c.MinDistance)
	}
	if c.WinSize <= 0 {
		return fmt.Errorf("stabilize: window size must be positive, got %d", c.WinSize)
	}
	if c.PyramidLevels < 0 {
		return fmt.Errorf("stabilize: pyramid level must not be negative, got %d", c.PyramidLevels)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("stabilize: max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("stabilize: epsilon must be positive, got %g", c.Epsilon)
	}
	if b := c.IgnoreBox; b.Enabled() && (b.MinX > b.MaxX || b.MinY > b.MaxY) {
		return fmt.Errorf("stabilize: ignore box is inverted: (%d,%d)-(%d,%d)", b.MinX, b.MinY, b.MaxX, b.MaxY)
	}
	return nil
}

// CorrectorConfig holds the corrector parameters.
type CorrectorConfig struct {
	// Tracker configures feature detection and tracking against the
	// reference image.
	Tracker TrackerConfig
	// Algorithm selects the correspondence finder.
	Algorithm Algorithm
	// Mode selects how per-frame transforms accumulate.
	Mode AccumulationMode
	// ReprojThreshold is the maximum reprojection error, in pixels, for a
	// correspondence to count as an inlier during the robust fit.
	ReprojThreshold float64
}

// DefaultCorrectorConfig returns the corrector defaults. The corrector
// tracks more, closer corners than the standalone finder because its flow
// feeds a transform fit rather than visualization.
func DefaultCorrectorConfig() CorrectorConfig {
	tc := DefaultTrackerConfig()
	tc.CornerCount = 50
	tc.MinDistance = 50
	return CorrectorConfig{
		Tracker:         tc,
		Algorithm:       AlgorithmPointTracking,
		Mode:            ModeDirect,
		ReprojThreshold: 3,
	}
}

// Validate reports the first invalid parameter, if any.
func (c CorrectorConfig) Validate() error {
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	switch c.Algorithm {
	case AlgorithmPointTracking, AlgorithmRedetection:
	default:
		return fmt.Errorf("stabilize: unknown algorithm %d", int(c.Algorithm))
	}
	switch c.Mode {
	case ModeDirect, ModeComposed:
	default:
		return fmt.Errorf("stabilize: unknown accumulation mode %d", int(c.Mode))
	}
	if c.ReprojThreshold <= 0 {
		return fmt.Errorf("stabilize: reprojection threshold must be positive, got %g", c.ReprojThreshold)
	}
	return nil
}
