package stabilize

import (
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/sayr777/GstStabilizer/flow"
	"github.com/sayr777/GstStabilizer/vision"
)

// Finder produces point correspondences between two consecutive grayscale
// frames of identical dimensions.
type Finder interface {
	// Flow returns the correspondences between prev and cur. A non-nil
	// anchor supplies known feature positions in prev, letting the finder
	// skip detection; finders that re-detect every frame ignore it.
	//
	// Zero surviving correspondences is a valid result, returned as an
	// empty record, not an error.
	Flow(prev, cur gocv.Mat, anchor []flow.Point) (*flow.Record, error)

	// Close releases any cached per-session resources.
	Close() error
}

// NewFinder builds the finder for the configured algorithm. A nil vis uses
// the OpenCV-backed primitives.
func NewFinder(alg Algorithm, cfg TrackerConfig, vis vision.Primitives, log *slog.Logger) (Finder, error) {
	switch alg {
	case AlgorithmPointTracking:
		return NewLucasKanade(cfg, vis, log)
	case AlgorithmRedetection:
		return NewRedetect(cfg, log)
	default:
		return nil, fmt.Errorf("stabilize: unknown algorithm %d", int(alg))
	}
}
