package stabilize

import (
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/sayr777/GstStabilizer/flow"
	"github.com/sayr777/GstStabilizer/internal/imgutil"
	"github.com/sayr777/GstStabilizer/pipeline"
)

// FlowFinder is the pipeline stage that turns a frame stream into a
// motion-data stream. For every input frame it emits one packet carrying
// the serialized flow record between the previous frame and this one,
// stamped with this frame's timing metadata, so a muxer downstream can
// re-join motion data with the frames it was computed from.
//
// The first frame of a stream has no predecessor; its packet carries the
// "no flow" record.
type FlowFinder struct {
	finder Finder
	out    pipeline.Pusher
	log    *slog.Logger

	prev    gocv.Mat
	hasPrev bool
}

// NewFlowFinder builds the stage around a point-tracking finder. Output
// packets go to out.
func NewFlowFinder(cfg TrackerConfig, out pipeline.Pusher, log *slog.Logger) (*FlowFinder, error) {
	if log == nil {
		log = slog.Default()
	}
	if out == nil {
		out = pipeline.Discard
	}
	finder, err := NewLucasKanade(cfg, nil, log)
	if err != nil {
		return nil, err
	}
	return &FlowFinder{finder: finder, out: out, log: log}, nil
}

// Push implements pipeline.Pusher. It accepts single-channel frames and
// converts three-channel input to gray.
func (ff *FlowFinder) Push(f pipeline.Frame) error {
	img, err := imgutil.MatOfFrame(f)
	if err != nil {
		return fmt.Errorf("flow finder: %w", err)
	}
	gray := imgutil.Gray(img)
	img.Close()

	var rec *flow.Record
	if ff.hasPrev {
		rec, err = ff.finder.Flow(ff.prev, gray, nil)
		if err != nil {
			gray.Close()
			return fmt.Errorf("flow finder: %w", err)
		}
	}

	data, err := flow.Marshal(rec)
	if err != nil {
		gray.Close()
		return fmt.Errorf("flow finder: %w", err)
	}

	if ff.hasPrev {
		ff.prev.Close()
	}
	ff.prev = gray
	ff.hasPrev = true

	ff.log.Debug("flow finder: record emitted", "pts", f.PTS, "correspondences", rec.Len())
	return ff.out.Push(f.WithData(data, 0, 0, 0))
}

// Close releases the retained previous frame and the finder.
func (ff *FlowFinder) Close() error {
	if ff.hasPrev {
		ff.prev.Close()
		ff.hasPrev = false
	}
	return ff.finder.Close()
}
