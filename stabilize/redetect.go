package stabilize

import (
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/sayr777/GstStabilizer/flow"
)

// ratioThreshold is the Lowe ratio test cutoff: a match is kept only when
// its best distance is well below the second best.
const ratioThreshold = 0.75

// Redetect finds correspondences by detecting descriptor-based features
// independently in both frames and matching them. Unlike LucasKanade it has
// no notion of following a point, so it tolerates large inter-frame motion
// at the cost of speed.
type Redetect struct {
	box     IgnoreBox
	orb     gocv.ORB
	matcher gocv.BFMatcher
	log     *slog.Logger
}

var _ Finder = (*Redetect)(nil)

// NewRedetect builds a feature-redetection finder. Only the corner count and
// ignore box of cfg apply; the flow-search parameters have no meaning here.
func NewRedetect(cfg TrackerConfig, log *slog.Logger) (*Redetect, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redetect{
		box:     cfg.IgnoreBox,
		orb:     gocv.NewORBWithParams(cfg.CornerCount, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20),
		matcher: gocv.NewBFMatcherWithParams(gocv.NormHamming, false),
		log:     log,
	}, nil
}

// Flow implements Finder. The anchor is ignored: redetection starts from
// scratch every frame, which is the point of this algorithm.
func (f *Redetect) Flow(prev, cur gocv.Mat, _ []flow.Point) (*flow.Record, error) {
	noMask := gocv.NewMat()
	defer noMask.Close()

	kpPrev, descPrev := f.orb.DetectAndCompute(prev, noMask)
	defer descPrev.Close()
	kpCur, descCur := f.orb.DetectAndCompute(cur, noMask)
	defer descCur.Close()

	if len(kpPrev) == 0 || len(kpCur) == 0 {
		return &flow.Record{}, nil
	}

	matches := f.matcher.KNNMatch(descPrev, descCur, 2)
	rec := &flow.Record{}
	for _, m := range matches {
		if len(m) < 2 || m[0].Distance >= ratioThreshold*m[1].Distance {
			continue
		}
		origin := flow.Point{X: float32(kpPrev[m[0].QueryIdx].X), Y: float32(kpPrev[m[0].QueryIdx].Y)}
		dest := flow.Point{X: float32(kpCur[m[0].TrainIdx].X), Y: float32(kpCur[m[0].TrainIdx].Y)}
		if f.box.Contains(origin) || f.box.Contains(dest) {
			continue
		}
		rec.Origins = append(rec.Origins, origin)
		rec.Destinations = append(rec.Destinations, dest)
	}
	f.log.Debug("redetect: flow computed",
		"features", len(kpPrev),
		"matches", len(matches),
		"kept", rec.Len(),
	)
	return rec, nil
}

// Close releases the detector and matcher.
func (f *Redetect) Close() error {
	if err := f.orb.Close(); err != nil {
		return err
	}
	return f.matcher.Close()
}
