// Command virtualtripod stabilizes a video file, or annotates it with its
// optical flow, using a GStreamer decode pipeline as the frame source.
//
// Usage examples:
//
//	virtualtripod --input shaky.mp4 --output steady.avi
//	virtualtripod --input shaky.mp4 --output steady.avi --accumulation composed
//	virtualtripod --input shaky.mp4 --output arrows.avi --draw-arrows
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/sayr777/GstStabilizer/mux"
	"github.com/sayr777/GstStabilizer/overlay"
	"github.com/sayr777/GstStabilizer/pipeline"
	"github.com/sayr777/GstStabilizer/stabilize"
)

const version = "v0.1.0"

func main() {
	input := flag.String("input", "", "input video file (required)")
	output := flag.String("output", "", "output video file (required)")
	drawArrows := flag.Bool("draw-arrows", false, "draw motion arrows instead of stabilizing")
	algorithm := flag.String("algorithm", "point-tracking", "correspondence algorithm: point-tracking, feature-redetection")
	accumulation := flag.String("accumulation", "direct", "transform accumulation mode: direct, composed")
	cornerCount := flag.Int("corner-count", 0, "number of corners to detect (0 = stage default)")
	quality := flag.Float64("corner-quality-level", 0.1, "minimal accepted corner quality")
	minDistance := flag.Int("corner-min-distance", 0, "minimum distance between corners (0 = stage default)")
	winSize := flag.Int("win-size", 30, "search window size per pyramid level")
	pyramidLevel := flag.Int("pyramid-level", 4, "maximal pyramid level")
	maxIterations := flag.Int("max-iterations", 50, "maximum flow iterations")
	epsilon := flag.Float64("epsilon", 0.001, "flow termination accuracy")
	boxMinX := flag.Int("ignore-box-min-x", -1, "left limit of the ignore box, -1 disables")
	boxMaxX := flag.Int("ignore-box-max-x", -1, "right limit of the ignore box, -1 disables")
	boxMinY := flag.Int("ignore-box-min-y", -1, "top limit of the ignore box, -1 disables")
	boxMaxY := flag.Int("ignore-box-max-y", -1, "bottom limit of the ignore box, -1 disables")
	fps := flag.Float64("fps", 30, "output frame rate")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("virtualtripod %s\n", version)
		os.Exit(0)
	}
	if *input == "" || *output == "" {
		fmt.Fprintf(os.Stderr, "Error: --input and --output are required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  virtualtripod --input shaky.mp4 --output steady.avi\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger = logger.With("run_id", uuid.New().String())

	tc := stabilize.DefaultTrackerConfig()
	if !*drawArrows {
		tc = stabilize.DefaultCorrectorConfig().Tracker
	}
	if *cornerCount > 0 {
		tc.CornerCount = *cornerCount
	}
	if *minDistance > 0 {
		tc.MinDistance = *minDistance
	}
	tc.QualityLevel = *quality
	tc.WinSize = *winSize
	tc.PyramidLevels = *pyramidLevel
	tc.MaxIterations = *maxIterations
	tc.Epsilon = *epsilon
	tc.IgnoreBox = stabilize.IgnoreBox{MinX: *boxMinX, MaxX: *boxMaxX, MinY: *boxMinY, MaxY: *boxMaxY}

	alg, err := stabilize.ParseAlgorithm(*algorithm)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	mode, err := stabilize.ParseAccumulationMode(*accumulation)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	writer := newWriterSink(*output, *fps, logger)
	defer writer.Close()

	// Assemble the processing chain: either the corrector alone, or the
	// finder feeding one muxer port while raw frames feed the other, with
	// the annotator combining the matched pairs.
	var head pipeline.Pusher
	var closers []interface{ Close() error }
	if *drawArrows {
		annotator := overlay.NewAnnotator(writer, logger)
		muxer, err := mux.New(annotator.Combine, logger)
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
		finder, err := stabilize.NewFlowFinder(tc, muxer.FlowPort(), logger)
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
		closers = append(closers, finder)
		head = pipeline.PusherFunc(func(f pipeline.Frame) error {
			if err := finder.Push(f); err != nil {
				return err
			}
			return muxer.PushMain(f)
		})
	} else {
		cfg := stabilize.CorrectorConfig{
			Tracker:         tc,
			Algorithm:       alg,
			Mode:            mode,
			ReprojThreshold: 3,
		}
		corrector, err := stabilize.NewCorrector(cfg, nil, writer, logger)
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
		closers = append(closers, corrector)
		head = corrector
	}

	logger.Info("starting",
		"input", *input,
		"output", *output,
		"algorithm", alg.String(),
		"accumulation", mode.String(),
		"draw_arrows", *drawArrows,
	)

	frames, err := decode(*input, head, logger)
	for _, cl := range closers {
		cl.Close()
	}
	if err != nil {
		logger.Error("stream failed", "frames", frames, "error", err)
		os.Exit(1)
	}
	logger.Info("done", "frames", frames)
}
