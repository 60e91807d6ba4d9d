package main

import (
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/sayr777/GstStabilizer/internal/imgutil"
	"github.com/sayr777/GstStabilizer/pipeline"
)

// writerSink writes pushed frames to a video file. The writer is opened
// lazily on the first frame, once the stream dimensions are known.
type writerSink struct {
	path string
	fps  float64
	log  *slog.Logger

	writer *gocv.VideoWriter
	bgr    gocv.Mat
}

func newWriterSink(path string, fps float64, log *slog.Logger) *writerSink {
	return &writerSink{path: path, fps: fps, log: log, bgr: gocv.NewMat()}
}

// Push implements pipeline.Pusher.
func (w *writerSink) Push(f pipeline.Frame) error {
	if w.writer == nil {
		writer, err := gocv.VideoWriterFile(w.path, "MJPG", w.fps, f.Width, f.Height, true)
		if err != nil {
			return fmt.Errorf("writer: %w", err)
		}
		w.writer = writer
		w.log.Info("writer: output opened", "path", w.path, "width", f.Width, "height", f.Height, "fps", w.fps)
	}

	img, err := imgutil.MatOfFrame(f)
	if err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	defer img.Close()

	// VideoWriter expects BGR.
	switch f.Channels {
	case 1:
		gocv.CvtColor(img, &w.bgr, gocv.ColorGrayToBGR)
	case 3:
		gocv.CvtColor(img, &w.bgr, gocv.ColorRGBToBGR)
	default:
		return fmt.Errorf("writer: unsupported channel count %d", f.Channels)
	}
	if err := w.writer.Write(w.bgr); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	return nil
}

func (w *writerSink) Close() error {
	w.bgr.Close()
	if w.writer == nil {
		return nil
	}
	return w.writer.Close()
}
