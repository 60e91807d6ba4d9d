// Package overlay draws motion-data records onto frames, the visualization
// consumer of the muxer.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/sayr777/GstStabilizer/flow"
	"github.com/sayr777/GstStabilizer/internal/imgutil"
	"github.com/sayr777/GstStabilizer/pipeline"
)

// Drawer renders one arrow per correspondence, from origin to destination.
type Drawer struct {
	// Color of the arrows.
	Color color.RGBA
	// Thickness of the arrow lines, in pixels.
	Thickness int
}

// NewDrawer returns a drawer with the traditional red, 2px arrows.
func NewDrawer() Drawer {
	return Drawer{Color: color.RGBA{R: 255, A: 255}, Thickness: 2}
}

// Draw renders rec's correspondences onto img.
func (d Drawer) Draw(img *gocv.Mat, rec *flow.Record) {
	for i := range rec.Origins {
		o, e := rec.Origins[i], rec.Destinations[i]
		gocv.ArrowedLine(img,
			image.Pt(int(o.X), int(o.Y)),
			image.Pt(int(e.X), int(e.Y)),
			d.Color, d.Thickness)
	}
}

// Annotator is a muxer consumer that pushes each frame downstream with its
// motion arrows drawn on. Frames without a record pass through untouched.
type Annotator struct {
	drawer Drawer
	out    pipeline.Pusher
	log    *slog.Logger
}

// NewAnnotator builds the annotator. Annotated frames go to out.
func NewAnnotator(out pipeline.Pusher, log *slog.Logger) *Annotator {
	if out == nil {
		out = pipeline.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &Annotator{drawer: NewDrawer(), out: out, log: log}
}

// Combine implements the muxer combine operation.
func (a *Annotator) Combine(f pipeline.Frame, rec *flow.Record) error {
	if rec == nil {
		return a.out.Push(f)
	}
	img, err := imgutil.MatOfFrame(f)
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	defer img.Close()

	a.drawer.Draw(&img, rec)
	annotated, err := imgutil.FrameOfMat(img, f)
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	a.log.Debug("overlay: arrows drawn", "pts", f.PTS, "arrows", rec.Len())
	return a.out.Push(annotated)
}
