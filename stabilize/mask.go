package stabilize

import (
	"image"

	"gocv.io/x/gocv"
)

// buildMask builds the per-pixel inclusion mask for an ignore box: non-zero
// everywhere except inside the box, where it is zero. It is built once per
// tracking session, on the first frame whose dimensions are known; frame
// dimensions are assumed constant for the whole stream.
func buildMask(box IgnoreBox, width, height int) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 0, 0, 0), height, width, gocv.MatTypeCV8UC1)
	r := box.Rect().Intersect(image.Rect(0, 0, width, height))
	if !r.Empty() {
		roi := mask.Region(r)
		roi.SetTo(gocv.NewScalar(0, 0, 0, 0))
		roi.Close()
	}
	return mask
}
