// Package imgutil converts between pipeline frames and OpenCV matrices.
package imgutil

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/sayr777/GstStabilizer/pipeline"
)

// MatOfFrame builds a Mat holding a copy of the frame's pixels.
// The caller owns the returned Mat and must Close it.
func MatOfFrame(f pipeline.Frame) (gocv.Mat, error) {
	mt, err := matType(f.Channels)
	if err != nil {
		return gocv.Mat{}, err
	}
	if want := f.Width * f.Height * f.Channels; len(f.Data) != want {
		return gocv.Mat{}, fmt.Errorf("imgutil: frame data is %d bytes, want %d for %dx%dx%d",
			len(f.Data), want, f.Width, f.Height, f.Channels)
	}
	m, err := gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("imgutil: %w", err)
	}
	return m, nil
}

// FrameOfMat builds a frame from a Mat, propagating model's timing metadata
// unchanged.
func FrameOfMat(m gocv.Mat, model pipeline.Frame) (pipeline.Frame, error) {
	data, err := m.DataPtrUint8()
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("imgutil: %w", err)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return model.WithData(buf, m.Cols(), m.Rows(), m.Channels()), nil
}

// Gray returns a single-channel copy of m. A Mat that is already gray is
// cloned so the caller always owns the result.
func Gray(m gocv.Mat) gocv.Mat {
	if m.Channels() == 1 {
		return m.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(m, &gray, gocv.ColorRGBToGray)
	return gray
}

func matType(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1, nil
	case 3:
		return gocv.MatTypeCV8UC3, nil
	case 4:
		return gocv.MatTypeCV8UC4, nil
	default:
		return 0, fmt.Errorf("imgutil: unsupported channel count %d", channels)
	}
}
