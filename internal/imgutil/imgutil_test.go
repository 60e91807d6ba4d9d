package imgutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/sayr777/GstStabilizer/pipeline"
)

func TestRoundTripGray(t *testing.T) {
	f := pipeline.Frame{
		Data:     []byte{0, 1, 2, 3, 4, 5},
		Width:    3,
		Height:   2,
		Channels: 1,
		PTS:      40 * time.Millisecond,
		Duration: 20 * time.Millisecond,
		Offset:   7,
	}

	m, err := MatOfFrame(f)
	if err != nil {
		t.Fatalf("MatOfFrame failed: %v", err)
	}
	defer m.Close()

	got, err := FrameOfMat(m, f)
	if err != nil {
		t.Fatalf("FrameOfMat failed: %v", err)
	}
	if !bytes.Equal(got.Data, f.Data) {
		t.Errorf("pixel data changed: got %v, want %v", got.Data, f.Data)
	}
	if got.Width != 3 || got.Height != 2 || got.Channels != 1 {
		t.Errorf("shape changed: %dx%dx%d", got.Width, got.Height, got.Channels)
	}
	if got.PTS != f.PTS || got.Duration != f.Duration || got.Offset != f.Offset {
		t.Errorf("timing metadata not propagated: %+v", got)
	}
}

func TestRoundTripColor(t *testing.T) {
	f := pipeline.Frame{
		Data:     bytes.Repeat([]byte{10, 20, 30}, 4),
		Width:    2,
		Height:   2,
		Channels: 3,
	}

	m, err := MatOfFrame(f)
	if err != nil {
		t.Fatalf("MatOfFrame failed: %v", err)
	}
	defer m.Close()
	if m.Channels() != 3 {
		t.Fatalf("mat has %d channels, want 3", m.Channels())
	}

	got, err := FrameOfMat(m, f)
	if err != nil {
		t.Fatalf("FrameOfMat failed: %v", err)
	}
	if !bytes.Equal(got.Data, f.Data) {
		t.Errorf("pixel data changed: got %v, want %v", got.Data, f.Data)
	}
}

func TestMatOfFrameRejectsShortData(t *testing.T) {
	f := pipeline.Frame{Data: []byte{1, 2, 3}, Width: 2, Height: 2, Channels: 1}
	if _, err := MatOfFrame(f); err == nil {
		t.Error("MatOfFrame accepted a frame with too few bytes")
	}
}

func TestMatOfFrameRejectsUnknownChannelCount(t *testing.T) {
	f := pipeline.Frame{Data: []byte{1, 2}, Width: 1, Height: 1, Channels: 2}
	if _, err := MatOfFrame(f); err == nil {
		t.Error("MatOfFrame accepted a two-channel frame")
	}
}

func TestGray(t *testing.T) {
	color := pipeline.Frame{
		Data:     bytes.Repeat([]byte{100, 100, 100}, 4),
		Width:    2,
		Height:   2,
		Channels: 3,
	}
	m, err := MatOfFrame(color)
	if err != nil {
		t.Fatalf("MatOfFrame failed: %v", err)
	}
	defer m.Close()

	gray := Gray(m)
	defer gray.Close()
	if gray.Channels() != 1 {
		t.Errorf("Gray returned %d channels, want 1", gray.Channels())
	}

	// Already-gray input comes back as an independent copy.
	again := Gray(gray)
	defer again.Close()
	again.SetUCharAt(0, 0, 255)
	if gray.GetUCharAt(0, 0) == 255 {
		t.Error("Gray returned a view instead of a copy")
	}
}
