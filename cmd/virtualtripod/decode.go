package main

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/sayr777/GstStabilizer/pipeline"
)

// decode runs a GStreamer decode pipeline over the input file and pushes
// every frame synchronously into sink, in presentation order. It returns
// the number of frames delivered.
//
// The appsink is pulled from the calling goroutine, so the whole processing
// chain stays single-threaded: one frame is decoded, processed to
// completion, then the next one is pulled.
func decode(path string, sink pipeline.Pusher, log *slog.Logger) (uint64, error) {
	gst.Init(nil)

	desc := fmt.Sprintf(
		"filesrc location=%q ! decodebin ! videoconvert ! video/x-raw,format=RGB ! appsink name=sink sync=false",
		path)
	gstPipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return 0, fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer gstPipeline.SetState(gst.StateNull)

	el, err := gstPipeline.GetElementByName("sink")
	if err != nil {
		return 0, fmt.Errorf("failed to find appsink: %w", err)
	}
	appsink := app.SinkFromElement(el)

	if err := gstPipeline.SetState(gst.StatePlaying); err != nil {
		return 0, fmt.Errorf("failed to start pipeline: %w", err)
	}

	var frames uint64
	for {
		if appsink.IsEOS() {
			return frames, nil
		}
		sample := appsink.PullSample()
		if sample == nil {
			// PullSample returns nil on EOS or flush; the EOS check above
			// decides which it was on the next iteration.
			if appsink.IsEOS() {
				return frames, nil
			}
			log.Warn("capture: failed to pull sample, skipping")
			continue
		}

		frame, err := frameOfSample(sample, frames)
		if err != nil {
			log.Warn("capture: dropping undecodable sample", "error", err)
			continue
		}
		frames++
		log.Debug("capture: frame decoded", "pts", frame.PTS, "offset", frame.Offset)
		if err := sink.Push(frame); err != nil {
			return frames, err
		}
	}
}

// frameOfSample copies a GStreamer sample into a pipeline frame. GStreamer
// reuses the underlying buffer, so the pixel data must be copied out.
func frameOfSample(sample *gst.Sample, seq uint64) (pipeline.Frame, error) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return pipeline.Frame{}, fmt.Errorf("sample without buffer")
	}

	caps := sample.GetCaps()
	if caps == nil {
		return pipeline.Frame{}, fmt.Errorf("sample without caps")
	}
	st := caps.GetStructureAt(0)
	wv, err := st.GetValue("width")
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("caps without width: %w", err)
	}
	hv, err := st.GetValue("height")
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("caps without height: %w", err)
	}
	width, ok := wv.(int)
	if !ok {
		return pipeline.Frame{}, fmt.Errorf("unexpected width type %T", wv)
	}
	height, ok := hv.(int)
	if !ok {
		return pipeline.Frame{}, fmt.Errorf("unexpected height type %T", hv)
	}

	mapInfo := buffer.Map(gst.MapRead)
	src := mapInfo.Bytes()
	if len(src) == 0 {
		buffer.Unmap()
		return pipeline.Frame{}, fmt.Errorf("empty buffer")
	}
	data := make([]byte, len(src))
	copy(data, src)
	buffer.Unmap()

	if want := width * height * 3; len(data) != want {
		return pipeline.Frame{}, fmt.Errorf("buffer is %d bytes, want %d for %dx%d RGB", len(data), want, width, height)
	}

	return pipeline.Frame{
		Data:      data,
		Width:     width,
		Height:    height,
		Channels:  3,
		PTS:       buffer.PresentationTimestamp(),
		Duration:  buffer.Duration(),
		Offset:    seq,
		OffsetEnd: seq + 1,
	}, nil
}
