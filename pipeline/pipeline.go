// Package pipeline defines the frame container and the push contract shared
// by every processing stage in this repository.
//
// The model is deliberately simple: a stage receives one frame at a time on
// an input port, processes it to completion, and performs zero or more
// synchronous pushes on its output port before returning. There is exactly
// one thread of control; no stage queues work in the background.
//
// # Frame Ownership
//
// A Frame is exclusively owned by whichever stage currently holds it.
// Ownership transfers on Push. A frame must never be mutated after it has
// been pushed downstream; stages that need to alter pixel data work on a
// copy and derive a new frame with WithData.
package pipeline

import "time"

// Frame is a single video frame (or a serialized side-channel record riding
// in a frame container) together with its stream metadata.
//
// Timing metadata is carried through transformations unchanged unless a
// stage explicitly computes new values.
type Frame struct {
	// Data contains the raw pixel bytes, row-major, tightly packed.
	// For side-channel packets it holds the serialized record instead.
	Data []byte

	// Width of the frame in pixels. Zero for side-channel packets.
	Width int

	// Height of the frame in pixels. Zero for side-channel packets.
	Height int

	// Channels is the number of 8-bit channels per pixel (1 = gray, 3 = RGB).
	Channels int

	// PTS is the presentation timestamp, monotonic and unique within a
	// stream. It is the join key for timestamp-synchronized streams.
	PTS time.Duration

	// Duration is how long the frame is presented. Optional.
	Duration time.Duration

	// Offset is the source-assigned sequencing offset (frame number for
	// video). Optional.
	Offset uint64

	// OffsetEnd is the end sequencing offset. Optional.
	OffsetEnd uint64
}

// WithData derives a new frame carrying data with the given geometry while
// propagating f's timing metadata unchanged.
func (f Frame) WithData(data []byte, width, height, channels int) Frame {
	return Frame{
		Data:      data,
		Width:     width,
		Height:    height,
		Channels:  channels,
		PTS:       f.PTS,
		Duration:  f.Duration,
		Offset:    f.Offset,
		OffsetEnd: f.OffsetEnd,
	}
}

// Pusher accepts frames from an upstream stage.
//
// Push is synchronous: it returns only once the frame has been fully
// processed, including any downstream pushes it triggered. A non-nil error
// is fatal for the stream unless the pushing stage documents otherwise.
type Pusher interface {
	Push(Frame) error
}

// PusherFunc adapts a function to the Pusher interface.
type PusherFunc func(Frame) error

// Push calls fn(f).
func (fn PusherFunc) Push(f Frame) error { return fn(f) }

// Discard is a Pusher that drops every frame. Useful as a default output so
// stages never have to nil-check their downstream.
var Discard Pusher = PusherFunc(func(Frame) error { return nil })
