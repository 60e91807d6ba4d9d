// Package flow defines the motion-data model exchanged between the feature
// tracker and its consumers, together with its wire codec.
//
// A Record pairs the positions of tracked features across two consecutive
// frames. A nil *Record means "no flow available", which is the expected
// value for the first frame of a stream; an empty Record (zero
// correspondences) is a valid tracking result, not an error.
package flow

import "fmt"

// Point is a 2D coordinate in frame-pixel space.
//
// Coordinates are float32 to match the precision the tracking primitives
// operate in.
type Point struct {
	X float32 `cbor:"x"`
	Y float32 `cbor:"y"`
}

// Record is a set of point correspondences between two frames.
// Destinations[i] is the tracked position of Origins[i] in the later frame;
// index alignment is the only link between the two sequences.
type Record struct {
	// Origins are feature positions in the earlier frame.
	Origins []Point `cbor:"origins"`
	// Destinations are the matching positions in the later frame.
	Destinations []Point `cbor:"destinations"`
}

// Len returns the number of correspondences.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Origins)
}

// Validate reports whether the two sequences are index-aligned.
func (r *Record) Validate() error {
	if r == nil {
		return nil
	}
	if len(r.Origins) != len(r.Destinations) {
		return fmt.Errorf("flow: mismatched correspondence lengths: %d origins, %d destinations",
			len(r.Origins), len(r.Destinations))
	}
	return nil
}
