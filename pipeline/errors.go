package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrDesync is returned when two streams expected to advance in lockstep
// present mismatched timestamps. It is fatal: continuing would silently
// pair motion data with the wrong frame, which is worse than stopping.
var ErrDesync = errors.New("pipeline: streams desynchronized")

// DesyncError reports the pair of timestamps that failed to match.
// It unwraps to ErrDesync.
type DesyncError struct {
	// MainPTS is the timestamp at the head of the main queue.
	MainPTS time.Duration
	// FlowPTS is the timestamp at the head of the motion-data queue.
	FlowPTS time.Duration
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("pipeline: streams desynchronized: main pts %v, flow pts %v", e.MainPTS, e.FlowPTS)
}

func (e *DesyncError) Unwrap() error { return ErrDesync }
