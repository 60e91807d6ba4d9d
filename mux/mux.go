// Package mux joins a motion-data stream with its originating frame stream.
//
// The two streams are expected to advance in strict timestamp lockstep: the
// flow finder emits exactly one motion packet per frame, stamped with that
// frame's timestamp. The muxer pairs the heads of its two queues and hands
// each matched pair to a pluggable combine operation. A timestamp mismatch
// means the streams have drifted apart (one side lost a frame) and is fatal:
// resynchronizing silently would risk pairing motion data with the wrong
// frame, which is worse than stopping.
package mux

import (
	"fmt"
	"log/slog"

	"github.com/sayr777/GstStabilizer/flow"
	"github.com/sayr777/GstStabilizer/pipeline"
)

// Combine consumes a matched (frame, motion record) pair. The record is nil
// when no flow was available for the frame. What combining means is entirely
// up to the consumer: drawing arrows, feeding a corrector, collecting
// statistics.
type Combine func(main pipeline.Frame, rec *flow.Record) error

// Stats is a snapshot of muxer state.
type Stats struct {
	// Matched is the number of pairs handed to the combine operation.
	Matched uint64
	// PendingMain is the number of frames waiting for their motion packet.
	PendingMain int
	// PendingFlow is the number of motion packets waiting for their frame.
	PendingFlow int
}

// Muxer pairs frames and motion packets by timestamp.
//
// It is driven from a single thread of control: a push on either port
// triggers at most one synchronous pairing pass before returning.
type Muxer struct {
	combine Combine
	log     *slog.Logger

	main    []pipeline.Frame
	flowQ   []pipeline.Frame
	matched uint64
}

// New builds a muxer delivering matched pairs to combine.
func New(combine Combine, log *slog.Logger) (*Muxer, error) {
	if combine == nil {
		return nil, fmt.Errorf("mux: combine operation is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Muxer{combine: combine, log: log}, nil
}

// MainPort returns the input port for the frame stream.
func (m *Muxer) MainPort() pipeline.Pusher { return pipeline.PusherFunc(m.PushMain) }

// FlowPort returns the input port for the motion-data stream.
func (m *Muxer) FlowPort() pipeline.Pusher { return pipeline.PusherFunc(m.PushFlow) }

// PushMain queues a frame and attempts a pairing.
func (m *Muxer) PushMain(f pipeline.Frame) error {
	m.main = append(m.main, f)
	return m.tryMux()
}

// PushFlow queues a motion packet and attempts a pairing.
func (m *Muxer) PushFlow(p pipeline.Frame) error {
	m.flowQ = append(m.flowQ, p)
	return m.tryMux()
}

// Stats returns the current muxer state.
func (m *Muxer) Stats() Stats {
	return Stats{Matched: m.matched, PendingMain: len(m.main), PendingFlow: len(m.flowQ)}
}

// tryMux pairs queue heads for as long as both queues have data. A frame
// waiting alone is left queued; the muxer never blocks on the other side.
func (m *Muxer) tryMux() error {
	for len(m.main) > 0 && len(m.flowQ) > 0 {
		frame, packet := m.main[0], m.flowQ[0]
		m.main = m.main[1:]
		m.flowQ = m.flowQ[1:]

		if frame.PTS != packet.PTS {
			return &pipeline.DesyncError{MainPTS: frame.PTS, FlowPTS: packet.PTS}
		}
		rec, err := flow.Unmarshal(packet.Data)
		if err != nil {
			return fmt.Errorf("mux: %w", err)
		}
		m.matched++
		m.log.Debug("mux: pair matched", "pts", frame.PTS, "correspondences", rec.Len())
		if err := m.combine(frame, rec); err != nil {
			return err
		}
	}
	return nil
}
