package pipeline

import (
	"context"
	"time"
)

// FrameInterval is the voice wire cadence: one RTP packet per 20ms.
const FrameInterval = 20 * time.Millisecond

// Sender transmits one already-framed, already-sealed RTP packet.
type Sender interface {
	Send(packet []byte) error
}

// Pace emits each frame in queue at exactly one per 20ms, re-targeting the
// send time for frame i against start + i*FrameInterval rather than
// sleeping FrameInterval cumulatively (spec.md §4.4/§9): a free-running
// sleep loop accumulates scheduler drift across hundreds of frames until
// Discord's jitter buffer starts dropping them, whereas recomputing the
// target every iteration self-corrects after any single late send.
//
// It calls onStart before the first frame and onDone after the last,
// matching the speaking-flag on/off bracketing spec.md §4.4 requires.
// Cancelling ctx stops emission; already-sent frames are not unsent, and any
// remaining queue is dropped (spec.md §4.4: "drains the queue").
func Pace(ctx context.Context, sender Sender, queue []Frame, onStart, onDone func()) error {
	if len(queue) == 0 {
		return nil
	}

	if onStart != nil {
		onStart()
	}
	if onDone != nil {
		defer onDone()
	}

	start := time.Now()
	for i, frame := range queue {
		target := start.Add(time.Duration(i) * FrameInterval)
		delay := target.Sub(time.Now())
		if delay < time.Millisecond {
			delay = time.Millisecond
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		if err := sender.Send(frame.Packet); err != nil {
			return err
		}
	}
	return nil
}
