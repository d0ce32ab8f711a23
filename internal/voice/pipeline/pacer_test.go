package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sentAt []time.Time
}

func (r *recordingSender) Send(packet []byte) error {
	r.sentAt = append(r.sentAt, time.Now())
	return nil
}

func TestPaceEmitsOneFramePer20ms(t *testing.T) {
	queue := make([]Frame, 5)
	sender := &recordingSender{}

	var started, stopped bool
	start := time.Now()
	err := Pace(context.Background(), sender, queue,
		func() { started = true },
		func() { stopped = true },
	)
	require.NoError(t, err)
	require.True(t, started)
	require.True(t, stopped)
	require.Len(t, sender.sentAt, 5)

	// frame i should land close to start + i*20ms, not drift cumulatively.
	for i, ts := range sender.sentAt {
		target := start.Add(time.Duration(i) * FrameInterval)
		require.WithinDuration(t, target, ts, 15*time.Millisecond)
	}
}

func TestPaceRespectsCancellation(t *testing.T) {
	queue := make([]Frame, 100)
	sender := &recordingSender{}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err := Pace(ctx, sender, queue, nil, nil)
	require.Error(t, err)
	require.Less(t, len(sender.sentAt), 100)
}

func TestPaceEmptyQueueNoOp(t *testing.T) {
	called := false
	err := Pace(context.Background(), &recordingSender{}, nil, func() { called = true }, nil)
	require.NoError(t, err)
	require.False(t, called)
}
