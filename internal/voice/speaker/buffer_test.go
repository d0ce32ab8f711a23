package speaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/discord-voice-lab/internal/voice/model"
)

func TestAppendCreatesPlaceholderThenRebindsOnLateBinding(t *testing.T) {
	var mu sync.Mutex
	var flushed []model.Utterance

	b := New(50*time.Millisecond, time.Hour, func(u model.Utterance, corrID string) {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, u)
	})

	b.Append(42, make([]byte, 100), "")
	b.Bind(42, "user-1", "Alice")
	b.Append(42, make([]byte, 100), "")

	b.FlushAll()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, flushed, 1)
	require.Equal(t, "user-1", flushed[0].SpeakerID)
}

func TestAppendWithoutBindingUsesPlaceholder(t *testing.T) {
	var got model.Utterance
	b := New(time.Hour, time.Hour, func(u model.Utterance, corrID string) { got = u })

	b.Append(7, make([]byte, 100), "")
	b.FlushAll()

	require.Equal(t, model.PlaceholderUserID(7), got.SpeakerID)
}

func TestHardCapForcesFlush(t *testing.T) {
	var flushes int
	var mu sync.Mutex
	b := New(time.Hour, 100*time.Millisecond, func(u model.Utterance, corrID string) {
		mu.Lock()
		flushes++
		mu.Unlock()
	})

	// 100ms at 48kHz stereo 16-bit = bytesPerMs*100 bytes.
	chunk := make([]byte, bytesPerMs*150)
	b.Append(1, chunk, "")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, flushes)
}

func TestHardCapFlushesBeforeTriggeringChunk(t *testing.T) {
	var mu sync.Mutex
	var flushedLens []int
	b := New(time.Hour, 100*time.Millisecond, func(u model.Utterance, corrID string) {
		mu.Lock()
		flushedLens = append(flushedLens, len(u.PCM))
		mu.Unlock()
	})

	first := make([]byte, bytesPerMs*60)
	second := make([]byte, bytesPerMs*60) // first+second together exceed the 100ms cap

	b.Append(1, first, "")
	b.Append(1, second, "")
	b.FlushAll()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, flushedLens, 2)
	require.Equal(t, len(first), flushedLens[0], "the triggering chunk must not be folded into the flush it causes")
	require.Equal(t, len(second), flushedLens[1], "the triggering chunk begins the next utterance")
}

func TestSweepFlushesOnSilenceTimeout(t *testing.T) {
	var mu sync.Mutex
	var flushed bool
	b := New(20*time.Millisecond, time.Hour, func(u model.Utterance, corrID string) {
		mu.Lock()
		flushed = true
		mu.Unlock()
	})

	b.Append(3, make([]byte, 10), "")
	time.Sleep(40 * time.Millisecond)
	b.Sweep()

	mu.Lock()
	defer mu.Unlock()
	require.True(t, flushed)
}

func TestFlushEmptiesSlot(t *testing.T) {
	var flushes int
	b := New(time.Hour, time.Hour, func(u model.Utterance, corrID string) { flushes++ })
	b.Append(9, make([]byte, 10), "")
	b.FlushAll()
	b.FlushAll() // second call must be a no-op, not re-flush
	require.Equal(t, 1, flushes)
}
