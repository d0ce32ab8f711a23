package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/discord-voice-lab/internal/voice/codec"
	"github.com/discord-voice-lab/internal/voice/rtpcrypto"
)

func TestBuildQueueAdvancesSequenceAndTimestamp(t *testing.T) {
	var key [32]byte
	enc, err := codec.NewEncoder()
	require.NoError(t, err)

	s := NewEncodeSession(enc, &key, 42, 10, 960*10)

	pcm := make([]byte, FrameBytes*3) // exactly 3 full frames
	queue, err := s.BuildQueue(pcm)
	require.NoError(t, err)
	require.Len(t, queue, 3)

	for i, frame := range queue {
		require.Equal(t, uint16(10+i), frame.Sequence)
		require.Equal(t, uint32(960*10+960*i), frame.Timestamp)

		parsed, err := rtpcrypto.ParseHeader(frame.Packet)
		require.NoError(t, err)
		require.Equal(t, uint32(42), parsed.SSRC)
	}
	require.Equal(t, uint16(13), s.Sequence())
}

func TestBuildQueueZeroPadsFinalPartialFrame(t *testing.T) {
	var key [32]byte
	enc, err := codec.NewEncoder()
	require.NoError(t, err)
	s := NewEncodeSession(enc, &key, 1, 0, 0)

	pcm := make([]byte, FrameBytes+100) // one full frame + partial
	queue, err := s.BuildQueue(pcm)
	require.NoError(t, err)
	require.Len(t, queue, 2)
}

func TestBuildQueueRefusesSequenceWrap(t *testing.T) {
	var key [32]byte
	enc, err := codec.NewEncoder()
	require.NoError(t, err)
	s := NewEncodeSession(enc, &key, 1, 65534, 0)

	pcm := make([]byte, FrameBytes*3)
	_, err = s.BuildQueue(pcm)
	require.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestBuildQueueEmptyInput(t *testing.T) {
	var key [32]byte
	enc, err := codec.NewEncoder()
	require.NoError(t, err)
	s := NewEncodeSession(enc, &key, 1, 0, 0)

	queue, err := s.BuildQueue(nil)
	require.NoError(t, err)
	require.Nil(t, queue)
}
