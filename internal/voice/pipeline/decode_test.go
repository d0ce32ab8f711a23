package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/discord-voice-lab/internal/voice/codec"
	"github.com/discord-voice-lab/internal/voice/rtpcrypto"
)

func TestHandleDatagramRejectsGarbage(t *testing.T) {
	var key [32]byte
	dec, err := codec.NewDecoder()
	require.NoError(t, err)
	s := NewDecodeSession(dec, &key)

	_, ok := s.HandleDatagram([]byte{0x01, 0x02, 0x03})
	require.False(t, ok)
}

func TestHandleDatagramTreatsShortPlaintextAsSilence(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	dec, err := codec.NewDecoder()
	require.NoError(t, err)
	s := NewDecodeSession(dec, &key)

	header := rtpcrypto.NewSendHeader(1, 960, 42)
	sealed := rtpcrypto.Seal([]byte{0x00}, 1, &key) // 1-byte "silence" opus frame

	hb := header.Bytes()
	datagram := append(append([]byte{}, hb[:]...), sealed...)

	chunk, ok := s.HandleDatagram(datagram)
	require.True(t, ok)
	require.True(t, chunk.Silence)
	require.Equal(t, uint32(42), chunk.SSRC)
	require.Equal(t, codec.SilenceFrame, chunk.PCM)
}

func TestHandleDatagramCountsDecryptFailures(t *testing.T) {
	var key, otherKey [32]byte
	for i := range key {
		key[i] = byte(i)
		otherKey[i] = byte(255 - i)
	}
	dec, err := codec.NewDecoder()
	require.NoError(t, err)
	s := NewDecodeSession(dec, &otherKey)

	header := rtpcrypto.NewSendHeader(1, 960, 42)
	sealed := rtpcrypto.Seal([]byte("payload-long-enough"), 1, &key)
	hb := header.Bytes()
	datagram := append(append([]byte{}, hb[:]...), sealed...)

	_, ok := s.HandleDatagram(datagram)
	require.False(t, ok)
	require.Equal(t, uint64(1), s.DecryptFailures())
}
