package rtpcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSendHeaderFields(t *testing.T) {
	h := NewSendHeader(42, 960, 0xABCD1234)
	require.Equal(t, uint8(2), h.Version())
	require.False(t, h.HasExtension())
	require.False(t, h.HasMarker())

	encoded := h.Bytes()
	parsed, err := ParseHeader(encoded[:])
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestParseHeaderRejectsShortBuffer(t *testing.T) {
	_, err := ParseHeader(make([]byte, 11))
	require.ErrorIs(t, err, ErrPacketTooShort)
}

func TestParseHeaderRejectsBadVersion(t *testing.T) {
	buf := make([]byte, 12)
	buf[0] = 0x40 // version 1
	_, err := ParseHeader(buf)
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestStripExtensionNoOpWithoutExtension(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	require.Equal(t, payload, StripExtension(payload))
}

func TestStripExtensionRemovesOneByteHeader(t *testing.T) {
	// 0xBEDE profile, length=1 (4-byte extension element), then 4 bytes of
	// opus payload.
	ext := []byte{0xBE, 0xDE, 0x00, 0x01, 0xAA, 0xBB, 0xCC, 0xDD, 0x10, 0x20, 0x30, 0x40}
	stripped := StripExtension(ext)
	require.Equal(t, []byte{0x10, 0x20, 0x30, 0x40}, stripped)
}

func TestIsAudioPacket(t *testing.T) {
	require.True(t, IsAudioPacket(append([]byte{0x80}, make([]byte, 11)...)))
	require.True(t, IsAudioPacket(append([]byte{0x90}, make([]byte, 11)...)))
	require.False(t, IsAudioPacket(append([]byte{0x01}, make([]byte, 11)...)))
	require.False(t, IsAudioPacket(make([]byte, 11)))
}
