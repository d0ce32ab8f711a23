//go:build !opus
// +build !opus

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStubDecodeSubstitutesSilence(t *testing.T) {
	dec, err := NewDecoder()
	require.NoError(t, err)
	pcm, ok := dec.Decode([]byte{0x01, 0x02})
	require.False(t, ok)
	require.Equal(t, SilenceFrame, pcm)
}

func TestStubEncodeReturnsErrNoOpus(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	_, err = enc.Encode(make([]int16, FrameSamples*Channels))
	require.ErrorIs(t, err, ErrNoOpus)
}
