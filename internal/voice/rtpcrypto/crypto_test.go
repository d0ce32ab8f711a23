package rtpcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}

	opusFrame := []byte("pretend-this-is-an-opus-frame")
	sequence := uint16(7)

	sealed := Seal(opusFrame, sequence, &key)

	plain, err := Open(sealed, &key)
	require.NoError(t, err)
	require.Equal(t, opusFrame, plain)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	var key, otherKey [32]byte
	for i := range key {
		key[i] = byte(i)
		otherKey[i] = byte(255 - i)
	}

	sequence := uint16(3)
	sealed := Seal([]byte("payload"), sequence, &key)

	_, err := Open(sealed, &otherKey)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestOpenRejectsShortPayload(t *testing.T) {
	var key [32]byte
	_, err := Open([]byte{0x01, 0x02}, &key)
	require.ErrorIs(t, err, ErrPayloadTooShort)
}
