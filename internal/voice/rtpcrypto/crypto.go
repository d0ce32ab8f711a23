package rtpcrypto

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrDecryptFailed is returned when secretbox authentication fails.
var ErrDecryptFailed = errors.New("rtpcrypto: decryption failed")

// ErrPayloadTooShort is returned when a payload is too short to contain a
// lite-mode nonce tail.
var ErrPayloadTooShort = errors.New("rtpcrypto: payload too short for lite nonce tail")

// Seal encrypts an Opus frame under xsalsa20_poly1305_lite (spec.md §4.2):
// the nonce is the 4-byte big-endian sequence number followed by 20 zero
// bytes, and the same 4 bytes are appended in the clear as a tail after the
// ciphertext so the receiver can reconstruct the nonce.
func Seal(opusFrame []byte, sequence uint16, key *[32]byte) []byte {
	var nonce [24]byte
	binary.BigEndian.PutUint16(nonce[2:4], sequence) // bytes 0-1 are always zero: sequence fits in 16 bits

	sealed := secretbox.Seal(nil, opusFrame, &nonce, key)
	out := make([]byte, len(sealed)+4)
	copy(out, sealed)
	copy(out[len(sealed):], nonce[0:4])
	return out
}

// Open decrypts an xsalsa20_poly1305_lite payload (spec.md §4.2): the nonce
// is the 4-byte tail taken from the end of the payload followed by 20 zero
// bytes, mirroring Seal's [sequence(4)][20 zero] construction.
func Open(payload []byte, key *[32]byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, ErrPayloadTooShort
	}
	ciphertextLen := len(payload) - 4
	tail := payload[ciphertextLen:]

	var nonce [24]byte
	copy(nonce[0:4], tail)

	plain, ok := secretbox.Open(nil, payload[:ciphertextLen], &nonce, key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
