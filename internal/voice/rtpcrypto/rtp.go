// Package rtpcrypto implements the RTP framing and xsalsa20_poly1305_lite
// packet crypto the voice send/receive paths use (spec.md §4.2/§4.3).
package rtpcrypto

import (
	"encoding/binary"
	"errors"
)

const (
	headerSize  = 12
	payloadType = 120 // Opus, per spec.md §3

	extensionBit = 0x10 // bit in the first header byte
	markerBit    = 0x80 // bit in the second header byte

	// extHeaderMagic is the one-byte header extension profile Discord sends
	// (RFC 5285 one-byte header, 0xBEDE).
	extHeaderMagic = 0xBEDE
)

// ErrPacketTooShort is returned when a buffer is too small to be a valid RTP
// packet.
var ErrPacketTooShort = errors.New("rtpcrypto: packet shorter than 12-byte header")

// ErrBadVersion is returned when the RTP version nibble is not 2.
var ErrBadVersion = errors.New("rtpcrypto: rtp version != 2")

// Header is the fixed 12-byte RTP header used on the voice UDP flow.
type Header struct {
	VersionFlags uint8 // version(2) | padding(1) | extension(1) | csrc count(4)
	Marker       uint8 // marker(1) | payload type(7)
	Sequence     uint16
	Timestamp    uint32
	SSRC         uint32
}

// Bytes encodes h into a 12-byte big-endian RTP header.
func (h Header) Bytes() [headerSize]byte {
	var b [headerSize]byte
	b[0] = h.VersionFlags
	b[1] = h.Marker
	binary.BigEndian.PutUint16(b[2:4], h.Sequence)
	binary.BigEndian.PutUint32(b[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(b[8:12], h.SSRC)
	return b
}

// Version returns the RTP version carried in the header's version/flags byte.
func (h Header) Version() uint8 { return h.VersionFlags >> 6 }

// HasExtension reports whether the extension bit is set.
func (h Header) HasExtension() bool { return h.VersionFlags&extensionBit != 0 }

// HasMarker reports whether the marker bit is set.
func (h Header) HasMarker() bool { return h.Marker&markerBit != 0 }

// NewSendHeader builds the header for an outgoing audio frame: version 2, no
// padding, no extension, CSRC count 0, marker 0, payload type 120 (spec.md §3).
func NewSendHeader(sequence uint16, timestamp, ssrc uint32) Header {
	return Header{
		VersionFlags: 0x80, // version=2, rest zero
		Marker:       payloadType,
		Sequence:     sequence,
		Timestamp:    timestamp,
		SSRC:         ssrc,
	}
}

// ParseHeader reads the 12-byte RTP header at the front of buf. It returns
// ErrPacketTooShort for a buffer under 12 bytes and ErrBadVersion when the
// version is not 2.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, ErrPacketTooShort
	}
	h := Header{
		VersionFlags: buf[0],
		Marker:       buf[1],
		Sequence:     binary.BigEndian.Uint16(buf[2:4]),
		Timestamp:    binary.BigEndian.Uint32(buf[4:8]),
		SSRC:         binary.BigEndian.Uint32(buf[8:12]),
	}
	if h.Version() != 2 {
		return Header{}, ErrBadVersion
	}
	return h, nil
}

// StripExtension removes a one-byte-header RTP extension (0xBEDE) from the
// front of a decrypted Opus payload, if present (spec.md §4.3/§4.5). It
// returns the payload unchanged if no extension is present.
func StripExtension(plaintext []byte) []byte {
	if len(plaintext) < 4 {
		return plaintext
	}
	profile := binary.BigEndian.Uint16(plaintext[0:2])
	if profile != extHeaderMagic {
		return plaintext
	}
	extLen := int(binary.BigEndian.Uint16(plaintext[2:4]))
	shift := 4 + 4*extLen
	if shift > len(plaintext) {
		return plaintext
	}
	return plaintext[shift:]
}

// IsAudioPacket reports whether buf could plausibly be an RTP audio packet
// rather than an IP-discovery response or garbage (spec.md §4.3: reject
// packets smaller than 12 bytes, version != 2, or non-audio first bytes).
func IsAudioPacket(buf []byte) bool {
	if len(buf) < headerSize {
		return false
	}
	switch buf[0] {
	case 0x80, 0x90:
		return true
	default:
		return false
	}
}
