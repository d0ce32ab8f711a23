package pipeline

import (
	"github.com/discord-voice-lab/internal/voice/codec"
	"github.com/discord-voice-lab/internal/voice/rtpcrypto"
)

// DecodedChunk is one (SSRC, PCM, sequence, timestamp) record handed to the
// per-speaker buffer (spec.md §4.5).
type DecodedChunk struct {
	SSRC      uint32
	PCM       []byte
	Sequence  uint16
	Timestamp uint32
	Silence   bool
}

// DecodeSession holds the per-connection Opus decoder and failure counters
// the receive path shares across packets.
type DecodeSession struct {
	dec             *codec.Decoder
	key             *[32]byte
	decryptFailures uint64
	decodeFailures  uint64
}

func NewDecodeSession(dec *codec.Decoder, key *[32]byte) *DecodeSession {
	return &DecodeSession{dec: dec, key: key}
}

func (s *DecodeSession) DecryptFailures() uint64 { return s.decryptFailures }
func (s *DecodeSession) DecodeFailures() uint64  { return s.decodeFailures }

// HandleDatagram runs one raw UDP datagram through the full decode pipeline
// (spec.md §4.5): reject non-audio/non-v2 packets, parse the header,
// decrypt under the receive nonce, treat a near-empty plaintext as a
// silence frame, strip RTP extensions, Opus-decode. It returns ok=false for
// datagrams that are not part of the audio path at all (IP discovery
// replies, garbage); those are never counted as failures.
func (s *DecodeSession) HandleDatagram(buf []byte) (chunk DecodedChunk, ok bool) {
	if !rtpcrypto.IsAudioPacket(buf) {
		return DecodedChunk{}, false
	}

	header, err := rtpcrypto.ParseHeader(buf)
	if err != nil {
		return DecodedChunk{}, false
	}

	plain, err := rtpcrypto.Open(buf[12:], s.key)
	if err != nil {
		s.decryptFailures++
		return DecodedChunk{}, false
	}

	if len(plain) <= 3 {
		return DecodedChunk{
			SSRC:      header.SSRC,
			PCM:       codec.SilenceFrame,
			Sequence:  header.Sequence,
			Timestamp: header.Timestamp,
			Silence:   true,
		}, true
	}

	// StripExtension re-checks the 0xBEDE magic and is a no-op when absent,
	// so call it unconditionally rather than gating on the header bit
	// (spec.md §4.3/§4.5: no leading 0xBEDE must survive to the decoder).
	plain = rtpcrypto.StripExtension(plain)

	pcm, ok := s.dec.Decode(plain)
	if !ok {
		s.decodeFailures++
	}

	return DecodedChunk{
		SSRC:      header.SSRC,
		PCM:       pcm,
		Sequence:  header.Sequence,
		Timestamp: header.Timestamp,
	}, true
}
