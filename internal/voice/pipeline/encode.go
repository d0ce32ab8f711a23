// Package pipeline implements the RTP send and receive pipelines (spec.md
// §4.4/§4.5) and the egress pacer (spec.md §4.4/§9) that sits between them
// and the UDP transport.
package pipeline

import (
	"github.com/discord-voice-lab/internal/voice/codec"
	"github.com/discord-voice-lab/internal/voice/rtpcrypto"
)

// FrameBytes is the byte size of one 20ms, 16-bit stereo 48kHz PCM frame
// (spec.md §4.4: 3,840 bytes).
const FrameBytes = codec.FrameBytes

// Frame is one fully prepared, ready-to-transmit RTP packet.
type Frame struct {
	Sequence  uint16
	Timestamp uint32
	Packet    []byte // 12-byte header || sealed opus payload
}

// EncodeSession holds the per-connection encoder and sequence/timestamp
// counters the send path advances one frame at a time (spec.md §3).
type EncodeSession struct {
	enc       *codec.Encoder
	key       *[32]byte
	ssrc      uint32
	sequence  uint16
	timestamp uint32
}

// NewEncodeSession builds an encode session starting from the session's
// current sequence/timestamp (so a fresh PlayAudio batch continues the
// counters rather than resetting them).
func NewEncodeSession(enc *codec.Encoder, key *[32]byte, ssrc uint32, sequence uint16, timestamp uint32) *EncodeSession {
	return &EncodeSession{enc: enc, key: key, ssrc: ssrc, sequence: sequence, timestamp: timestamp}
}

// BuildQueue partitions pcm into 20ms frames (zero-padding the final partial
// frame), Opus-encodes, RTP-frames and seals each one, and returns the
// entire ordered queue eagerly — before any frame is transmitted, per
// spec.md §4.4 ("removes codec cost from the send-time budget").
//
// It returns ErrSequenceExhausted without emitting a partial queue if the
// frame count would wrap the 16-bit sequence counter mid-batch (open
// question resolved in DESIGN.md: refuse rather than silently rotate).
func (s *EncodeSession) BuildQueue(pcm []byte) ([]Frame, error) {
	frameCount := (len(pcm) + FrameBytes - 1) / FrameBytes
	if frameCount == 0 {
		return nil, nil
	}
	if int(s.sequence)+frameCount > 1<<16 {
		return nil, errSequenceExhausted
	}

	frames := make([]Frame, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		start := i * FrameBytes
		end := start + FrameBytes
		var chunk []byte
		if end <= len(pcm) {
			chunk = pcm[start:end]
		} else {
			chunk = make([]byte, FrameBytes)
			copy(chunk, pcm[start:])
		}

		samples := bytesToInt16(chunk)
		opusFrame, err := s.enc.Encode(samples)
		if err != nil {
			return nil, err
		}

		header := rtpcrypto.NewSendHeader(s.sequence, s.timestamp, s.ssrc)
		sealed := rtpcrypto.Seal(opusFrame, s.sequence, s.key)

		hb := header.Bytes()
		packet := make([]byte, 0, len(hb)+len(sealed))
		packet = append(packet, hb[:]...)
		packet = append(packet, sealed...)

		frames = append(frames, Frame{Sequence: s.sequence, Timestamp: s.timestamp, Packet: packet})

		s.sequence++
		s.timestamp += codec.FrameSamples
	}
	return frames, nil
}

// Sequence and Timestamp expose the session's current counters so the caller
// can persist them back onto the VoiceSession after a batch.
func (s *EncodeSession) Sequence() uint16   { return s.sequence }
func (s *EncodeSession) Timestamp() uint32 { return s.timestamp }

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
	}
	return out
}
