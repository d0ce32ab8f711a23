//go:build opus
// +build opus

package codec

import (
	"github.com/hraban/opus"

	"github.com/discord-voice-lab/internal/logging"
)

// Encoder wraps a single hraban/opus encoder for one send path.
type Encoder struct {
	enc *opus.Encoder
}

// targetBitrate is the encoder's fixed target, within spec.md §4.1's
// required 64-128 kbit/s range.
const targetBitrate = 96000

// NewEncoder builds an Opus encoder at 48kHz/stereo (spec.md §4.1): target
// bitrate fixed at targetBitrate and forward error correction disabled.
func NewEncoder() (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	if err := enc.SetBitrate(targetBitrate); err != nil {
		return nil, err
	}
	if err := enc.SetInBandFEC(false); err != nil {
		return nil, err
	}
	return &Encoder{enc: enc}, nil
}

// Encode compresses one 20ms PCM frame (960 stereo int16 samples) into an
// Opus packet.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, 4000)
	n, err := e.enc.Encode(pcm, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// Decoder wraps a single hraban/opus decoder for one receive path.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder builds an Opus decoder at 48kHz/stereo (spec.md §4.1).
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return &Decoder{dec: dec}, nil
}

// Decode expands an Opus packet into PCM. On failure it logs and returns
// (SilenceFrame, false) rather than propagating the error, per spec.md
// §4.5/§7: a decode failure is substituted with silence and never surfaced
// to callers; ok=false only tells the caller to count the failure.
func (d *Decoder) Decode(packet []byte) (pcm []byte, ok bool) {
	samples := make([]int16, FrameSamples*Channels)
	n, err := d.dec.Decode(packet, samples)
	if err != nil {
		logging.Warnw("opus decode failed, substituting silence", "err", err)
		return SilenceFrame, false
	}
	out := make([]byte, n*Channels*2)
	for i := 0; i < n*Channels; i++ {
		out[i*2] = byte(samples[i])
		out[i*2+1] = byte(samples[i] >> 8)
	}
	return out, true
}
