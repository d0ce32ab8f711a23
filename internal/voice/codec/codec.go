// Package codec wraps the Opus encoder/decoder pair the send and receive
// paths share: 48 kHz, stereo, 20 ms (960-sample) frames (spec.md §4.1).
package codec

const (
	SampleRate   = 48000
	Channels     = 2
	FrameSamples = 960            // 20ms at 48kHz
	FrameBytes   = FrameSamples * 2 * 2 // int16 stereo
)

// SilenceFrame is substituted for a frame that failed to decode (spec.md
// §4.5/§7: decode failure never surfaces, the pipeline keeps running).
var SilenceFrame = make([]byte, FrameBytes)
