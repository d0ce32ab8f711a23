// Package model holds the voice core's data model (spec.md §3) in one leaf
// package so the session, speaker-buffer, and transcript-store packages can
// all depend on it without importing one another.
package model

import (
	"net"
	"time"
)

// SessionState is a state of the voice handshake state machine (spec.md §4.7).
type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingGateway
	StateWsConnecting
	StateIdentifying
	StateDiscovering
	StateSelecting
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingGateway:
		return "AwaitingGateway"
	case StateWsConnecting:
		return "WsConnecting"
	case StateIdentifying:
		return "Identifying"
	case StateDiscovering:
		return "Discovering"
	case StateSelecting:
		return "Selecting"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// VoiceSession is the lifecycle object for the one active voice connection a
// process holds (spec.md §3). It is created by JoinVoice and destroyed on
// LeaveVoice or a fatal websocket close.
type VoiceSession struct {
	GuildID   string
	ChannelID string
	UserID    string
	SessionID string
	Token     string
	Endpoint  string

	Mode string // chosen cipher mode, e.g. "xsalsa20_poly1305_lite"
	SSRC uint32

	ServerAddr *net.UDPAddr
	SecretKey  [32]byte

	Sequence  uint16
	Timestamp uint32

	Speaking bool

	State     SessionState
	CreatedAt time.Time

	DecryptFailures uint64
	DecodeFailures  uint64
	SendFailures    uint64
}

// RtpPacket is the parsed in-memory form of a voice RTP packet (spec.md §4.3).
type RtpPacket struct {
	Version   uint8
	Padding   bool
	Extension bool
	Marker    bool
	Sequence  uint16
	Timestamp uint32
	SSRC      uint32
	Payload   []byte // encrypted Opus frame + (lite mode) 4-byte nonce tail
}

// SpeakerBinding maps an RTP SSRC to a speaker identity (spec.md §3). Entries
// created from an op-5 speaking event carry Bound=true; entries synthesized
// for an unbound SSRC carry Bound=false and a placeholder display name.
type SpeakerBinding struct {
	SSRC        uint32
	UserID      string
	DisplayName string
	Bound       bool
}

// PlaceholderUserID returns the synthetic identity used for an SSRC that has
// not yet received an op-5 speaking event.
func PlaceholderUserID(ssrc uint32) string {
	return "ssrc-unbound-" + uitoa(ssrc)
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Utterance is a contiguous PCM sequence attributed to one speaker, flushed
// on a silence timeout or hard cap (spec.md §3/§4.9). Flush is destructive:
// callers take ownership of PCM and the originating slot is emptied.
type Utterance struct {
	SpeakerID string
	StartedAt time.Time
	EndedAt   time.Time
	PCM       []byte
}

// TranscriptEntry is one append-only record in the transcript store
// (spec.md §3/§4.10).
type TranscriptEntry struct {
	SpeakerID   string     `json:"speaker_id"`
	DisplayName string     `json:"display_name"`
	Text        string     `json:"text"`
	ProducedAt  time.Time  `json:"produced_at"`
	Words       []WordSpan `json:"words,omitempty"`
	GuildID     string     `json:"guild_id,omitempty"`
	ChannelID   string     `json:"channel_id,omitempty"`
	WakeMatched bool       `json:"wake_matched,omitempty"`
}

// WordSpan is one per-word timing interval within a transcript entry.
type WordSpan struct {
	Word    string  `json:"word"`
	StartMs float64 `json:"start_ms"`
	EndMs   float64 `json:"end_ms"`
}

// VoiceStatus is the snapshot returned by GetVoiceStatus (spec.md §6),
// extended per SPEC_FULL.md §4 with failure counters.
type VoiceStatus struct {
	State           string `json:"state"`
	GuildID         string `json:"guild_id,omitempty"`
	ChannelID       string `json:"channel_id,omitempty"`
	Speaking        bool   `json:"speaking"`
	DecryptFailures uint64 `json:"decrypt_failures"`
	DecodeFailures  uint64 `json:"decode_failures"`
	SendFailures    uint64 `json:"send_failures"`
}
