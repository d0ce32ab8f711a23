package voice

import "github.com/discord-voice-lab/internal/voice/model"

// The voice core's data model (spec.md §3) lives in internal/voice/model so
// that package voice, internal/voice/speaker and internal/transcript can all
// depend on it without forming an import cycle. These aliases let outer
// callers keep writing voice.VoiceSession, voice.Utterance, etc.
type (
	SessionState    = model.SessionState
	VoiceSession    = model.VoiceSession
	RtpPacket       = model.RtpPacket
	SpeakerBinding  = model.SpeakerBinding
	Utterance       = model.Utterance
	TranscriptEntry = model.TranscriptEntry
	WordSpan        = model.WordSpan
	VoiceStatus     = model.VoiceStatus
)

const (
	StateIdle            = model.StateIdle
	StateAwaitingGateway = model.StateAwaitingGateway
	StateWsConnecting    = model.StateWsConnecting
	StateIdentifying     = model.StateIdentifying
	StateDiscovering     = model.StateDiscovering
	StateSelecting       = model.StateSelecting
	StateActive          = model.StateActive
	StateClosed          = model.StateClosed
)

var PlaceholderUserID = model.PlaceholderUserID
