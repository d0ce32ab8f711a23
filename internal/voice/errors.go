package voice

import "errors"

// Sentinel errors returned by the outer API (spec.md §6/§7). Callers should
// compare with errors.Is, since internal wrapping adds context.
var (
	ErrGatewayTimeout    = errors.New("voice: gateway dispatch timeout")
	ErrNotAuthenticated  = errors.New("voice: not authenticated")
	ErrAlreadyInVoice    = errors.New("voice: already in a voice channel")
	ErrNotInVoice        = errors.New("voice: not in a voice channel")
	ErrNotReady          = errors.New("voice: session not ready")
	ErrBusy              = errors.New("voice: send path busy")
	ErrTransport         = errors.New("voice: transport error")
	ErrNotConfigured     = errors.New("voice: required configuration missing")
	ErrSequenceExhausted = errors.New("voice: rtp sequence would wrap mid-batch")
)
