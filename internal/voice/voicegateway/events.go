package voicegateway

import "strconv"

// ReadyEvent is the op 2 payload (spec.md §4.7: persist SSRC, server ip/port,
// allowed modes; create UDP socket on receipt).
type ReadyEvent struct {
	SSRC  uint32   `json:"ssrc"`
	IP    string   `json:"ip"`
	Port  int      `json:"port"`
	Modes []string `json:"modes"`
}

// Addr renders the Ready event's server address as host:port.
func (r ReadyEvent) Addr() string {
	return r.IP + ":" + strconv.Itoa(r.Port)
}

// SessionDescriptionEvent is the op 4 payload (spec.md §4.7: persist the
// 32-byte session key; transition to Active).
type SessionDescriptionEvent struct {
	Mode      string   `json:"mode"`
	SecretKey [32]byte `json:"secret_key"`
}

// SpeakingEvent is the op 5 payload as received from a peer: unlike the
// payload we send (SpeakingData), Discord's inbound op 5 also carries the
// speaking user's id, which is how C8 fills C10's SSRC→identity slot
// (spec.md §9).
type SpeakingEvent struct {
	Speaking SpeakingFlag `json:"speaking"`
	Delay    int          `json:"delay"`
	SSRC     uint32       `json:"ssrc"`
	UserID   string       `json:"user_id"`
}

// HelloEvent is the op 8 payload.
type HelloEvent struct {
	HeartbeatIntervalMs float64 `json:"heartbeat_interval"`
}

// ResumedEvent is the op 9 payload (empty object).
type ResumedEvent struct{}
