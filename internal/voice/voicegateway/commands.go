package voicegateway

// IdentifyData is the op 0 payload (spec.md §4.7).
type IdentifyData struct {
	GuildID   string `json:"server_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// SelectProtocolData is the op 1 payload, sent once IP discovery completes.
type SelectProtocolData struct {
	Protocol string             `json:"protocol"`
	Data     SelectProtocolInfo `json:"data"`
}

// SelectProtocolInfo is the address/port/cipher-mode chosen by the client.
type SelectProtocolInfo struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
	Mode    string `json:"mode"`
}

// HeartbeatData is the op 3 payload: a monotonically increasing timestamp.
type HeartbeatData struct {
	Timestamp int64 `json:"t"`
	SeqAck    int   `json:"seq_ack"`
}

// SpeakingFlag is the bitmask sent/received in op 5 (spec.md §6).
type SpeakingFlag uint64

const (
	SpeakingMicrophone SpeakingFlag = 1 << iota
	SpeakingSoundshare
	SpeakingPriority
)

// SpeakingData is the op 5 payload, sent and received.
type SpeakingData struct {
	Speaking SpeakingFlag `json:"speaking"`
	Delay    int          `json:"delay"`
	SSRC     uint32       `json:"ssrc"`
}

