package voicegateway

import "encoding/json"

// OPCode is a voice websocket op code (spec.md §6).
type OPCode int

const (
	IdentifyOP           OPCode = 0
	SelectProtocolOP     OPCode = 1
	ReadyOP              OPCode = 2
	HeartbeatOP          OPCode = 3
	SessionDescriptionOP OPCode = 4
	SpeakingOP           OPCode = 5
	HeartbeatAckOP       OPCode = 6
	ResumeOP             OPCode = 7
	HelloOP              OPCode = 8
	ResumedOP            OPCode = 9
)

// Payload is the envelope every voice websocket frame is wrapped in. Seq is
// set by Discord on dispatch-bearing ops and echoed back in the next
// Heartbeat's SeqAck (spec.md §4.7).
type Payload struct {
	Op   OPCode          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int            `json:"seq,omitempty"`
}
