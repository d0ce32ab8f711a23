// Package voicegateway implements the voice websocket leg of the handshake
// state machine (spec.md §4.7): Hello, Identify, Ready, Select Protocol,
// Session Description, Speaking and Heartbeat, dispatched as a single typed
// event union rather than per-op callback listeners (spec.md §9).
package voicegateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/discord-voice-lab/internal/logging"
)

const gatewayVersion = "4"

var (
	ErrMissingForIdentify = errors.New("voicegateway: missing guild/user/session/token for identify")
	ErrClosed             = errors.New("voicegateway: connection closed")
)

// Dialer is the websocket dialer used by Open. Tests may swap it (e.g. to
// skip TLS verification against an httptest.Server) via SetDialer.
var Dialer = websocket.DefaultDialer

// SetDialer overrides the package-level Dialer, returning a function that
// restores the previous one.
func SetDialer(d *websocket.Dialer) (restore func()) {
	prev := Dialer
	Dialer = d
	return func() { Dialer = prev }
}

// State is the handshake material supplied by the outer gateway bridge
// (spec.md §4.8) before the voice websocket opens.
type State struct {
	GuildID   string
	UserID    string
	SessionID string
	Token     string
	Endpoint  string
}

// Event is one inbound voice websocket dispatch, tagged by Op. Exactly one
// of the typed fields is populated, matching Op.
type Event struct {
	Op                 OPCode
	Ready              *ReadyEvent
	SessionDescription *SessionDescriptionEvent
	Speaking           *SpeakingEvent
	Hello              *HelloEvent
	Resumed            *ResumedEvent
	HeartbeatAck       bool
}

// Gateway is one voice websocket connection plus its heartbeat loop.
type Gateway struct {
	state State

	mu   sync.Mutex
	conn *websocket.Conn

	heartbeatInterval time.Duration
	lastAckAt         time.Time
	missedAcks        int
	lastSeq           atomic.Int64 // last observed dispatch seq, echoed as SeqAck; -1 until one arrives

	events chan Event
	errs   chan error
	done   chan struct{}
	closed sync.Once
}

// New constructs a Gateway for the given handshake state. Call Open to
// connect.
func New(state State) *Gateway {
	g := &Gateway{
		state:  state,
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	g.lastSeq.Store(-1)
	return g
}

// Events returns the channel of typed inbound dispatches.
func (g *Gateway) Events() <-chan Event { return g.events }

// Errs returns the channel a fatal connection error is delivered on.
func (g *Gateway) Errs() <-chan error { return g.errs }

// Open dials the voice websocket, waits for Hello, sends Identify, and
// starts the read/heartbeat loops. It returns once Identify has been sent;
// callers watch Events() for Ready.
func (g *Gateway) Open(ctx context.Context) error {
	endpoint := "wss://" + strings.TrimSuffix(g.state.Endpoint, ":80") + "/?v=" + gatewayVersion

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, _, err := Dialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("voicegateway: dial %s: %w", endpoint, err)
	}
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	hello, err := g.awaitHello(ctx)
	if err != nil {
		conn.Close()
		return err
	}
	g.heartbeatInterval = time.Duration(hello.HeartbeatIntervalMs) * time.Millisecond

	if err := g.identify(); err != nil {
		conn.Close()
		return err
	}

	go g.readLoop()
	go g.heartbeatLoop()

	return nil
}

func (g *Gateway) awaitHello(ctx context.Context) (*HelloEvent, error) {
	_, raw, err := g.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("voicegateway: read hello: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("voicegateway: decode hello envelope: %w", err)
	}
	if p.Op != HelloOP {
		return nil, fmt.Errorf("voicegateway: expected Hello (op 8), got op %d", p.Op)
	}
	var hello HelloEvent
	if err := json.Unmarshal(p.Data, &hello); err != nil {
		return nil, fmt.Errorf("voicegateway: decode hello: %w", err)
	}
	return &hello, nil
}

func (g *Gateway) identify() error {
	if g.state.GuildID == "" || g.state.UserID == "" || g.state.SessionID == "" || g.state.Token == "" {
		return ErrMissingForIdentify
	}
	return g.send(IdentifyOP, IdentifyData{
		GuildID:   g.state.GuildID,
		UserID:    g.state.UserID,
		SessionID: g.state.SessionID,
		Token:     g.state.Token,
	})
}

// SelectProtocol sends op 1 with the discovered address and chosen cipher
// mode (spec.md §4.7 Discovering -> Selecting).
func (g *Gateway) SelectProtocol(address string, port uint16, mode string) error {
	return g.send(SelectProtocolOP, SelectProtocolData{
		Protocol: "udp",
		Data: SelectProtocolInfo{
			Address: address,
			Port:    port,
			Mode:    mode,
		},
	})
}

// Speaking sends op 5 announcing our own speaking state.
func (g *Gateway) Speaking(ssrc uint32, flag SpeakingFlag) error {
	return g.send(SpeakingOP, SpeakingData{Speaking: flag, Delay: 0, SSRC: ssrc})
}

func (g *Gateway) send(op OPCode, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("voicegateway: encode op %d: %w", op, err)
	}
	payload := Payload{Op: op, Data: data}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("voicegateway: encode envelope: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return ErrClosed
	}
	return g.conn.WriteMessage(websocket.TextMessage, b)
}

func (g *Gateway) heartbeatLoop() {
	if g.heartbeatInterval <= 0 {
		g.heartbeatInterval = 5 * time.Second
	}
	ticker := time.NewTicker(g.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			seqAck := int(g.lastSeq.Load())
			if err := g.send(HeartbeatOP, HeartbeatData{Timestamp: time.Now().UnixNano(), SeqAck: seqAck}); err != nil {
				g.fail(fmt.Errorf("voicegateway: heartbeat send: %w", err))
				return
			}
			if g.missedAcks >= 2 {
				g.fail(errors.New("voicegateway: missed heartbeat ack twice"))
				return
			}
			g.missedAcks++
		}
	}
}

// readLoop decodes every inbound frame into the single typed Event union
// (spec.md §9) and pushes it to Events(). Unknown ops are logged and
// ignored, per spec.md §4.7.
func (g *Gateway) readLoop() {
	defer close(g.events)

	for {
		_, raw, err := g.conn.ReadMessage()
		if err != nil {
			g.fail(fmt.Errorf("voicegateway: read: %w", err))
			return
		}

		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			logging.Warnw("voicegateway: malformed frame", "err", err)
			continue
		}
		if p.Seq != nil {
			g.lastSeq.Store(int64(*p.Seq))
		}

		ev, ok := decode(p)
		if !ok {
			logging.Debugw("voicegateway: unknown op, ignoring", "op", p.Op)
			continue
		}
		if ev.Op == HeartbeatAckOP {
			g.missedAcks = 0
			g.lastAckAt = time.Now()
		}

		select {
		case g.events <- ev:
		case <-g.done:
			return
		}
	}
}

func decode(p Payload) (Event, bool) {
	ev := Event{Op: p.Op}
	switch p.Op {
	case ReadyOP:
		var r ReadyEvent
		if err := json.Unmarshal(p.Data, &r); err != nil {
			return ev, false
		}
		ev.Ready = &r
	case SessionDescriptionOP:
		var s SessionDescriptionEvent
		if err := json.Unmarshal(p.Data, &s); err != nil {
			return ev, false
		}
		ev.SessionDescription = &s
	case SpeakingOP:
		var s SpeakingEvent
		if err := json.Unmarshal(p.Data, &s); err != nil {
			return ev, false
		}
		ev.Speaking = &s
	case HelloOP:
		var h HelloEvent
		if err := json.Unmarshal(p.Data, &h); err != nil {
			return ev, false
		}
		ev.Hello = &h
	case ResumedOP:
		ev.Resumed = &ResumedEvent{}
	case HeartbeatAckOP:
		ev.HeartbeatAck = true
	default:
		return ev, false
	}
	return ev, true
}

func (g *Gateway) fail(err error) {
	select {
	case g.errs <- err:
	default:
	}
	g.Close()
}

// Close closes the websocket and stops the heartbeat loop. Safe to call more
// than once.
func (g *Gateway) Close() error {
	var closeErr error
	g.closed.Do(func() {
		close(g.done)
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.conn != nil {
			closeErr = g.conn.Close()
		}
	})
	return closeErr
}
