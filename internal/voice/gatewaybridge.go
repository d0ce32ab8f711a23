package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-lab/internal/logging"
)

// HandshakeInfo is what C7 needs to open the voice websocket: the fields
// carried jointly by a VOICE_STATE_UPDATE (this bot's own state) and a
// VOICE_SERVER_UPDATE for the same guild (spec.md §9: "C8 submits a gateway
// voice-state update and awaits two events that together carry endpoint,
// token, session id").
type HandshakeInfo struct {
	GuildID   string
	ChannelID string
	UserID    string
	SessionID string
	Endpoint  string
	Token     string
}

type pendingJoin struct {
	sessionID string
	endpoint  string
	token     string
	ready     chan struct{}
	closed    bool
}

// GatewayBridge owns the outer Discord gateway connection's voice surface:
// sending the op 4 voice-state update that kicks a join off, and
// correlating the VOICE_STATE_UPDATE/VOICE_SERVER_UPDATE pair the gateway
// sends back. It does not touch the voice websocket/UDP/RTP path itself —
// per SPEC_FULL.md §3 that is owned by voicegateway/transport/rtpcrypto,
// not discordgo's built-in VoiceConnection.
type GatewayBridge struct {
	session *discordgo.Session

	mu      sync.Mutex
	pending map[string]*pendingJoin // keyed by guild id
}

// NewGatewayBridge registers the handlers needed to observe voice state/
// server updates on session. session must already have the Guilds and
// GuildVoiceStates intents enabled.
func NewGatewayBridge(session *discordgo.Session) *GatewayBridge {
	b := &GatewayBridge{session: session, pending: make(map[string]*pendingJoin)}
	session.AddHandler(b.onVoiceStateUpdate)
	session.AddHandler(b.onVoiceServerUpdate)
	return b
}

// Join sends the gateway op 4 voice-state update for guildID/channelID and
// blocks until both halves of the handshake pair have arrived, or ctx is
// done (spec.md §7: JoinVoice's overall 15s timeout is enforced by the
// caller's ctx, not here).
func (b *GatewayBridge) Join(ctx context.Context, guildID, channelID string) (HandshakeInfo, error) {
	p := &pendingJoin{ready: make(chan struct{})}

	b.mu.Lock()
	b.pending[guildID] = p
	b.mu.Unlock()

	if err := b.session.ChannelVoiceJoinManual(guildID, channelID, false, false); err != nil {
		b.mu.Lock()
		delete(b.pending, guildID)
		b.mu.Unlock()
		return HandshakeInfo{}, fmt.Errorf("voice: gateway voice-state update: %w", err)
	}

	select {
	case <-p.ready:
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, guildID)
		b.mu.Unlock()
		return HandshakeInfo{}, ErrGatewayTimeout
	}

	b.mu.Lock()
	delete(b.pending, guildID)
	b.mu.Unlock()

	return HandshakeInfo{
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    b.userID(),
		SessionID: p.sessionID,
		Endpoint:  p.endpoint,
		Token:     p.token,
	}, nil
}

// Leave sends the op 4 voice-state update with no channel id, dropping the
// bot's gateway-level voice state for guildID, and cancels any join still
// waiting on a handshake pair for that guild.
func (b *GatewayBridge) Leave(guildID string) error {
	b.mu.Lock()
	if p, ok := b.pending[guildID]; ok && !p.closed {
		p.closed = true
		close(p.ready)
	}
	delete(b.pending, guildID)
	b.mu.Unlock()

	return b.session.ChannelVoiceJoinManual(guildID, "", false, false)
}

// Resume re-sends the op 4 voice-state update for guildID/channelID. It
// blocks the same way Join does, producing a fresh HandshakeInfo. Nothing in
// this module calls it: Session's reconnect path goes through Join, and the
// bridge registers no handler for outer gateway ops 7/9.
func (b *GatewayBridge) Resume(ctx context.Context, guildID, channelID string) (HandshakeInfo, error) {
	return b.Join(ctx, guildID, channelID)
}

func (b *GatewayBridge) userID() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}

func (b *GatewayBridge) onVoiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.UserID != b.userID() {
		return
	}
	b.mu.Lock()
	p, ok := b.pending[vs.GuildID]
	b.mu.Unlock()
	if !ok {
		return
	}
	p.sessionID = vs.SessionID
	b.tryComplete(vs.GuildID, p)
}

func (b *GatewayBridge) onVoiceServerUpdate(_ *discordgo.Session, vsu *discordgo.VoiceServerUpdate) {
	b.mu.Lock()
	p, ok := b.pending[vsu.GuildID]
	b.mu.Unlock()
	if !ok {
		return
	}
	p.endpoint = vsu.Endpoint
	p.token = vsu.Token
	b.tryComplete(vsu.GuildID, p)
}

func (b *GatewayBridge) tryComplete(guildID string, p *pendingJoin) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.closed {
		return
	}
	if p.sessionID == "" || p.endpoint == "" || p.token == "" {
		return
	}
	p.closed = true
	logging.Debugw("voice: gateway handshake pair received", "guild_id", guildID)
	close(p.ready)
}
