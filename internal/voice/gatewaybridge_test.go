package voice

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func newTestBridge() (*GatewayBridge, *discordgo.Session) {
	session := &discordgo.Session{State: discordgo.NewState()}
	session.State.User = &discordgo.User{ID: "bot-1"}
	return &GatewayBridge{session: session, pending: make(map[string]*pendingJoin)}, session
}

func TestHandshakeCompletesOnlyAfterBothEvents(t *testing.T) {
	b, session := newTestBridge()
	p := &pendingJoin{ready: make(chan struct{})}
	b.pending["guild-1"] = p

	b.onVoiceStateUpdate(session, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "guild-1", UserID: "bot-1", SessionID: "sess-1"},
	})

	select {
	case <-p.ready:
		t.Fatal("handshake completed before VOICE_SERVER_UPDATE arrived")
	case <-time.After(10 * time.Millisecond):
	}

	b.onVoiceServerUpdate(session, &discordgo.VoiceServerUpdate{GuildID: "guild-1", Endpoint: "voice.example.com", Token: "tok"})

	select {
	case <-p.ready:
	case <-time.After(time.Second):
		t.Fatal("handshake never completed")
	}

	require.Equal(t, "sess-1", p.sessionID)
	require.Equal(t, "voice.example.com", p.endpoint)
	require.Equal(t, "tok", p.token)
}

func TestVoiceStateUpdateForOtherUserIsIgnored(t *testing.T) {
	b, session := newTestBridge()
	p := &pendingJoin{ready: make(chan struct{})}
	b.pending["guild-1"] = p

	b.onVoiceStateUpdate(session, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{GuildID: "guild-1", UserID: "someone-else", SessionID: "sess-x"},
	})

	require.Empty(t, p.sessionID)
}

func TestVoiceServerUpdateForUnknownGuildIsIgnored(t *testing.T) {
	b, _ := newTestBridge()
	b.onVoiceServerUpdate(nil, &discordgo.VoiceServerUpdate{GuildID: "no-such-guild", Endpoint: "x", Token: "y"})
	require.Empty(t, b.pending)
}

func TestTryCompleteIsIdempotent(t *testing.T) {
	b, _ := newTestBridge()
	p := &pendingJoin{ready: make(chan struct{}), sessionID: "s", endpoint: "e", token: "t"}
	b.pending["guild-1"] = p

	b.tryComplete("guild-1", p)
	require.True(t, p.closed)
	require.NotPanics(t, func() { b.tryComplete("guild-1", p) })
}
