package voice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/discord-voice-lab/internal/voice/speaker"
)

func newIdleSession() *Session {
	bridge, _ := newTestBridge()
	return NewSession(bridge, NewNoopResolver(), nil, nil, nil, nil)
}

func TestGetVoiceStatusWhenIdleReportsIdle(t *testing.T) {
	s := newIdleSession()
	status := s.GetVoiceStatus()
	require.Equal(t, StateIdle.String(), status.State)
	require.Empty(t, status.GuildID)
}

func TestLeaveVoiceWithoutSessionReturnsNotInVoice(t *testing.T) {
	s := newIdleSession()
	err := s.LeaveVoice(context.Background())
	require.ErrorIs(t, err, ErrNotInVoice)
}

func TestSetTranscriptionWithoutSessionReturnsNotInVoice(t *testing.T) {
	s := newIdleSession()
	require.ErrorIs(t, s.SetTranscription(true), ErrNotInVoice)
}

func TestGetTranscriptWithoutSessionReturnsNil(t *testing.T) {
	s := newIdleSession()
	require.Nil(t, s.GetTranscript(10))
}

func TestPlayAudioWithoutSessionReturnsNotInVoice(t *testing.T) {
	s := newIdleSession()
	err := s.PlayAudio(context.Background(), make([]byte, 100))
	require.ErrorIs(t, err, ErrNotInVoice)
}

func TestPlayAudioBusyWhenSemaphoreHeld(t *testing.T) {
	s := newIdleSession()
	s.playSem <- struct{}{} // simulate an in-flight PlayAudio call
	defer func() { <-s.playSem }()

	err := s.PlayAudio(context.Background(), make([]byte, 100))
	require.ErrorIs(t, err, ErrBusy)
}

func TestJoinVoiceTwiceReturnsAlreadyInVoice(t *testing.T) {
	s := newIdleSession()
	s.mu.Lock()
	s.session = &VoiceSession{GuildID: "g1", State: StateActive}
	s.mu.Unlock()

	err := s.JoinVoice(context.Background(), "g1", "c1")
	require.ErrorIs(t, err, ErrAlreadyInVoice)
}

func TestDisplayNameForFallsBackToPlaceholderWhenResolverEmpty(t *testing.T) {
	s := NewSession(nil, NewNoopResolver(), nil, nil, nil, nil)
	name := s.displayNameFor("123456789012")
	require.Equal(t, "User_9012", name)
}

func TestDisplayNameForUsesResolverWhenAvailable(t *testing.T) {
	s := NewSession(nil, stubResolver{name: "Ada"}, nil, nil, nil, nil)
	require.Equal(t, "Ada", s.displayNameFor("any-id"))
}

func TestDisplayNameForShortIDUsesWholeID(t *testing.T) {
	s := NewSession(nil, NewNoopResolver(), nil, nil, nil, nil)
	require.Equal(t, "User_42", s.displayNameFor("42"))
}

func TestSilenceTimeoutAndHardCapFallBackWithoutConfig(t *testing.T) {
	s := newIdleSession()
	require.Equal(t, speaker.DefaultSilenceTimeout, s.silenceTimeout())
	require.Equal(t, speaker.DefaultHardCap, s.hardCap())
}

type stubResolver struct{ name string }

func (s stubResolver) UserName(string) string    { return s.name }
func (s stubResolver) GuildName(string) string   { return "" }
func (s stubResolver) ChannelName(string) string { return "" }
