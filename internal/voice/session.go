package voice

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/discord-voice-lab/internal/config"
	"github.com/discord-voice-lab/internal/logging"
	"github.com/discord-voice-lab/internal/transcript"
	"github.com/discord-voice-lab/internal/ttsstt"
	"github.com/discord-voice-lab/internal/voice/codec"
	"github.com/discord-voice-lab/internal/voice/pipeline"
	"github.com/discord-voice-lab/internal/voice/speaker"
	"github.com/discord-voice-lab/internal/voice/transport"
	"github.com/discord-voice-lab/internal/voice/voicegateway"
)

const (
	joinTimeout   = 15 * time.Second
	sweepInterval = 500 * time.Millisecond
	cipherMode    = "xsalsa20_poly1305_lite"
)

// NameResolver resolves Discord ids to display names for transcript entries
// (spec.md §4.10). Satisfied by discordResolver and NoopResolver.
type NameResolver interface {
	UserName(userID string) string
	GuildName(guildID string) string
	ChannelName(channelID string) string
}

// Session is the top-level orchestrator wiring the voice handshake state
// machine (voicegateway/transport/rtpcrypto), the RTP send/receive
// pipelines, the per-speaker buffer, the transcript store, and the TTS/STT
// adapters into the six outer operations (spec.md §6). One Session holds at
// most one active voice connection at a time, matching spec.md §3's
// "lifecycle object for the one active voice connection a process holds".
type Session struct {
	bridge   *GatewayBridge
	resolver NameResolver
	tts      *ttsstt.TTSClient
	stt      *ttsstt.STTClient
	wake     *WakeDetector
	cfg      *config.Config

	playSem chan struct{} // 1-buffered: PlayAudio fails Busy rather than queueing

	mu              sync.Mutex
	joining         bool
	session         *VoiceSession
	gw              *voicegateway.Gateway
	udp             *transport.Conn
	encoder         *codec.Encoder
	decoder         *codec.Decoder
	decSession      *pipeline.DecodeSession
	speakerBuf      *speaker.Buffer
	transcriptStore *transcript.Store
	transcribe      bool
	cancel          context.CancelFunc
}

// NewSession builds a Session. resolver, tts, stt and wake may be nil:
// a nil resolver falls back to placeholder display names, a nil tts/stt
// means those adapters are unconfigured (PlayAudio still works with
// caller-supplied PCM; SetTranscription(true) becomes a no-op for STT
// since there is nothing to submit utterances to).
func NewSession(bridge *GatewayBridge, resolver NameResolver, tts *ttsstt.TTSClient, stt *ttsstt.STTClient, wake *WakeDetector, cfg *config.Config) *Session {
	return &Session{
		bridge:  bridge,
		resolver: resolver,
		tts:     tts,
		stt:     stt,
		wake:    wake,
		cfg:     cfg,
		playSem: make(chan struct{}, 1),
	}
}

// JoinVoice performs the full handshake (spec.md §9): gateway voice-state
// update, voice websocket identify, IP discovery, protocol selection, and
// session key exchange, then starts the receive/control/sweep loops. It
// blocks until the session reaches Active or the 15s overall timeout
// expires, at which point any partial handshake state is rolled back.
func (s *Session) JoinVoice(ctx context.Context, guildID, channelID string) error {
	s.mu.Lock()
	if s.session != nil || s.joining {
		s.mu.Unlock()
		return ErrAlreadyInVoice
	}
	s.joining = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.joining = false
		s.mu.Unlock()
	}()

	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	gw, udpConn, vs, err := s.handshake(joinCtx, guildID, channelID)
	if err != nil {
		return err
	}

	encoder, err := codec.NewEncoder()
	if err != nil {
		udpConn.Close()
		gw.Close()
		_ = s.bridge.Leave(guildID)
		return fmt.Errorf("voice: build encoder: %w", err)
	}
	decoder, err := codec.NewDecoder()
	if err != nil {
		udpConn.Close()
		gw.Close()
		_ = s.bridge.Leave(guildID)
		return fmt.Errorf("voice: build decoder: %w", err)
	}

	store, err := transcript.New(s.transcriptPath(guildID))
	if err != nil {
		logging.Warnw("voice: transcript store init failed, continuing without persistence", "guild_id", guildID, "err", err)
		store, _ = transcript.New("")
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.session = vs
	s.gw = gw
	s.udp = udpConn
	s.encoder = encoder
	s.decoder = decoder
	s.decSession = pipeline.NewDecodeSession(decoder, &vs.SecretKey)
	s.speakerBuf = speaker.New(s.silenceTimeout(), s.hardCap(), s.flushUtterance)
	s.transcriptStore = store
	s.transcribe = s.sttConfigured()
	s.cancel = sessCancel
	s.mu.Unlock()

	go s.receiveLoop(sessCtx)
	go s.controlLoop(sessCtx, gw)
	go s.sweepLoop(sessCtx)

	logging.Infow("voice: session active", "guild_id", guildID, "channel_id", channelID, "ssrc", vs.SSRC)
	return nil
}

// LeaveVoice synchronously tears the session down (spec.md §9): cancels the
// background loops, force-flushes any open utterances to STT (best-effort),
// and closes the UDP socket, voice websocket, and gateway voice state.
func (s *Session) LeaveVoice(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	vs := s.session
	gw := s.gw
	udp := s.udp
	buf := s.speakerBuf
	cancel := s.cancel
	s.mu.Unlock()

	if vs == nil {
		return ErrNotInVoice
	}

	if cancel != nil {
		cancel()
	}
	if buf != nil {
		buf.FlushAll()
	}
	if gw != nil {
		gw.Close()
	}
	if udp != nil {
		udp.Close()
	}
	if err := s.bridge.Leave(vs.GuildID); err != nil {
		logging.Warnw("voice: leave gateway voice state failed", "guild_id", vs.GuildID, "err", err)
	}

	s.mu.Lock()
	s.session = nil
	s.gw = nil
	s.udp = nil
	s.decSession = nil
	s.speakerBuf = nil
	s.cancel = nil
	s.mu.Unlock()

	return nil
}

// PlayAudio Opus-encodes, RTP-frames, seals and paces pcm (48kHz 16-bit
// stereo PCM) over the active session's UDP socket (spec.md §4.4/§9). A
// second concurrent call fails with ErrBusy rather than queuing behind the
// first (DESIGN.md documents this choice among spec.md §9's two options).
func (s *Session) PlayAudio(ctx context.Context, pcm []byte) error {
	select {
	case s.playSem <- struct{}{}:
	default:
		return ErrBusy
	}
	defer func() { <-s.playSem }()

	s.mu.Lock()
	vs := s.session
	enc := s.encoder
	udp := s.udp
	gw := s.gw
	s.mu.Unlock()

	if vs == nil {
		return ErrNotInVoice
	}
	if vs.State != StateActive {
		return ErrNotReady
	}

	encSession := pipeline.NewEncodeSession(enc, &vs.SecretKey, vs.SSRC, vs.Sequence, vs.Timestamp)
	queue, err := encSession.BuildQueue(pcm)
	if err != nil {
		if errors.Is(err, pipeline.ErrSequenceExhausted) {
			return ErrSequenceExhausted
		}
		return fmt.Errorf("voice: encode: %w", err)
	}

	sender := &udpSender{udp: udp, onFail: func() {
		s.mu.Lock()
		vs.SendFailures++
		s.mu.Unlock()
	}}

	paceErr := pipeline.Pace(ctx, sender, queue,
		func() {
			vs.Speaking = true
			_ = gw.Speaking(vs.SSRC, voicegateway.SpeakingMicrophone)
		},
		func() {
			vs.Speaking = false
			_ = gw.Speaking(vs.SSRC, 0)
		},
	)

	s.mu.Lock()
	vs.Sequence = encSession.Sequence()
	vs.Timestamp = encSession.Timestamp()
	s.mu.Unlock()

	if paceErr != nil {
		return fmt.Errorf("%w: %v", ErrTransport, paceErr)
	}
	return nil
}

// SetTranscription enables or disables posting flushed utterances to the
// STT adapter (spec.md §6). It never affects the transcript store's
// ability to accept entries already produced before the toggle.
func (s *Session) SetTranscription(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNotInVoice
	}
	s.transcribe = enabled
	return nil
}

// GetTranscript returns the last limit transcript entries, or all of them
// if limit<=0 (spec.md §6).
func (s *Session) GetTranscript(limit int) []TranscriptEntry {
	s.mu.Lock()
	store := s.transcriptStore
	s.mu.Unlock()
	if store == nil {
		return nil
	}
	return store.GetTranscript(limit)
}

// GetVoiceStatus returns a snapshot of the session's state and failure
// counters (spec.md §6, extended per SPEC_FULL.md §4).
func (s *Session) GetVoiceStatus() VoiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return VoiceStatus{State: StateIdle.String()}
	}
	status := VoiceStatus{
		State:        s.session.State.String(),
		GuildID:      s.session.GuildID,
		ChannelID:    s.session.ChannelID,
		Speaking:     s.session.Speaking,
		SendFailures: s.session.SendFailures,
	}
	if s.decSession != nil {
		status.DecryptFailures = s.decSession.DecryptFailures()
		status.DecodeFailures = s.decSession.DecodeFailures()
	}
	return status
}

// handshake runs the gateway-correlation → voice-websocket → IP-discovery →
// protocol-selection → session-key sequence (spec.md §9) and returns the
// live gateway/socket plus the resulting VoiceSession, without touching s's
// fields — JoinVoice and the post-failure resume path both build on this.
func (s *Session) handshake(ctx context.Context, guildID, channelID string) (*voicegateway.Gateway, *transport.Conn, *VoiceSession, error) {
	info, err := s.bridge.Join(ctx, guildID, channelID)
	if err != nil {
		_ = s.bridge.Leave(guildID)
		return nil, nil, nil, err
	}

	gw := voicegateway.New(voicegateway.State{
		GuildID:   info.GuildID,
		UserID:    info.UserID,
		SessionID: info.SessionID,
		Token:     info.Token,
		Endpoint:  info.Endpoint,
	})
	if err := gw.Open(ctx); err != nil {
		_ = s.bridge.Leave(guildID)
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	ready, err := waitForReady(ctx, gw)
	if err != nil {
		gw.Close()
		_ = s.bridge.Leave(guildID)
		return nil, nil, nil, err
	}

	udpConn, extIP, extPort, err := transport.Dial(ctx, ready.Addr(), ready.SSRC)
	if err != nil {
		gw.Close()
		_ = s.bridge.Leave(guildID)
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if err := gw.SelectProtocol(extIP, extPort, cipherMode); err != nil {
		udpConn.Close()
		gw.Close()
		_ = s.bridge.Leave(guildID)
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	sessDesc, err := waitForSessionDescription(ctx, gw)
	if err != nil {
		udpConn.Close()
		gw.Close()
		_ = s.bridge.Leave(guildID)
		return nil, nil, nil, err
	}

	vs := &VoiceSession{
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    info.UserID,
		SessionID: info.SessionID,
		Token:     info.Token,
		Endpoint:  info.Endpoint,
		Mode:      sessDesc.Mode,
		SSRC:      ready.SSRC,
		SecretKey: sessDesc.SecretKey,
		State:     StateActive,
		CreatedAt: time.Now(),
	}
	return gw, udpConn, vs, nil
}

// rejoin redoes the handshake for an existing session after a fatal voice
// websocket error (called from handleGatewayFailure), reusing the speaker
// buffer and transcript store already in place so in-flight utterances and
// persisted history survive a reconnect. Outer gateway ops 7/9 do not reach
// this path.
func (s *Session) rejoin(ctx context.Context, guildID, channelID string) error {
	gw, udpConn, vs, err := s.handshake(ctx, guildID, channelID)
	if err != nil {
		return err
	}

	encoder, err := codec.NewEncoder()
	if err != nil {
		udpConn.Close()
		gw.Close()
		_ = s.bridge.Leave(guildID)
		return fmt.Errorf("voice: build encoder: %w", err)
	}
	decoder, err := codec.NewDecoder()
	if err != nil {
		udpConn.Close()
		gw.Close()
		_ = s.bridge.Leave(guildID)
		return fmt.Errorf("voice: build decoder: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.session = vs
	s.gw = gw
	s.udp = udpConn
	s.encoder = encoder
	s.decoder = decoder
	s.decSession = pipeline.NewDecodeSession(decoder, &vs.SecretKey)
	s.cancel = sessCancel
	s.mu.Unlock()

	go s.receiveLoop(sessCtx)
	go s.controlLoop(sessCtx, gw)
	go s.sweepLoop(sessCtx)

	logging.Infow("voice: session resumed after gateway failure", "guild_id", guildID, "ssrc", vs.SSRC)
	return nil
}

// handleGatewayFailure reacts to a fatal voice websocket error (spec.md §7:
// "repeated heartbeat miss, unexpected ws close during Active") by tearing
// down the dead gateway/socket and attempting one automatic rejoin; if that
// also fails the session is fully closed and the outer caller must issue a
// fresh JoinVoice.
func (s *Session) handleGatewayFailure(err error) {
	s.mu.Lock()
	vs := s.session
	oldCancel := s.cancel
	oldUDP := s.udp
	s.mu.Unlock()
	if vs == nil {
		return
	}
	logging.Warnw("voice: voice websocket closed, attempting resume", "guild_id", vs.GuildID, "err", err)

	if oldCancel != nil {
		oldCancel()
	}
	if oldUDP != nil {
		oldUDP.Close()
	}

	resumeCtx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()

	if rejoinErr := s.rejoin(resumeCtx, vs.GuildID, vs.ChannelID); rejoinErr != nil {
		logging.Warnw("voice: resume did not succeed, session closed", "guild_id", vs.GuildID, "err", rejoinErr)
		s.forceClose()
	}
}

// forceClose tears down the session without the graceful LeaveVoice path
// (no caller is waiting on this); used when the voice websocket fails
// fatally and resume also fails.
func (s *Session) forceClose() {
	s.mu.Lock()
	vs := s.session
	udp := s.udp
	buf := s.speakerBuf
	cancel := s.cancel
	s.mu.Unlock()
	if vs == nil {
		return
	}

	if cancel != nil {
		cancel()
	}
	if buf != nil {
		buf.FlushAll()
	}
	if udp != nil {
		udp.Close()
	}
	_ = s.bridge.Leave(vs.GuildID)

	s.mu.Lock()
	s.session = nil
	s.gw = nil
	s.udp = nil
	s.decSession = nil
	s.speakerBuf = nil
	s.cancel = nil
	s.mu.Unlock()
}

// receiveLoop drains the UDP socket into the decode pipeline and the
// per-speaker buffer (spec.md §4.5) until ctx is cancelled.
func (s *Session) receiveLoop(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		udp := s.udp
		dec := s.decSession
		speakerBuf := s.speakerBuf
		s.mu.Unlock()
		if udp == nil || dec == nil {
			return
		}

		_ = udp.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := udp.ReadInto(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue // read timeout or transient error; spec.md §7: logged, not surfaced
		}

		chunk, ok := dec.HandleDatagram(buf[:n])
		if !ok {
			continue
		}
		if speakerBuf != nil {
			speakerBuf.Append(chunk.SSRC, chunk.PCM, "")
		}
	}
}

// controlLoop dispatches voice websocket events: op 5 fills the speaker
// buffer's SSRC→identity binding (spec.md §9), and a fatal error triggers
// the resume path.
func (s *Session) controlLoop(ctx context.Context, gw *voicegateway.Gateway) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-gw.Events():
			if !ok {
				return
			}
			switch ev.Op {
			case voicegateway.SpeakingOP:
				if ev.Speaking == nil {
					continue
				}
				name := ""
				if s.resolver != nil {
					name = s.resolver.UserName(ev.Speaking.UserID)
				}
				if buf := s.currentSpeakerBuf(); buf != nil {
					buf.Bind(ev.Speaking.SSRC, ev.Speaking.UserID, name)
				}
			case voicegateway.ResumedOP:
				logging.Infow("voice: gateway confirmed resume")
			}
		case err, ok := <-gw.Errs():
			if !ok {
				return
			}
			s.handleGatewayFailure(err)
			return
		}
	}
}

// sweepLoop periodically flushes per-speaker slots that have gone quiet
// (spec.md §4.9's silence-timeout path).
func (s *Session) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if buf := s.currentSpeakerBuf(); buf != nil {
				buf.Sweep()
			}
		}
	}
}

func (s *Session) currentSpeakerBuf() *speaker.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakerBuf
}

// flushUtterance is the speaker buffer's FlushFunc: it submits the
// utterance's PCM to STT and appends a transcript entry on success (spec.md
// §4.10/§4.11). A transcription-disabled session or an unconfigured STT
// adapter drops the utterance silently, matching spec.md §7's
// Configuration-missing behavior for incoming audio.
func (s *Session) flushUtterance(u Utterance, correlationID string) {
	s.mu.Lock()
	transcribe := s.transcribe
	store := s.transcriptStore
	vs := s.session
	stt := s.stt
	s.mu.Unlock()

	if !transcribe || store == nil || stt == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := stt.Transcribe(ctx, u.PCM, ttsstt.DefaultSTTOptions)
		if err != nil {
			logging.Warnw("voice: stt transcription failed, dropping utterance", "correlation_id", correlationID, "speaker", u.SpeakerID, "err", err)
			return
		}
		if result.Text == "" {
			return
		}

		entry := TranscriptEntry{
			SpeakerID:   u.SpeakerID,
			DisplayName: s.displayNameFor(u.SpeakerID),
			Text:        result.Text,
			ProducedAt:  time.Now(),
			Words:       result.Words,
		}
		if s.wake != nil {
			matched, _ := s.wake.Detect(result.Text)
			entry.WakeMatched = matched
		}
		if vs != nil {
			entry.GuildID = vs.GuildID
			entry.ChannelID = vs.ChannelID
		}

		store.Append(entry)
	}()
}

// displayNameFor resolves a speaker id to a display name, falling back to
// spec.md §4.10's User_<last 4 of id> placeholder when the resolver has
// nothing (or there is no resolver at all). The result is never
// back-patched once an entry is written.
func (s *Session) displayNameFor(speakerID string) string {
	if s.resolver != nil {
		if n := s.resolver.UserName(speakerID); n != "" {
			return n
		}
	}
	if len(speakerID) >= 4 {
		return "User_" + speakerID[len(speakerID)-4:]
	}
	return "User_" + speakerID
}

func (s *Session) transcriptPath(guildID string) string {
	if s.cfg == nil {
		return ""
	}
	return filepath.Join(s.cfg.TranscriptDir(), guildID+".json")
}

func (s *Session) silenceTimeout() time.Duration {
	if s.cfg != nil {
		return s.cfg.SilenceFlushDuration()
	}
	return speaker.DefaultSilenceTimeout
}

func (s *Session) hardCap() time.Duration {
	if s.cfg != nil {
		return s.cfg.UtteranceMaxDuration()
	}
	return speaker.DefaultHardCap
}

func (s *Session) sttConfigured() bool {
	return s.stt != nil && s.stt.URL != ""
}

// udpSender adapts transport.Conn to pipeline.Sender, counting send
// failures onto the active VoiceSession (spec.md §7: "never surfaced" —
// callers see the counter via GetVoiceStatus, not a returned error per
// frame).
type udpSender struct {
	udp    *transport.Conn
	onFail func()
}

func (u *udpSender) Send(packet []byte) error {
	if err := u.udp.Write(packet); err != nil {
		if u.onFail != nil {
			u.onFail()
		}
		return err
	}
	return nil
}

func waitForReady(ctx context.Context, gw *voicegateway.Gateway) (*voicegateway.ReadyEvent, error) {
	for {
		select {
		case ev, ok := <-gw.Events():
			if !ok {
				return nil, ErrTransport
			}
			if ev.Op == voicegateway.ReadyOP {
				return ev.Ready, nil
			}
		case err, ok := <-gw.Errs():
			if !ok {
				return nil, ErrTransport
			}
			return nil, err
		case <-ctx.Done():
			return nil, ErrGatewayTimeout
		}
	}
}

func waitForSessionDescription(ctx context.Context, gw *voicegateway.Gateway) (*voicegateway.SessionDescriptionEvent, error) {
	for {
		select {
		case ev, ok := <-gw.Events():
			if !ok {
				return nil, ErrTransport
			}
			if ev.Op == voicegateway.SessionDescriptionOP {
				return ev.SessionDescription, nil
			}
		case err, ok := <-gw.Errs():
			if !ok {
				return nil, ErrTransport
			}
			return nil, err
		case <-ctx.Done():
			return nil, ErrGatewayTimeout
		}
	}
}
