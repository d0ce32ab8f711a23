// Command mcp-server exposes the voice core's six outer operations
// (JoinVoice, LeaveVoice, PlayAudio, SetTranscription, GetTranscript,
// GetVoiceStatus — spec.md §6) as MCP tools over a WebSocket transport, one
// voice.Session per guild.
package main

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/discord-voice-lab/internal/config"
	"github.com/discord-voice-lab/internal/logging"
	"github.com/discord-voice-lab/internal/ttsstt"
	"github.com/discord-voice-lab/internal/voice"
)

// sessionManager owns one voice.Session per guild, lazily created on the
// first JoinVoice for that guild (spec.md §3: "the lifecycle object for the
// one active voice connection a process holds" — here scoped per guild
// since one process serves many guilds).
type sessionManager struct {
	bridge   *voice.GatewayBridge
	resolver voice.NameResolver
	tts      *ttsstt.TTSClient
	stt      *ttsstt.STTClient
	wake     *voice.WakeDetector
	cfg      *config.Config

	mu       sync.Mutex
	sessions map[string]*voice.Session
}

func (m *sessionManager) get(guildID string) *voice.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[guildID]
	if !ok {
		s = voice.NewSession(m.bridge, m.resolver, m.tts, m.stt, m.wake, m.cfg)
		m.sessions[guildID] = s
	}
	return s
}

type joinVoiceArgs struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

type leaveVoiceArgs struct {
	GuildID string `json:"guild_id"`
}

type playAudioArgs struct {
	GuildID string `json:"guild_id"`
	PCMB64  string `json:"pcm_base64"` // 48kHz 16-bit stereo PCM, base64-encoded
}

type setTranscriptionArgs struct {
	GuildID string `json:"guild_id"`
	Enabled bool   `json:"enabled"`
}

type getTranscriptArgs struct {
	GuildID string `json:"guild_id"`
	Limit   int    `json:"limit"`
}

type getVoiceStatusArgs struct {
	GuildID string `json:"guild_id"`
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errResult(err error) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, nil, nil
}

func registerTools(server *mcp.Server, mgr *sessionManager) {
	mcp.AddTool(server, &mcp.Tool{Name: "join_voice", Description: "Join a Discord voice channel and start the handshake (spec.md §9)."},
		func(ctx context.Context, req *mcp.CallToolRequest, args joinVoiceArgs) (*mcp.CallToolResult, any, error) {
			s := mgr.get(args.GuildID)
			if err := s.JoinVoice(ctx, args.GuildID, args.ChannelID); err != nil {
				return errResult(err)
			}
			return textResult("joined"), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "leave_voice", Description: "Leave the active voice channel, flushing any open utterances first."},
		func(ctx context.Context, req *mcp.CallToolRequest, args leaveVoiceArgs) (*mcp.CallToolResult, any, error) {
			s := mgr.get(args.GuildID)
			if err := s.LeaveVoice(ctx); err != nil {
				return errResult(err)
			}
			return textResult("left"), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "play_audio", Description: "Play base64-encoded 48kHz 16-bit stereo PCM into the active voice session."},
		func(ctx context.Context, req *mcp.CallToolRequest, args playAudioArgs) (*mcp.CallToolResult, any, error) {
			pcm, err := base64.StdEncoding.DecodeString(args.PCMB64)
			if err != nil {
				return errResult(err)
			}
			s := mgr.get(args.GuildID)
			if err := s.PlayAudio(ctx, pcm); err != nil {
				return errResult(err)
			}
			return textResult("played"), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "set_transcription", Description: "Enable or disable submitting flushed utterances to STT."},
		func(ctx context.Context, req *mcp.CallToolRequest, args setTranscriptionArgs) (*mcp.CallToolResult, any, error) {
			s := mgr.get(args.GuildID)
			if err := s.SetTranscription(args.Enabled); err != nil {
				return errResult(err)
			}
			return textResult("ok"), nil, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "get_transcript", Description: "Return the most recent transcript entries (spec.md §6)."},
		func(ctx context.Context, req *mcp.CallToolRequest, args getTranscriptArgs) (*mcp.CallToolResult, any, error) {
			s := mgr.get(args.GuildID)
			entries := s.GetTranscript(args.Limit)
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: ""}}}, entries, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "get_voice_status", Description: "Return the current voice session state and failure counters."},
		func(ctx context.Context, req *mcp.CallToolRequest, args getVoiceStatusArgs) (*mcp.CallToolResult, any, error) {
			s := mgr.get(args.GuildID)
			status := s.GetVoiceStatus()
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: status.State}}}, status, nil
		})
}

func main() {
	logging.Init()
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken())
	if err != nil {
		log.Fatalf("discordgo.New: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	if err := dg.Open(); err != nil {
		log.Fatalf("discord session open: %v", err)
	}
	defer dg.Close()

	mgr := &sessionManager{
		bridge:   voice.NewGatewayBridge(dg),
		resolver: voice.NewDiscordResolver(dg),
		tts:      ttsstt.NewTTSClient(cfg.TTSURL(), cfg.SessionKeyAPIKey()),
		stt:      ttsstt.NewSTTClient(cfg.WhisperURL(), "", cfg.SessionKeyAPIKey()),
		wake:     voice.NewWakeDetector(nil, cfg.WakeWindowSeconds()),
		cfg:      cfg,
		sessions: make(map[string]*voice.Session),
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "discord-voice-mcp", Version: "v0.1.0"}, nil)
	registerTools(server, mgr)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	upgrader := websocket.Upgrader{}
	http.HandleFunc("/mcp/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warnw("ws upgrade failed", "err", err)
			return
		}
		t := NewWebSocketTransport(conn)
		go func() {
			session, err := server.Connect(context.Background(), t, nil)
			if err != nil {
				logging.Warnw("mcp server connect failed", "err", err)
				return
			}
			if err := session.Wait(); err != nil {
				logging.Warnw("mcp session ended with error", "err", err)
			} else {
				logging.Infow("mcp session ended")
			}
		}()
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "9001"
	}
	logging.Infow("mcp server listening", "port", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}
