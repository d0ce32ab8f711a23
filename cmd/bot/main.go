// Command bot runs the Discord gateway connection and wires it to the
// from-scratch voice core (voicegateway/transport/rtpcrypto) via
// voice.GatewayBridge and voice.Session, rather than discordgo's built-in
// VoiceConnection (spec.md §3/§9; DESIGN.md C8).
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-lab/internal/config"
	"github.com/discord-voice-lab/internal/logging"
	"github.com/discord-voice-lab/internal/ttsstt"
	"github.com/discord-voice-lab/internal/voice"
)

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
	logging.Infow("connected to discord", "user", dg.State.User.Username, "id", dg.State.User.ID)

	bridge := voice.NewGatewayBridge(dg)
	resolver := voice.NewDiscordResolver(dg)
	tts := ttsstt.NewTTSClient(cfg.TTSURL(), cfg.SessionKeyAPIKey())
	stt := ttsstt.NewSTTClient(cfg.WhisperURL(), "", cfg.SessionKeyAPIKey())
	wake := voice.NewWakeDetector(nil, cfg.WakeWindowSeconds())

	session := voice.NewSession(bridge, resolver, tts, stt, wake, cfg)

	gid := os.Getenv("GUILD_ID")
	cid := os.Getenv("VOICE_CHANNEL_ID")
	if gid != "" && cid != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second) // JoinVoice enforces its own 15s internally
		if err := session.JoinVoice(ctx, gid, cid); err != nil {
			logging.Warnw("join_voice failed", "guild_id", gid, "channel_id", cid, "err", err)
		} else {
			logging.Infow("joined voice channel", "guild_id", gid, "channel_id", cid)
		}
		cancel()
	} else {
		logging.Infow("GUILD_ID or VOICE_CHANNEL_ID not set; not auto-joining voice")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logging.Infow("shutting down: leaving voice and closing discord session")
	if err := session.LeaveVoice(context.Background()); err != nil && !errors.Is(err, voice.ErrNotInVoice) {
		logging.Warnw("leave_voice error during shutdown", "err", err)
	}
	if err := dg.Close(); err != nil {
		logging.Warnw("discord session close error", "err", err)
	}
	logging.Infow("shutdown complete")
}
