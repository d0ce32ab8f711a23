package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresBotToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("SILENCE_FLUSH_MS", "")
	t.Setenv("UTTERANCE_MAX_MS", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "token", cfg.DiscordBotToken())
	require.Equal(t, "info", cfg.LogLevel())
	require.Equal(t, 2000*1000*1000, int(cfg.SilenceFlushDuration()))
	require.Equal(t, 10000*1000*1000, int(cfg.UtteranceMaxDuration()))
}

func TestLoadHonorsOverrides(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("SILENCE_FLUSH_MS", "500")
	t.Setenv("UTTERANCE_MAX_MS", "8000")
	t.Setenv("TRANSCRIPT_DIR", "/tmp/transcripts")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 500*1000*1000, int(cfg.SilenceFlushDuration()))
	require.Equal(t, 8000*1000*1000, int(cfg.UtteranceMaxDuration()))
	require.Equal(t, "/tmp/transcripts", cfg.TranscriptDir())
}
