// Package config centralizes environment configuration for the voice core,
// replacing the ad hoc os.Getenv calls scattered through the teacher's
// packages with one viper-backed loader.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the voice core's runtime settings.
type Config struct {
	v *viper.Viper
}

// Load builds a Config from environment variables (no config file source:
// every key here is deployment-environment-specific, not a checked-in
// default set).
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvs(v); err != nil {
		return nil, fmt.Errorf("config: bind envs: %w", err)
	}

	cfg := &Config{v: v}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("transcript_dir", "./transcripts")
	v.SetDefault("silence_flush_ms", 2000)
	v.SetDefault("utterance_max_ms", 10000)
	v.SetDefault("wake_window_s", 0)
}

func bindEnvs(v *viper.Viper) error {
	bindings := []struct {
		key string
		env string
	}{
		{"discord_bot_token", "DISCORD_BOT_TOKEN"},
		{"session_key_provider_api_key", "SESSION_KEY_PROVIDER_API_KEY"},
		{"preferred_voice_id", "PREFERRED_VOICE_ID"},
		{"log_level", "LOG_LEVEL"},
		{"transcript_dir", "TRANSCRIPT_DIR"},
		{"silence_flush_ms", "SILENCE_FLUSH_MS"},
		{"utterance_max_ms", "UTTERANCE_MAX_MS"},
		{"whisper_url", "WHISPER_URL"},
		{"tts_url", "TTS_URL"},
		{"wake_phrases", "WAKE_PHRASES"},
		{"wake_window_s", "WAKE_WINDOW_S"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return fmt.Errorf("bind %s: %w", b.key, err)
		}
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.v.GetString("discord_bot_token") == "" {
		return fmt.Errorf("config: DISCORD_BOT_TOKEN is required")
	}
	return nil
}

func (c *Config) DiscordBotToken() string   { return c.v.GetString("discord_bot_token") }
func (c *Config) SessionKeyAPIKey() string  { return c.v.GetString("session_key_provider_api_key") }
func (c *Config) PreferredVoiceID() string  { return c.v.GetString("preferred_voice_id") }
func (c *Config) LogLevel() string          { return c.v.GetString("log_level") }
func (c *Config) TranscriptDir() string     { return c.v.GetString("transcript_dir") }
func (c *Config) WhisperURL() string        { return c.v.GetString("whisper_url") }
func (c *Config) TTSURL() string            { return c.v.GetString("tts_url") }
func (c *Config) WakePhrasesRaw() string    { return c.v.GetString("wake_phrases") }

func (c *Config) SilenceFlushDuration() time.Duration {
	return time.Duration(c.v.GetInt("silence_flush_ms")) * time.Millisecond
}

func (c *Config) UtteranceMaxDuration() time.Duration {
	return time.Duration(c.v.GetInt("utterance_max_ms")) * time.Millisecond
}

func (c *Config) WakeWindowSeconds() int { return c.v.GetInt("wake_window_s") }
