// Package ttsstt implements the thin, opaque-endpoint TTS/STT boundary
// (spec.md §4.11/C12): text-to-speech returns the provider's raw audio byte
// stream as-is, speech-to-text takes PCM plus options and returns text
// plus optional word-level timing. Both are network calls whose failures
// are logged and never terminate the voice session.
package ttsstt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/discord-voice-lab/internal/logging"
)

// TTSRequest is the opaque request shape for a synthesis call (spec.md
// §4.11: "given text and a voice id, return a raw audio byte stream").
type TTSRequest struct {
	Text    string
	VoiceID string
}

// TTSClient synthesizes speech via an external HTTP provider. The provider
// endpoint is treated as opaque: this client does not know or care what
// audio encoding the provider returns. Nothing in this module transcodes it:
// the encode pipeline (C4) accepts only 48 kHz 16-bit stereo PCM.
type TTSClient struct {
	URL        string
	AuthToken  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewTTSClient builds a client against url. An empty url means TTS is
// unconfigured; Synthesize then returns ErrNotConfigured.
func NewTTSClient(url, authToken string) *TTSClient {
	return &TTSClient{
		URL:        url,
		AuthToken:  authToken,
		HTTPClient: &http.Client{},
		Timeout:    15 * time.Second,
	}
}

// Synthesize POSTs {text, voice_id} and returns the raw audio bytes the
// provider responds with, unconverted; they are fit for C4 only if the
// provider already returns 48 kHz 16-bit stereo PCM.
func (c *TTSClient) Synthesize(ctx context.Context, req TTSRequest) ([]byte, error) {
	if c.URL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]string{
		"text":     req.Text,
		"voice_id": req.VoiceID,
	})
	if err != nil {
		return nil, fmt.Errorf("ttsstt: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ttsstt: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		logging.Warnw("tts: request failed", "url", c.URL, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logging.Warnw("tts: provider error", "url", c.URL, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrProviderStatus, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ttsstt: read response: %w", err)
	}

	logging.Debugw("tts: synthesis complete", "voice_id", req.VoiceID, "bytes", len(audio), "latency_ms", time.Since(start).Milliseconds())
	return audio, nil
}
