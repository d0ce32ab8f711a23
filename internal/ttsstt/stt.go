package ttsstt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/discord-voice-lab/internal/logging"
	"github.com/discord-voice-lab/internal/voice/model"
)

// STTOptions is the options contract spec.md §4.11 requires STT callers to
// pass alongside PCM and a model id: word-level timestamps, and whether to
// ask the provider for speaker diarization (kept false; this module already
// owns speaker identity via SSRC binding, so diarization would be redundant
// work the provider need not do).
type STTOptions struct {
	Timestamps         bool
	SpeakerDiarization bool
}

// DefaultSTTOptions matches spec.md §4.11's literal example options.
var DefaultSTTOptions = STTOptions{Timestamps: true, SpeakerDiarization: false}

// STTResult is {text, optional word intervals} per spec.md §4.11.
type STTResult struct {
	Text  string
	Words []model.WordSpan
}

// STTClient submits PCM to an external transcription provider. pcm is
// expected at 48 kHz stereo 16-bit, matching how the per-speaker buffer
// accumulates audio; the client wraps it in a WAV container before sending.
type STTClient struct {
	URL        string
	ModelID    string
	AuthToken  string
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries int
	// RetryBaseDelay scales the exponential backoff between retries
	// (attempt N waits RetryBaseDelay*2^N). Defaults to 1s; tests shrink it.
	RetryBaseDelay time.Duration
}

// NewSTTClient builds a client against url. An empty url means STT is
// unconfigured; Transcribe then returns ErrNotConfigured.
func NewSTTClient(url, modelID, authToken string) *STTClient {
	return &STTClient{
		URL:            url,
		ModelID:        modelID,
		AuthToken:      authToken,
		HTTPClient:     &http.Client{},
		Timeout:        20 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
	}
}

// Transcribe sends pcm (48 kHz stereo 16-bit PCM) for transcription, retrying
// transient failures with exponential backoff (spec.md §4.11: "failures are
// logged and do not terminate the voice session" — the caller decides
// whether a final error here drops the utterance).
func (c *STTClient) Transcribe(ctx context.Context, pcm []byte, opts STTOptions) (STTResult, error) {
	if c.URL == "" {
		return STTResult{}, ErrNotConfigured
	}

	wav := buildWAV(pcm, 48000, 2, 16)

	var lastErr error
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		result, err := c.attempt(ctx, wav, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		logging.Warnw("stt: transient failure, retrying", "attempt", attempt, "err", err)
		select {
		case <-time.After(time.Duration(1<<attempt) * c.RetryBaseDelay):
		case <-ctx.Done():
			return STTResult{}, ctx.Err()
		}
	}
	return STTResult{}, lastErr
}

func (c *STTClient) attempt(ctx context.Context, wav []byte, opts STTOptions) (STTResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(opts), bytes.NewReader(wav))
	if err != nil {
		return STTResult{}, fmt.Errorf("ttsstt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return STTResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return STTResult{}, fmt.Errorf("%w: status %d", ErrProviderStatus, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return STTResult{}, fmt.Errorf("%w: status %d (not retryable)", ErrProviderStatus, resp.StatusCode)
	}

	var out struct {
		Text     string `json:"text"`
		Segments []struct {
			Word    string  `json:"word"`
			StartMs float64 `json:"start_ms"`
			EndMs   float64 `json:"end_ms"`
		} `json:"words"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return STTResult{}, fmt.Errorf("ttsstt: decode response: %w", err)
	}

	result := STTResult{Text: strings.TrimSpace(out.Text)}
	for _, w := range out.Segments {
		result.Words = append(result.Words, model.WordSpan{Word: w.Word, StartMs: w.StartMs, EndMs: w.EndMs})
	}

	logging.Debugw("stt: transcription complete", "bytes", len(wav), "latency_ms", time.Since(start).Milliseconds(), "words", len(result.Words))
	return result, nil
}

func (c *STTClient) requestURL(opts STTOptions) string {
	if !opts.Timestamps && !opts.SpeakerDiarization && c.ModelID == "" {
		return c.URL
	}
	sep := "?"
	if strings.Contains(c.URL, "?") {
		sep = "&"
	}
	var q strings.Builder
	q.WriteString(c.URL)
	if c.ModelID != "" {
		q.WriteString(sep)
		q.WriteString("model=")
		q.WriteString(c.ModelID)
		sep = "&"
	}
	if opts.Timestamps {
		q.WriteString(sep)
		q.WriteString("word_timestamps=1")
		sep = "&"
	}
	q.WriteString(sep)
	q.WriteString("speaker_diarization=")
	q.WriteString(strconv.FormatBool(opts.SpeakerDiarization))
	return q.String()
}

func isRetryable(err error) bool {
	return err != nil && !strings.Contains(err.Error(), "not retryable")
}

// buildWAV wraps 16-bit PCM in a RIFF/WAVE container, matching the
// container STT providers in this pack expect (the teacher's
// whisper_client.go builds the same header by hand rather than pulling in
// an audio-format dependency; there is no WAV-encoding library in the
// retrieval pack, so this stays on stdlib binary/bytes as the teacher did).
func buildWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataLen := uint32(len(pcm))
	riffSize := uint32(4 + (8 + 16) + (8 + dataLen))

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}
