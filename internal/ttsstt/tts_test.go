package ttsstt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSynthesizeReturnsAudioBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte("fake-audio-bytes"))
	}))
	defer srv.Close()

	c := NewTTSClient(srv.URL, "tok")
	audio, err := c.Synthesize(context.Background(), TTSRequest{Text: "hello", VoiceID: "v1"})
	require.NoError(t, err)
	require.Equal(t, []byte("fake-audio-bytes"), audio)
}

func TestSynthesizeWithoutURLReturnsNotConfigured(t *testing.T) {
	c := NewTTSClient("", "")
	_, err := c.Synthesize(context.Background(), TTSRequest{Text: "hi"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestSynthesizePropagatesProviderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewTTSClient(srv.URL, "")
	_, err := c.Synthesize(context.Background(), TTSRequest{Text: "hi"})
	require.ErrorIs(t, err, ErrProviderStatus)
}
