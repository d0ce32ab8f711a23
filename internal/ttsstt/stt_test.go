package ttsstt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTranscribeReturnsTextAndWords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		require.Equal(t, "1", r.URL.Query().Get("word_timestamps"))
		body, _ := json.Marshal(map[string]interface{}{
			"text": "hello world",
			"words": []map[string]interface{}{
				{"word": "hello", "start_ms": 0.0, "end_ms": 200.0},
				{"word": "world", "start_ms": 210.0, "end_ms": 400.0},
			},
		})
		w.Write(body)
	}))
	defer srv.Close()

	c := NewSTTClient(srv.URL, "base", "")
	result, err := c.Transcribe(context.Background(), make([]byte, 100), DefaultSTTOptions)
	require.NoError(t, err)
	require.Equal(t, "hello world", result.Text)
	require.Len(t, result.Words, 2)
	require.Equal(t, "hello", result.Words[0].Word)
}

func TestTranscribeWithoutURLReturnsNotConfigured(t *testing.T) {
	c := NewSTTClient("", "", "")
	_, err := c.Transcribe(context.Background(), []byte{1, 2}, DefaultSTTOptions)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestTranscribeRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	c := NewSTTClient(srv.URL, "", "")
	c.RetryBaseDelay = time.Millisecond
	result, err := c.Transcribe(context.Background(), []byte{1, 2}, DefaultSTTOptions)
	require.NoError(t, err)
	require.Equal(t, "ok", result.Text)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTranscribeDoesNotRetryOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewSTTClient(srv.URL, "", "")
	c.RetryBaseDelay = time.Millisecond
	_, err := c.Transcribe(context.Background(), []byte{1, 2}, DefaultSTTOptions)
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
