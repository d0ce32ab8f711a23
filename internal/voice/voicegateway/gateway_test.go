package voicegateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeVoiceServer speaks just enough of the voice websocket protocol to
// drive Gateway.Open through Hello/Identify/Ready.
func fakeVoiceServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		hello := mustPayload(t, HelloOP, HelloEvent{HeartbeatIntervalMs: 50})
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, hello))

		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var p Payload
		require.NoError(t, json.Unmarshal(raw, &p))
		require.Equal(t, IdentifyOP, p.Op)

		ready := mustPayload(t, ReadyOP, ReadyEvent{SSRC: 1234, IP: "203.0.113.1", Port: 5555, Modes: []string{"xsalsa20_poly1305_lite"}})
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, ready))

		// keep the connection open long enough for the test to observe Ready
		time.Sleep(200 * time.Millisecond)
	}))
}

func mustPayload(t *testing.T, op OPCode, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	b, err := json.Marshal(Payload{Op: op, Data: data})
	require.NoError(t, err)
	return b
}

func TestOpenIdentifiesAndReceivesReady(t *testing.T) {
	srv := fakeVoiceServer(t)
	defer srv.Close()

	restore := SetDialer(&websocket.Dialer{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}})
	defer restore()

	endpoint := strings.TrimPrefix(srv.URL, "https://")
	gw := New(State{GuildID: "g1", UserID: "u1", SessionID: "s1", Token: "t1", Endpoint: endpoint})
	defer gw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := gw.Open(ctx)
	require.NoError(t, err)

	select {
	case ev := <-gw.Events():
		require.Equal(t, ReadyOP, ev.Op)
		require.NotNil(t, ev.Ready)
		require.Equal(t, uint32(1234), ev.Ready.SSRC)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Ready event")
	}
}

func TestIdentifyRequiresAllFields(t *testing.T) {
	gw := New(State{GuildID: "g1"})
	err := gw.identify()
	require.ErrorIs(t, err, ErrMissingForIdentify)
}
