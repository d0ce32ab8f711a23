package transport

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDiscoveryServer answers one IP-discovery request the way Discord's
// voice UDP server does, then closes.
func fakeDiscoveryServer(t *testing.T, ip string, port uint16) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		defer pc.Close()
		buf := make([]byte, discoveryPacketLen)
		n, addr, err := pc.ReadFrom(buf)
		if err != nil || n != discoveryPacketLen {
			return
		}

		var resp [discoveryPacketLen]byte
		binary.BigEndian.PutUint16(resp[0:2], 2)
		binary.BigEndian.PutUint16(resp[2:4], 70)
		copy(resp[4:8], buf[4:8])
		copy(resp[8:8+len(ip)], ip)
		binary.BigEndian.PutUint16(resp[72:74], port)

		_, _ = pc.WriteTo(resp[:], addr)
	}()

	return pc.LocalAddr().String()
}

func TestDialPerformsIPDiscovery(t *testing.T) {
	addr := fakeDiscoveryServer(t, "203.0.113.7", 51820)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, ip, port, err := Dial(ctx, addr, 0xDEADBEEF)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, "203.0.113.7", ip)
	require.Equal(t, uint16(51820), port)
}
