// Package transport owns the single UDP socket a voice session uses for both
// IP discovery and the RTP send/receive flow (spec.md §4.6).
package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrNoNullTerminator is returned when an IP discovery response's address
// field is missing its NUL terminator.
var ErrNoNullTerminator = errors.New("transport: ip discovery response missing null terminator")

// discoveryPacketLen is the fixed size of the IP discovery request/response
// packet: 2 bytes type + 2 bytes length + 4 bytes SSRC + 64 bytes address +
// 2 bytes port (spec.md §4.6).
const discoveryPacketLen = 74

// Conn is the session's single owned UDP socket.
type Conn struct {
	raw  net.Conn
	ssrc uint32
}

// Dial opens the UDP socket to addr and performs one-shot IP discovery
// (spec.md §4.6): send a 74-byte request carrying type=1, length=70 and our
// SSRC; read the 74-byte reply; the external IP is the NUL-terminated ASCII
// string at bytes [8:72), the external port is the big-endian uint16 at the
// last two bytes.
func Dial(ctx context.Context, addr string, ssrc uint32) (*Conn, string, uint16, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	raw, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, "", 0, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	var req [discoveryPacketLen]byte
	binary.BigEndian.PutUint16(req[0:2], 1)
	binary.BigEndian.PutUint16(req[2:4], 70)
	binary.BigEndian.PutUint32(req[4:8], ssrc)

	if _, err := raw.Write(req[:]); err != nil {
		raw.Close()
		return nil, "", 0, fmt.Errorf("transport: write discovery request: %w", err)
	}

	var resp [discoveryPacketLen]byte
	if _, err := io.ReadFull(raw, resp[:]); err != nil {
		raw.Close()
		return nil, "", 0, fmt.Errorf("transport: read discovery response: %w", err)
	}

	body := resp[8:72]
	nullPos := bytes.IndexByte(body, 0)
	if nullPos < 0 {
		raw.Close()
		return nil, "", 0, ErrNoNullTerminator
	}
	ip := string(body[:nullPos])
	port := binary.BigEndian.Uint16(resp[72:74])

	return &Conn{raw: raw, ssrc: ssrc}, ip, port, nil
}

// Write sends one already-framed, already-encrypted RTP packet.
func (c *Conn) Write(packet []byte) error {
	_, err := c.raw.Write(packet)
	return err
}

// ReadInto reads one raw UDP datagram into buf, returning the number of
// bytes read.
func (c *Conn) ReadInto(buf []byte) (int, error) {
	return c.raw.Read(buf)
}

// SetReadDeadline sets the socket's read deadline, used to make the receive
// loop responsive to context cancellation.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.raw.SetReadDeadline(t)
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.raw.Close()
}
