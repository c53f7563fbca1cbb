package transport

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	httperrors "github.com/nczempin/httpd-go/errors"
)

// UnixTransport implements the Transport interface over an accepted Unix
// domain socket connection
type UnixTransport struct {
	conn     net.Conn
	timeouts Timeouts
}

// NewUnixTransport wraps an accepted Unix domain socket connection
func NewUnixTransport(conn net.Conn, timeouts Timeouts) *UnixTransport {
	return &UnixTransport{
		conn:     conn,
		timeouts: timeouts,
	}
}

// Write sends data over the Unix domain socket
func (t *UnixTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	if t.timeouts.Write > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.timeouts.Write)); err != nil {
			return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "failed to set write deadline", err)
		}
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		if isTimeout(err) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorTimeout, "write deadline exceeded", err)
		}
		if strings.Contains(err.Error(), "broken pipe") ||
			strings.Contains(err.Error(), "connection reset") {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "peer closed connection", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

// Read receives data from the Unix domain socket
func (t *UnixTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "not connected", nil)
	}

	if t.timeouts.Read > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeouts.Read)); err != nil {
			return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "failed to set read deadline", err)
		}
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorTimeout, "read deadline exceeded", err)
		}
		if errors.Is(err, io.EOF) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
	}

	return n, nil
}

// Close closes the Unix domain socket connection
func (t *UnixTransport) Close() error {
	if t.conn == nil {
		return nil // Idempotent close
	}

	err := t.conn.Close()
	t.conn = nil

	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketCloseFailure, "close failed", err)
	}

	return nil
}

// RemoteAddr returns the peer address, usually empty for Unix sockets
func (t *UnixTransport) RemoteAddr() string {
	if t.conn == nil {
		return ""
	}
	if addr := t.conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "unix"
}
