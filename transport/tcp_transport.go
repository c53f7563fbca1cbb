package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	httperrors "github.com/nczempin/httpd-go/errors"
)

// TcpTransport implements the Transport interface over an accepted TCP
// connection
type TcpTransport struct {
	conn     net.Conn
	timeouts Timeouts
}

// NewTcpTransport wraps an accepted TCP connection
func NewTcpTransport(conn net.Conn, timeouts Timeouts) (*TcpTransport, error) {
	// Set TCP_NODELAY to disable Nagle's algorithm for lower latency
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, httperrors.NewTransportError(
				httperrors.TransportErrorAcceptFailure,
				"failed to set TCP_NODELAY",
				err,
			)
		}
	}

	return &TcpTransport{
		conn:     conn,
		timeouts: timeouts,
	}, nil
}

// Write sends data over the TCP connection
func (t *TcpTransport) Write(buf []byte) (int, error) {
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
		// Check for broken pipe or connection reset
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "peer closed connection", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

// Read receives data from the TCP connection
func (t *TcpTransport) Read(buf []byte) (int, error) {
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
		if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
	}

	return n, nil
}

// Close closes the TCP connection
func (t *TcpTransport) Close() error {
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

// RemoteAddr returns the peer address
func (t *TcpTransport) RemoteAddr() string {
	if t.conn == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
