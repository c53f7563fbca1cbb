package transport

import (
	stderrors "errors"
	"io/fs"
	"net"
	"os"

	"github.com/nczempin/httpd-go/errors"
)

// Options selects how accepted connections are wrapped
type Options struct {
	Timeouts Timeouts
	// IoUring serves TCP connections through UringTransport.
	IoUring bool
}

// Listen opens a listener on a "tcp" or "unix" address. A stale Unix
// socket file is removed first.
func Listen(network, address string) (net.Listener, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	case "unix":
		if info, err := os.Lstat(address); err == nil && info.Mode()&os.ModeSocket != 0 {
			if err := os.Remove(address); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
				return nil, errors.NewTransportError(
					errors.TransportErrorListenFailure,
					"failed to remove stale socket "+address,
					err,
				)
			}
		}
	default:
		return nil, errors.NewInvalidArgumentError("unsupported network " + network)
	}

	l, err := net.Listen(network, address)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorListenFailure,
			"failed to listen on "+address,
			err,
		)
	}
	return l, nil
}

// Wrap picks the Transport implementation matching conn
func Wrap(conn net.Conn, opts Options) (Transport, error) {
	switch c := conn.(type) {
	case *net.TCPConn:
		if opts.IoUring {
			t, err := NewUringTransport(c, opts.Timeouts)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	case *net.UnixConn:
		return NewUnixTransport(c, opts.Timeouts), nil
	}

	t, err := NewTcpTransport(conn, opts.Timeouts)
	if err != nil {
		return nil, err
	}
	return t, nil
}
