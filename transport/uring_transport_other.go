//go:build !linux

package transport

import (
	"net"

	"github.com/nczempin/httpd-go/errors"
)

// UringTransport is only available on Linux
type UringTransport struct {
	TcpTransport
}

// NewUringTransport always fails outside Linux
func NewUringTransport(conn *net.TCPConn, timeouts Timeouts) (*UringTransport, error) {
	conn.Close()
	return nil, errors.NewTransportError(
		errors.TransportErrorIoUringInit,
		"io_uring is only supported on linux",
		nil,
	)
}
