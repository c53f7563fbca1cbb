//go:build linux

package transport

import (
	stderrors "errors"
	"net"
	"os"
	"time"

	"github.com/godzie44/go-uring/uring"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/nczempin/httpd-go/errors"
)

const uringQueueDepth = 32

// UringTransport implements Transport for an accepted TCP connection using
// io_uring for reads and writes
type UringTransport struct {
	ring     *uring.Ring
	conn     net.Conn
	file     *os.File
	timeouts Timeouts
}

const (
	userDataOp uint64 = iota + 1
	userDataLinkTimeout
)

// submit runs op on the ring and returns its result. With a positive
// timeout, op is linked to an IORING_OP_LINK_TIMEOUT and a cancelled op
// reports ETIME. Both completions are always reaped.
func (t *UringTransport) submit(op uring.Operation, timeout time.Duration) (int32, error) {
	if timeout > 0 {
		if err := t.ring.QueueSQE(op, uring.SqeIOLinkFlag, userDataOp); err != nil {
			return 0, err
		}
		if err := t.ring.QueueSQE(uring.LinkTimeout(timeout), 0, userDataLinkTimeout); err != nil {
			return 0, err
		}
	} else if err := t.ring.QueueSQE(op, 0, userDataOp); err != nil {
		return 0, err
	}

	if _, err := t.ring.Submit(); err != nil {
		return 0, err
	}

	pending := 1
	if timeout > 0 {
		pending = 2
	}

	var res int32
	for pending > 0 {
		cqe, err := t.ring.WaitCQEvents(1)
		if err != nil {
			if stderrors.Is(err, unix.EINTR) || stderrors.Is(err, unix.EAGAIN) {
				continue
			}
			return 0, err
		}
		if cqe.UserData == userDataOp {
			res = cqe.Res
			if res == -int32(unix.ECANCELED) {
				res = -int32(unix.ETIME)
			}
		}
		t.ring.SeenCQE(cqe)
		pending--
	}

	return res, nil
}

func resultError(res int32) error {
	if res < 0 {
		return unix.Errno(-res)
	}
	return nil
}

// NewUringTransport takes over an accepted TCP connection. The socket is
// duplicated into blocking mode so the ring can drive it directly; read and
// write timeouts are enforced with linked timeouts on the ring.
func NewUringTransport(conn *net.TCPConn, timeouts Timeouts) (*UringTransport, error) {
	file, err := conn.File()
	if err != nil {
		conn.Close()
		return nil, errors.NewTransportError(
			errors.TransportErrorAcceptFailure,
			"failed to duplicate socket",
			err,
		)
	}

	fd := int(file.Fd())
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		file.Close()
		conn.Close()
		return nil, errors.NewTransportError(
			errors.TransportErrorAcceptFailure,
			"failed to set TCP_NODELAY",
			err,
		)
	}
	ring, err := uring.New(uringQueueDepth)
	if err != nil {
		file.Close()
		conn.Close()
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringTransport{
		ring:     ring,
		conn:     conn,
		file:     file,
		timeouts: timeouts,
	}, nil
}

// Write sends data over the connection using io_uring
func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.file == nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketWriteFailure,
			"not connected",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		// The offset is ignored for sockets
		res, err := t.submit(uring.Write(t.file.Fd(), buf[totalWritten:], 0), t.timeouts.Write)
		if err != nil {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		if err := resultError(res); err != nil {
			kind := errors.TransportErrorSocketWriteFailure
			switch err {
			case unix.EPIPE, unix.ECONNRESET:
				kind = errors.TransportErrorConnectionClosed
			case unix.ETIME, unix.EAGAIN:
				kind = errors.TransportErrorTimeout
			}
			return totalWritten, errors.NewTransportError(kind, "write operation failed", err)
		}

		n := int(res)

		if n <= 0 {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Read receives data from the connection using io_uring
func (t *UringTransport) Read(buf []byte) (int, error) {
	if t.file == nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"not connected",
			nil,
		)
	}

	res, err := t.submit(uring.Read(t.file.Fd(), buf, 0), t.timeouts.Read)
	if err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	if err := resultError(res); err != nil {
		kind := errors.TransportErrorSocketReadFailure
		switch err {
		case unix.ECONNRESET:
			kind = errors.TransportErrorConnectionClosed
		case unix.ETIME, unix.EAGAIN:
			kind = errors.TransportErrorTimeout
		}
		return 0, errors.NewTransportError(kind, "read operation failed", err)
	}

	n := int(res)

	if n == 0 && len(buf) > 0 {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed by peer",
			nil,
		)
	}

	return n, nil
}

// Close closes the connection and releases the ring
func (t *UringTransport) Close() error {
	if t.file == nil {
		return nil
	}

	err := multierr.Combine(t.file.Close(), t.conn.Close())
	t.file = nil

	err = multierr.Append(err, t.ring.Close())
	t.ring = nil

	if err != nil {
		return errors.NewTransportError(errors.TransportErrorSocketCloseFailure, "close failed", err)
	}
	return nil
}

// RemoteAddr returns the peer address
func (t *UringTransport) RemoteAddr() string {
	if t.conn == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}
