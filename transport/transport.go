package transport

import "time"

// Transport defines the interface for the I/O of one accepted connection.
// Implementations include TCP, Unix domain sockets and io_uring backed TCP.
type Transport interface {
	// Write sends data to the connected peer.
	// Returns the number of bytes written or an error.
	Write(buf []byte) (int, error)

	// Read receives data from the connected peer.
	// Returns the number of bytes read or an error.
	Read(buf []byte) (int, error)

	// Close closes the connection.
	Close() error

	// RemoteAddr describes the peer, for logging.
	RemoteAddr() string
}

// Timeouts bounds individual reads and writes. A zero value disables the
// corresponding deadline.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
}
