package protocol

import (
	"fmt"

	"github.com/nczempin/httpd-go/errors"
	"github.com/nczempin/httpd-go/transport"
)

// DefaultMaxRequestBytes bounds the request line plus headers
const DefaultMaxRequestBytes = 8 << 10

const readChunkSize = 1024

// Http1Protocol implements the server side of one HTTP/1.x exchange over a
// transport
type Http1Protocol struct {
	transport       transport.Transport
	buffer          []byte
	headerSize      int
	maxRequestBytes int
}

// NewHttp1Protocol creates a new HTTP/1.x protocol handler. A non-positive
// maxRequestBytes selects DefaultMaxRequestBytes.
func NewHttp1Protocol(t transport.Transport, maxRequestBytes int) *Http1Protocol {
	if maxRequestBytes <= 0 {
		maxRequestBytes = DefaultMaxRequestBytes
	}
	return &Http1Protocol{
		transport:       t,
		buffer:          make([]byte, 0, readChunkSize),
		maxRequestBytes: maxRequestBytes,
	}
}

// Close closes the underlying transport
func (p *Http1Protocol) Close() error {
	return p.transport.Close()
}

// readRequestHead reads until the blank line that ends the request head.
// Bytes past the separator (a request body) are dropped.
func (p *Http1Protocol) readRequestHead() error {
	p.buffer = p.buffer[:0]
	p.headerSize = 0

	readBuf := make([]byte, readChunkSize)

	for {
		n, err := p.transport.Read(readBuf)
		if n > 0 {
			p.buffer = append(p.buffer, readBuf[:n]...)

			// Search from just before the new data so a separator split
			// across two reads is still found.
			if end := findHeadEnd(p.buffer, max(0, len(p.buffer)-n-2)); end >= 0 {
				p.headerSize = end
				if p.headerSize > p.maxRequestBytes {
					return p.tooLarge()
				}
				return nil
			}

			if len(p.buffer) >= p.maxRequestBytes {
				return p.tooLarge()
			}
		}

		if err != nil {
			if len(p.buffer) == 0 {
				return err
			}
			// A partial head is answered with 400.
			switch {
			case errors.IsTransport(err, errors.TransportErrorConnectionClosed):
				return errors.NewProtocolError(
					errors.ProtocolErrorMalformedRequestLine,
					"connection closed before end of request head",
				)
			case errors.IsTransport(err, errors.TransportErrorTimeout):
				return errors.NewProtocolError(
					errors.ProtocolErrorMalformedRequestLine,
					"timed out before end of request head",
				)
			}
			return err
		}
	}
}

func (p *Http1Protocol) tooLarge() error {
	return errors.NewProtocolError(
		errors.ProtocolErrorRequestTooLarge,
		fmt.Sprintf("request head exceeds %d bytes", p.maxRequestBytes),
	)
}

// ReadRequest reads and parses one request from the transport
func (p *Http1Protocol) ReadRequest() (*HttpRequest, error) {
	if err := p.readRequestHead(); err != nil {
		return nil, err
	}
	return ParseRequest(p.buffer[:p.headerSize])
}

// WriteResponse serializes resp onto the transport
func (p *Http1Protocol) WriteResponse(resp *HttpResponse) (int64, error) {
	return resp.WriteTo(transportWriter{p.transport})
}

// transportWriter adapts a Transport to io.Writer, whose contract requires
// a non-nil error on short writes.
type transportWriter struct {
	t transport.Transport
}

func (w transportWriter) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.t.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}
	}
	return total, nil
}
