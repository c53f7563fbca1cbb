package protocol

import (
	"strings"
	"time"
)

// HttpMethod represents HTTP request methods
type HttpMethod int

const (
	MethodGet HttpMethod = iota
)

func (m HttpMethod) String() string {
	switch m {
	case MethodGet:
		return "GET"
	default:
		return "UNKNOWN"
	}
}

// HttpVersion is the protocol version token of a request line
type HttpVersion int

const (
	Version11 HttpVersion = iota
	Version10
)

func (v HttpVersion) String() string {
	if v == Version10 {
		return "HTTP/1.0"
	}
	return "HTTP/1.1"
}

// Status codes produced by the server
const (
	StatusOK                  = 200
	StatusPartialContent      = 206
	StatusBadRequest          = 400
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusRangeNotSatisfiable = 416
	StatusInternalServerError = 500
)

// StatusText returns the reason phrase for a status code
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusPartialContent:
		return "Partial Content"
	case StatusBadRequest:
		return "Bad Request"
	case StatusForbidden:
		return "Forbidden"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusRangeNotSatisfiable:
		return "Range Not Satisfiable"
	case StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}

// HttpHeader represents an HTTP header key-value pair
type HttpHeader struct {
	Key   string
	Value string
}

// Header holds request headers keyed by lower-cased name
type Header map[string]string

// Get returns the value of the named header, ignoring case
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Lookup returns the value of the named header and whether it was present
func (h Header) Lookup(name string) (string, bool) {
	value, ok := h[strings.ToLower(name)]
	return value, ok
}

func (h Header) set(name, value string) {
	h[strings.ToLower(name)] = value
}

// HttpRequest represents a parsed HTTP request
type HttpRequest struct {
	Method  HttpMethod
	Path    string // decoded, always starts with "/"
	RawPath string
	Version HttpVersion
	Headers Header
}

// ByteRange is a validated inclusive interval of a resource of length Total
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

// Length returns the number of bytes covered by the range
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// TimeFormat is the IMF-fixdate layout used by Last-Modified
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatTime formats t for use in a header
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}
