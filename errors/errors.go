package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorRange
	ErrorResource
	ErrorInvalidArgument
)

func (t ErrorType) String() string {
	switch t {
	case ErrorNone:
		return "none"
	case ErrorTransport:
		return "transport"
	case ErrorProtocol:
		return "protocol"
	case ErrorRange:
		return "range"
	case ErrorResource:
		return "resource"
	case ErrorInvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("unknown (%d)", int(t))
	}
}

// TransportError represents transport-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorSocketCloseFailure
	TransportErrorConnectionClosed
	TransportErrorTimeout
	TransportErrorListenFailure
	TransportErrorAcceptFailure
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorNone:
		return "none"
	case TransportErrorSocketReadFailure:
		return "socket read failed"
	case TransportErrorSocketWriteFailure:
		return "socket write failed"
	case TransportErrorSocketCloseFailure:
		return "socket close failed"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorTimeout:
		return "timeout"
	case TransportErrorListenFailure:
		return "listen failed"
	case TransportErrorAcceptFailure:
		return "accept failed"
	case TransportErrorIoUringInit:
		return "io_uring initialization failed"
	case TransportErrorIoUringSubmit:
		return "io_uring submission failed"
	default:
		return fmt.Sprintf("unknown transport error (%d)", int(e))
	}
}

// ProtocolError represents errors raised while parsing a request
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorMalformedRequestLine
	ProtocolErrorUnsupportedMethod
	ProtocolErrorUnsupportedVersion
	ProtocolErrorInvalidPathEncoding
	ProtocolErrorMalformedHeader
	ProtocolErrorRequestTooLarge
)

func (e ProtocolError) String() string {
	switch e {
	case ProtocolErrorNone:
		return "none"
	case ProtocolErrorMalformedRequestLine:
		return "malformed request line"
	case ProtocolErrorUnsupportedMethod:
		return "unsupported method"
	case ProtocolErrorUnsupportedVersion:
		return "unsupported version"
	case ProtocolErrorInvalidPathEncoding:
		return "invalid path encoding"
	case ProtocolErrorMalformedHeader:
		return "malformed header"
	case ProtocolErrorRequestTooLarge:
		return "request too large"
	default:
		return fmt.Sprintf("unknown protocol error (%d)", int(e))
	}
}

// RangeError represents errors raised while interpreting a Range header
type RangeError int

const (
	RangeErrorNone RangeError = iota
	RangeErrorUnsupportedUnit
	RangeErrorMalformed
	RangeErrorNotSatisfiable
)

func (e RangeError) String() string {
	switch e {
	case RangeErrorNone:
		return "none"
	case RangeErrorUnsupportedUnit:
		return "unsupported range unit"
	case RangeErrorMalformed:
		return "malformed range"
	case RangeErrorNotSatisfiable:
		return "range not satisfiable"
	default:
		return fmt.Sprintf("unknown range error (%d)", int(e))
	}
}

// ResourceError represents errors raised while resolving or reading a
// filesystem entry
type ResourceError int

const (
	ResourceErrorNone ResourceError = iota
	ResourceErrorForbiddenPath
	ResourceErrorNotFound
	ResourceErrorIO
)

func (e ResourceError) String() string {
	switch e {
	case ResourceErrorNone:
		return "none"
	case ResourceErrorForbiddenPath:
		return "forbidden path"
	case ResourceErrorNotFound:
		return "not found"
	case ResourceErrorIO:
		return "I/O error"
	default:
		return fmt.Sprintf("unknown resource error (%d)", int(e))
	}
}

// HttpError is the main error type for the server
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	RangeErr      RangeError
	ResourceErr   ResourceError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("Transport error: %s", e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("Protocol error: %s", e.ProtocolErr)
	case ErrorRange:
		typeStr = fmt.Sprintf("Range error: %s", e.RangeErr)
	case ErrorResource:
		typeStr = fmt.Sprintf("Resource error: %s", e.ResourceErr)
	case ErrorInvalidArgument:
		typeStr = "Invalid argument"
	default:
		typeStr = "Unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// Kind returns the name of the specific error kind, e.g. "malformed range".
func (e *HttpError) Kind() string {
	switch e.Type {
	case ErrorTransport:
		return e.TransportErr.String()
	case ErrorProtocol:
		return e.ProtocolErr.String()
	case ErrorRange:
		return e.RangeErr.String()
	case ErrorResource:
		return e.ResourceErr.String()
	default:
		return e.Type.String()
	}
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewRangeError creates a new range error
func NewRangeError(err RangeError, message string) *HttpError {
	return &HttpError{
		Type:     ErrorRange,
		RangeErr: err,
		Message:  message,
	}
}

// NewResourceError creates a new resource error
func NewResourceError(err ResourceError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorResource,
		ResourceErr:   err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// As returns the first *HttpError in err's chain.
func As(err error) (*HttpError, bool) {
	var httpErr *HttpError
	if stderrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsTransport reports whether err carries the given transport error kind.
func IsTransport(err error, kind TransportError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorTransport && httpErr.TransportErr == kind
}

// IsProtocol reports whether err carries the given protocol error kind.
func IsProtocol(err error, kind ProtocolError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorProtocol && httpErr.ProtocolErr == kind
}

// IsRange reports whether err carries the given range error kind.
func IsRange(err error, kind RangeError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorRange && httpErr.RangeErr == kind
}

// IsResource reports whether err carries the given resource error kind.
func IsResource(err error, kind ResourceError) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorResource && httpErr.ResourceErr == kind
}
