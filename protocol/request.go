package protocol

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/nczempin/httpd-go/errors"
)

var lineSeparator = []byte("\n")

// findHeadEnd returns the offset just past the blank line that ends a
// request head, searching from from, or -1. Lines end in CRLF or a bare LF.
func findHeadEnd(buf []byte, from int) int {
	for i := from; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		j := i + 1
		if j < len(buf) && buf[j] == '\r' {
			j++
		}
		if j < len(buf) && buf[j] == '\n' {
			return j + 1
		}
	}
	return -1
}

// ParseRequest parses the head of an HTTP request (request line and
// headers). Anything after the blank line is ignored.
func ParseRequest(raw []byte) (*HttpRequest, error) {
	if end := findHeadEnd(raw, 0); end >= 0 {
		raw = raw[:end]
	}

	lines := bytes.Split(raw, lineSeparator)
	requestLine := string(bytes.TrimSuffix(lines[0], []byte("\r")))

	req, err := parseRequestLine(requestLine)
	if err != nil {
		return nil, err
	}

	req.Headers = make(Header)
	for _, line := range lines[1:] {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			break
		}

		headerParts := bytes.SplitN(line, []byte(":"), 2)
		if len(headerParts) != 2 {
			return nil, errors.NewProtocolError(
				errors.ProtocolErrorMalformedHeader,
				fmt.Sprintf("missing ':' in header line %q", line),
			)
		}

		name := strings.TrimSpace(string(headerParts[0]))
		if name == "" {
			return nil, errors.NewProtocolError(
				errors.ProtocolErrorMalformedHeader,
				"empty header name",
			)
		}
		req.Headers.set(name, strings.TrimSpace(string(headerParts[1])))
	}

	return req, nil
}

func parseRequestLine(line string) (*HttpRequest, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequestLine,
			fmt.Sprintf("expected 3 tokens, got %d", len(parts)),
		)
	}

	if parts[0] != "GET" {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorUnsupportedMethod,
			fmt.Sprintf("method %q", parts[0]),
		)
	}

	var version HttpVersion
	switch parts[2] {
	case "HTTP/1.1":
		version = Version11
	case "HTTP/1.0":
		version = Version10
	default:
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorUnsupportedVersion,
			fmt.Sprintf("version %q", parts[2]),
		)
	}

	rawPath := parts[1]
	decoded, err := decodePath(rawPath)
	if err != nil {
		return nil, err
	}

	return &HttpRequest{
		Method:  MethodGet,
		Path:    decoded,
		RawPath: rawPath,
		Version: version,
	}, nil
}

// decodePath strips the query and percent-decodes the path. Unlike query
// decoding, '+' is kept literally.
func decodePath(rawPath string) (string, error) {
	if i := strings.IndexByte(rawPath, '?'); i >= 0 {
		rawPath = rawPath[:i]
	}

	if !strings.HasPrefix(rawPath, "/") {
		return "", errors.NewProtocolError(
			errors.ProtocolErrorInvalidPathEncoding,
			"path must start with '/'",
		)
	}

	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", &errors.HttpError{
			Type:          errors.ErrorProtocol,
			ProtocolErr:   errors.ProtocolErrorInvalidPathEncoding,
			Message:       "invalid percent escape",
			UnderlyingErr: err,
		}
	}

	if strings.IndexByte(decoded, 0) >= 0 {
		return "", errors.NewProtocolError(
			errors.ProtocolErrorInvalidPathEncoding,
			"NUL byte in path",
		)
	}

	return decoded, nil
}
