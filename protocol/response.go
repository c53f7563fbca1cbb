package protocol

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Body is the payload of a response. Size must report exactly the number
// of bytes WriteTo produces.
type Body interface {
	io.WriterTo
	Size() int64
}

// BytesBody is an in-memory response body
type BytesBody []byte

func (b BytesBody) Size() int64 {
	return int64(len(b))
}

func (b BytesBody) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b)
	return int64(n), err
}

// HttpResponse is a response ready to be serialized
type HttpResponse struct {
	Version    HttpVersion
	StatusCode int
	Headers    []HttpHeader
	Body       Body
}

// NewResponse creates a response with the given status and an empty body
func NewResponse(statusCode int) *HttpResponse {
	return &HttpResponse{
		Version:    Version11,
		StatusCode: statusCode,
	}
}

// SetHeader replaces the value of key, or appends it if not yet present
func (r *HttpResponse) SetHeader(key, value string) *HttpResponse {
	for i, header := range r.Headers {
		if strings.EqualFold(header.Key, key) {
			r.Headers[i].Value = value
			return r
		}
	}
	r.Headers = append(r.Headers, HttpHeader{Key: key, Value: value})
	return r
}

// Header returns the value of key, ignoring case
func (r *HttpResponse) Header(key string) string {
	for _, header := range r.Headers {
		if strings.EqualFold(header.Key, key) {
			return header.Value
		}
	}
	return ""
}

// WithBody sets the body of the response
func (r *HttpResponse) WithBody(body Body) *HttpResponse {
	r.Body = body
	return r
}

// BodySize returns the number of body bytes the response will carry
func (r *HttpResponse) BodySize() int64 {
	if r.Body == nil {
		return 0
	}
	return r.Body.Size()
}

// head formats the status line and headers. Content-Length and Connection
// are always computed here rather than taken from Headers.
func (r *HttpResponse) head() []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s %d %s\r\n", r.Version, r.StatusCode, StatusText(r.StatusCode)))

	for _, header := range r.Headers {
		if strings.EqualFold(header.Key, "Content-Length") || strings.EqualFold(header.Key, "Connection") {
			continue
		}
		buf.WriteString(fmt.Sprintf("%s: %s\r\n", header.Key, header.Value))
	}
	buf.WriteString("Content-Length: " + strconv.FormatInt(r.BodySize(), 10) + "\r\n")
	buf.WriteString("Connection: close\r\n")

	buf.WriteString("\r\n")
	return buf.Bytes()
}

// WriteTo streams the serialized response to w
func (r *HttpResponse) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.head())
	written := int64(n)
	if err != nil || r.Body == nil {
		return written, err
	}

	bodyWritten, err := r.Body.WriteTo(w)
	return written + bodyWritten, err
}

// Serialize returns the full byte sequence of the response
func (r *HttpResponse) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrorPage renders the short HTML body used for non-2xx responses
func ErrorPage(statusCode int) BytesBody {
	text := fmt.Sprintf("%d %s", statusCode, StatusText(statusCode))
	return BytesBody(fmt.Sprintf(
		"<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head>"+
			"<body><h1>%s</h1></body></html>\n",
		text, text,
	))
}

// ListingEntry is one child shown in a directory listing
type ListingEntry struct {
	Name  string
	IsDir bool
}

// DirectoryListing renders an HTML index of entries for the directory at
// dirPath (the decoded request path). Links are relative to the directory.
func DirectoryListing(dirPath string, entries []ListingEntry) BytesBody {
	// Relative links only resolve against the directory itself when the
	// request path ends in a slash; otherwise they resolve against the
	// parent and must carry the directory's own name.
	prefix := "./"
	if !strings.HasSuffix(dirPath, "/") {
		prefix = "./" + url.PathEscape(path.Base(dirPath)) + "/"
	}

	title := html.EscapeString(dirPath)

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	buf.WriteString("<title>Index of " + title + "</title>\n</head>\n<body>\n")
	buf.WriteString("<h1>Index of " + title + "</h1>\n<ul>\n")

	if dirPath != "/" {
		buf.WriteString("<li><a href=\"" + prefix + "../\">../</a></li>\n")
	}

	for _, entry := range entries {
		href := prefix + url.PathEscape(entry.Name)
		name := entry.Name
		if entry.IsDir {
			href += "/"
			name += "/"
		}
		buf.WriteString("<li><a href=\"" + html.EscapeString(href) + "\">" + html.EscapeString(name) + "</a></li>\n")
	}

	buf.WriteString("</ul>\n</body>\n</html>\n")
	return BytesBody(buf.Bytes())
}
