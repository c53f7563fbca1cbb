package dispatch

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nczempin/httpd-go/errors"
	"github.com/nczempin/httpd-go/protocol"
	"github.com/nczempin/httpd-go/resource"
)

var modTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":        {Data: []byte("<h1>home</h1>"), ModTime: modTime},
		"notes.txt":         {Data: []byte("hello world\n")},
		"empty.bin":         {Data: []byte{}},
		"music/song.mp3":    {Data: []byte("0123456789")},
		"music/live/a.ogg":  {Data: []byte("a")},
		"docs/a.txt":        {Data: []byte("a")},
		"docs/b&c.txt":      {Data: []byte("amp")},
		"docs/My Song.flac": {Data: []byte("flac")},
	}
}

func newTestDispatcher(provider resource.Provider, chunkSize int64) *Dispatcher {
	return New(provider, Config{
		ChunkSize: chunkSize,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

type result struct {
	status  int
	headers map[string]string
	body    string
}

func serve(t *testing.T, d *Dispatcher, raw string) result {
	t.Helper()

	resp := d.ServeRaw(context.Background(), []byte(raw))
	data, err := resp.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	head, body, ok := bytes.Cut(data, []byte("\r\n\r\n"))
	if !ok {
		t.Fatalf("Response has no header terminator: %q", data)
	}

	lines := strings.Split(string(head), "\r\n")
	r := result{
		status:  resp.StatusCode,
		headers: make(map[string]string),
		body:    string(body),
	}
	for _, line := range lines[1:] {
		key, value, _ := strings.Cut(line, ": ")
		r.headers[key] = value
	}

	if got := r.headers["Content-Length"]; got != strconv.Itoa(len(body)) {
		t.Errorf("Content-Length %s does not match body length %d", got, len(body))
	}
	if got := r.headers["Connection"]; got != "close" {
		t.Errorf("Expected Connection: close, got %q", got)
	}
	return r
}

func get(path string, headers ...string) string {
	var b strings.Builder
	b.WriteString("GET " + path + " HTTP/1.1\r\nHost: localhost\r\n")
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

func TestDispatcher_FullFile(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	r := serve(t, d, get("/index.html"))

	if r.status != protocol.StatusOK {
		t.Fatalf("Expected 200, got %d", r.status)
	}
	want := map[string]string{
		"Content-Type":   "text/html; charset=utf-8",
		"Accept-Ranges":  "bytes",
		"Last-Modified":  "Fri, 01 Mar 2024 12:00:00 GMT",
		"Content-Length": "13",
		"Connection":     "close",
	}
	if diff := cmp.Diff(want, r.headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
	if r.body != "<h1>home</h1>" {
		t.Errorf("Unexpected body %q", r.body)
	}
}

func TestDispatcher_EmptyFile(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	r := serve(t, d, get("/empty.bin"))
	if r.status != protocol.StatusOK || r.body != "" {
		t.Errorf("Expected empty 200, got %d %q", r.status, r.body)
	}
	if r.headers["Content-Type"] != "application/octet-stream" {
		t.Errorf("Unexpected Content-Type %q", r.headers["Content-Type"])
	}
}

func TestDispatcher_EncodedPath(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	r := serve(t, d, get("/docs/My%20Song.flac?download=1"))
	if r.status != protocol.StatusOK || r.body != "flac" {
		t.Errorf("Expected flac body, got %d %q", r.status, r.body)
	}
	if r.headers["Content-Type"] != "audio/flac" {
		t.Errorf("Unexpected Content-Type %q", r.headers["Content-Type"])
	}
}

func TestDispatcher_Ranges(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	tests := []struct {
		rangeValue   string
		contentRange string
		body         string
	}{
		{"bytes=0-0", "bytes 0-0/10", "0"},
		{"bytes=2-5", "bytes 2-5/10", "2345"},
		{"bytes=7-", "bytes 7-9/10", "789"},
		{"bytes=-3", "bytes 7-9/10", "789"},
		{"bytes=-100", "bytes 0-9/10", "0123456789"},
		{"bytes=8-100", "bytes 8-9/10", "89"},
	}

	for _, tt := range tests {
		r := serve(t, d, get("/music/song.mp3", "Range: "+tt.rangeValue))
		if r.status != protocol.StatusPartialContent {
			t.Errorf("%s: expected 206, got %d", tt.rangeValue, r.status)
			continue
		}
		if r.headers["Content-Range"] != tt.contentRange {
			t.Errorf("%s: Content-Range = %q, want %q", tt.rangeValue, r.headers["Content-Range"], tt.contentRange)
		}
		if r.body != tt.body {
			t.Errorf("%s: body = %q, want %q", tt.rangeValue, r.body, tt.body)
		}
		if r.headers["Content-Type"] != "audio/mpeg" {
			t.Errorf("%s: Content-Type = %q", tt.rangeValue, r.headers["Content-Type"])
		}
	}
}

func TestDispatcher_RangeNotSatisfiable(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	for _, rangeValue := range []string{"bytes=10-", "bytes=20-30", "bytes=5-2", "bytes=-0"} {
		r := serve(t, d, get("/music/song.mp3", "Range: "+rangeValue))
		if r.status != protocol.StatusRangeNotSatisfiable {
			t.Errorf("%s: expected 416, got %d", rangeValue, r.status)
		}
		if r.headers["Content-Range"] != "bytes */10" {
			t.Errorf("%s: Content-Range = %q", rangeValue, r.headers["Content-Range"])
		}
		if r.body != "" {
			t.Errorf("%s: expected empty body, got %q", rangeValue, r.body)
		}
	}

	r := serve(t, d, get("/empty.bin", "Range: bytes=0-"))
	if r.status != protocol.StatusRangeNotSatisfiable || r.headers["Content-Range"] != "bytes */0" {
		t.Errorf("Empty file range: got %d %q", r.status, r.headers["Content-Range"])
	}
}

func TestDispatcher_MalformedRange(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	for _, rangeValue := range []string{"items=0-1", "bytes=a-b", "bytes=0-1,4-5", "bytes"} {
		r := serve(t, d, get("/music/song.mp3", "Range: "+rangeValue))
		if r.status != protocol.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", rangeValue, r.status)
		}
	}
}

func TestDispatcher_RangeOnDirectoryIgnored(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	r := serve(t, d, get("/music/", "Range: bytes=0-0"))
	if r.status != protocol.StatusOK {
		t.Errorf("Expected listing, got %d", r.status)
	}
}

func TestDispatcher_NotFound(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	for _, path := range []string{"/missing.txt", "/music/missing.mp3", "/notes.txt/child"} {
		r := serve(t, d, get(path))
		if r.status != protocol.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, r.status)
		}
		if !strings.Contains(r.body, "404 Not Found") {
			t.Errorf("%s: unexpected body %q", path, r.body)
		}
	}
}

func TestDispatcher_TraversalIsNotFound(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	for _, path := range []string{"/../../etc/passwd", "/..", "/music/../../notes.txt", "/%2e%2e/%2e%2e/etc/passwd", "/..%2f..%2fetc"} {
		r := serve(t, d, get(path))
		if r.status != protocol.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, r.status)
		}
	}

	r := serve(t, d, get("/music/../notes.txt"))
	if r.status != protocol.StatusOK || r.body != "hello world\n" {
		t.Errorf("Dot segments inside the root should resolve, got %d %q", r.status, r.body)
	}
}

func TestDispatcher_DirectoryListing(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	r := serve(t, d, get("/"))
	if r.status != protocol.StatusOK {
		t.Fatalf("Expected 200, got %d", r.status)
	}
	if r.headers["Content-Type"] != "text/html; charset=utf-8" {
		t.Errorf("Unexpected Content-Type %q", r.headers["Content-Type"])
	}
	for _, want := range []string{
		`<a href="./docs/">docs/</a>`,
		`<a href="./empty.bin">empty.bin</a>`,
		`<a href="./index.html">index.html</a>`,
		`<a href="./music/">music/</a>`,
		`<a href="./notes.txt">notes.txt</a>`,
	} {
		if !strings.Contains(r.body, want) {
			t.Errorf("Listing missing %s:\n%s", want, r.body)
		}
	}
	if strings.Index(r.body, "docs/") > strings.Index(r.body, "notes.txt") {
		t.Error("Listing is not sorted by name")
	}

	r = serve(t, d, get("/docs/"))
	if !strings.Contains(r.body, `<a href="./a.txt">a.txt</a>`) {
		t.Errorf("Listing missing a.txt:\n%s", r.body)
	}
	if !strings.Contains(r.body, "b&amp;c.txt") {
		t.Errorf("Names are not escaped:\n%s", r.body)
	}
	if !strings.Contains(r.body, `href="./My%20Song.flac"`) {
		t.Errorf("Links are not percent-encoded:\n%s", r.body)
	}

	r = serve(t, d, get("/music"))
	if !strings.Contains(r.body, `<a href="./music/song.mp3">song.mp3</a>`) {
		t.Errorf("Links without trailing slash should carry the directory name:\n%s", r.body)
	}
	if !strings.Contains(r.body, "Index of /music<") {
		t.Errorf("Unexpected title:\n%s", r.body)
	}

	r = serve(t, d, get("/music/live/.."))
	if !strings.Contains(r.body, "Index of /music<") {
		t.Errorf("Listing should use the cleaned path:\n%s", r.body)
	}
}

func TestDispatcher_ProtocolErrors(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	tests := []struct {
		raw    string
		status int
	}{
		{"GARBAGE\r\n\r\n", protocol.StatusBadRequest},
		{"GET /\r\n\r\n", protocol.StatusBadRequest},
		{"GET / HTTP/2.0\r\n\r\n", protocol.StatusBadRequest},
		{"GET /a%zz HTTP/1.1\r\n\r\n", protocol.StatusBadRequest},
		{"GET / HTTP/1.1\r\nno colon\r\n\r\n", protocol.StatusBadRequest},
		{"POST / HTTP/1.1\r\n\r\n", protocol.StatusMethodNotAllowed},
		{"HEAD / HTTP/1.1\r\n\r\n", protocol.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		r := serve(t, d, tt.raw)
		if r.status != tt.status {
			t.Errorf("%q: expected %d, got %d", tt.raw, tt.status, r.status)
		}
	}

	r := serve(t, d, "DELETE /notes.txt HTTP/1.1\r\n\r\n")
	if r.headers["Allow"] != "GET" {
		t.Errorf("405 should carry Allow: GET, got %q", r.headers["Allow"])
	}
}

func TestDispatcher_Http10VersionEchoed(t *testing.T) {
	d := newTestDispatcher(resource.NewFS(testFS()), 0)

	resp := d.ServeRaw(context.Background(), []byte("GET /notes.txt HTTP/1.0\r\n\r\n"))
	data, err := resp.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "HTTP/1.0 200 OK\r\n") {
		t.Errorf("Expected HTTP/1.0 status line, got %q", data)
	}

	resp = d.ServeRaw(context.Background(), []byte("GET /missing HTTP/1.0\r\n\r\n"))
	if resp.Version != protocol.Version10 {
		t.Errorf("Error responses should echo the request version, got %v", resp.Version)
	}
}

// chunkRecorder records every ReadRange call made through it
type chunkRecorder struct {
	*resource.FS
	calls [][2]int64
}

func (c *chunkRecorder) ReadRange(target *resource.Target, start, end int64) ([]byte, error) {
	c.calls = append(c.calls, [2]int64{start, end})
	return c.FS.ReadRange(target, start, end)
}

func TestDispatcher_StreamsInChunks(t *testing.T) {
	recorder := &chunkRecorder{FS: resource.NewFS(testFS())}
	d := newTestDispatcher(recorder, 4)

	r := serve(t, d, get("/music/song.mp3"))
	if r.body != "0123456789" {
		t.Fatalf("Unexpected body %q", r.body)
	}

	want := [][2]int64{{0, 3}, {4, 7}, {8, 9}}
	if diff := cmp.Diff(want, recorder.calls); diff != "" {
		t.Errorf("chunk reads mismatch (-want +got):\n%s", diff)
	}

	recorder.calls = nil
	r = serve(t, d, get("/music/song.mp3", "Range: bytes=1-6"))
	if r.body != "123456" {
		t.Fatalf("Unexpected body %q", r.body)
	}
	want = [][2]int64{{1, 4}, {5, 6}}
	if diff := cmp.Diff(want, recorder.calls); diff != "" {
		t.Errorf("chunk reads mismatch (-want +got):\n%s", diff)
	}
}

// failingProvider resolves normally but cannot read
type failingProvider struct {
	*resource.FS
}

func (failingProvider) ReadRange(target *resource.Target, start, end int64) ([]byte, error) {
	return nil, errors.NewResourceError(errors.ResourceErrorIO, "read "+target.Path, io.ErrUnexpectedEOF)
}

func (failingProvider) ListChildren(target *resource.Target) ([]resource.Entry, error) {
	return nil, errors.NewResourceError(errors.ResourceErrorIO, "read dir "+target.Path, nil)
}

func TestDispatcher_InternalError(t *testing.T) {
	d := newTestDispatcher(failingProvider{resource.NewFS(testFS())}, 0)

	for _, raw := range []string{
		get("/notes.txt"),
		get("/notes.txt", "Range: bytes=0-1"),
		get("/music/"),
	} {
		r := serve(t, d, raw)
		if r.status != protocol.StatusInternalServerError {
			t.Errorf("%q: expected 500, got %d", raw, r.status)
		}
		if strings.Contains(r.body, "unexpected EOF") {
			t.Errorf("Error details leaked into body: %q", r.body)
		}
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NewProtocolError(errors.ProtocolErrorMalformedHeader, ""), 400},
		{errors.NewProtocolError(errors.ProtocolErrorRequestTooLarge, ""), 400},
		{errors.NewProtocolError(errors.ProtocolErrorUnsupportedMethod, ""), 405},
		{errors.NewRangeError(errors.RangeErrorUnsupportedUnit, ""), 400},
		{errors.NewRangeError(errors.RangeErrorNotSatisfiable, ""), 416},
		{errors.NewResourceError(errors.ResourceErrorForbiddenPath, "", nil), 404},
		{errors.NewResourceError(errors.ResourceErrorNotFound, "", nil), 404},
		{errors.NewResourceError(errors.ResourceErrorIO, "", nil), 500},
		{errors.NewTransportError(errors.TransportErrorTimeout, "", nil), 500},
		{io.EOF, 500},
	}

	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
