// Package dispatch turns parsed requests into responses: it resolves the
// request path through a resource.Provider and decides between a full
// file, a byte range, a directory listing or an error page.
//
// Every error is converted to a response here. Path traversal is answered
// with 404 rather than 403 so that the response does not reveal whether
// anything exists outside the root.
package dispatch

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/nczempin/httpd-go/errors"
	"github.com/nczempin/httpd-go/logging"
	"github.com/nczempin/httpd-go/protocol"
	"github.com/nczempin/httpd-go/resource"
)

// DefaultChunkSize bounds each read from the provider while streaming a body
const DefaultChunkSize = 64 << 10

// Config holds the dispatcher settings
type Config struct {
	ChunkSize int64
	Logger    *slog.Logger
}

// Dispatcher maps requests onto a resource provider. It holds no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	provider  resource.Provider
	chunkSize int64
	logger    *slog.Logger
}

// New creates a dispatcher serving from provider
func New(provider resource.Provider, config Config) *Dispatcher {
	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		provider:  provider,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// ServeRaw parses a raw request head and dispatches it
func (d *Dispatcher) ServeRaw(ctx context.Context, raw []byte) *protocol.HttpResponse {
	req, err := protocol.ParseRequest(raw)
	if err != nil {
		return d.HandleError(ctx, protocol.Version11, err)
	}
	return d.Dispatch(ctx, req)
}

// Dispatch builds the response for req
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.HttpRequest) *protocol.HttpResponse {
	name, err := resource.CleanPath(req.Path)
	if err != nil {
		return d.HandleError(ctx, req.Version, err)
	}

	target, err := d.provider.Resolve(name)
	if err != nil {
		return d.HandleError(ctx, req.Version, err)
	}

	var resp *protocol.HttpResponse
	if target.IsDir() {
		resp, err = d.serveDirectory(req, target)
	} else if rangeValue, ok := req.Headers.Lookup("Range"); ok {
		resp, err = d.serveRange(target, rangeValue)
	} else {
		resp, err = d.serveFile(target)
	}
	if err != nil {
		return d.HandleError(ctx, req.Version, err)
	}

	resp.Version = req.Version
	return resp
}

func (d *Dispatcher) serveDirectory(req *protocol.HttpRequest, target *resource.Target) (*protocol.HttpResponse, error) {
	children, err := d.provider.ListChildren(target)
	if err != nil {
		return nil, err
	}

	entries := make([]protocol.ListingEntry, len(children))
	for i, child := range children {
		entries[i] = protocol.ListingEntry{Name: child.Name, IsDir: child.IsDir}
	}

	return protocol.NewResponse(protocol.StatusOK).
		SetHeader("Content-Type", "text/html; charset=utf-8").
		WithBody(protocol.DirectoryListing(listingPath(req.Path, target.Path), entries)), nil
}

// listingPath rebuilds the directory's URL path from its cleaned name,
// keeping the trailing slash of the request since relative links depend
// on it.
func listingPath(requestPath, name string) string {
	if name == "." {
		return "/"
	}
	if strings.HasSuffix(requestPath, "/") {
		return "/" + name + "/"
	}
	return "/" + name
}

func (d *Dispatcher) serveFile(target *resource.Target) (*protocol.HttpResponse, error) {
	resp := fileResponse(protocol.StatusOK, target)
	if target.Size == 0 {
		return resp.WithBody(protocol.BytesBody(nil)), nil
	}

	body, err := d.newRangeBody(target, 0, target.Size-1)
	if err != nil {
		return nil, err
	}
	return resp.WithBody(body), nil
}

func (d *Dispatcher) serveRange(target *resource.Target, rangeValue string) (*protocol.HttpResponse, error) {
	byteRange, err := protocol.ParseRange(rangeValue, target.Size)
	if err != nil {
		if errors.IsRange(err, errors.RangeErrorNotSatisfiable) {
			return protocol.NewResponse(protocol.StatusRangeNotSatisfiable).
				SetHeader("Accept-Ranges", "bytes").
				SetHeader("Content-Range", protocol.UnsatisfiedContentRange(target.Size)), nil
		}
		return nil, err
	}

	body, err := d.newRangeBody(target, byteRange.Start, byteRange.End)
	if err != nil {
		return nil, err
	}

	return fileResponse(protocol.StatusPartialContent, target).
		SetHeader("Content-Range", protocol.ContentRange(byteRange)).
		WithBody(body), nil
}

func fileResponse(statusCode int, target *resource.Target) *protocol.HttpResponse {
	resp := protocol.NewResponse(statusCode).
		SetHeader("Content-Type", target.MimeType).
		SetHeader("Accept-Ranges", "bytes")
	if !target.ModTime.IsZero() {
		resp.SetHeader("Last-Modified", protocol.FormatTime(target.ModTime))
	}
	return resp
}

// HandleError converts err into an error response. Server-side faults are
// logged; the body never includes error details.
func (d *Dispatcher) HandleError(ctx context.Context, version protocol.HttpVersion, err error) *protocol.HttpResponse {
	statusCode := StatusCode(err)

	switch {
	case statusCode >= protocol.StatusInternalServerError:
		logging.LogError(ctx, d.logger, "Request failed with an internal error.", err)
	default:
		logging.LogDebug(ctx, d.logger, "Request rejected.", err, slog.Int("status", statusCode))
	}

	resp := protocol.NewResponse(statusCode).
		SetHeader("Content-Type", "text/html; charset=utf-8").
		WithBody(protocol.ErrorPage(statusCode))
	if statusCode == protocol.StatusMethodNotAllowed {
		resp.SetHeader("Allow", "GET")
	}
	resp.Version = version
	return resp
}

// StatusCode maps an error onto the status code of its response
func StatusCode(err error) int {
	httpErr, ok := errors.As(err)
	if !ok {
		return protocol.StatusInternalServerError
	}

	switch httpErr.Type {
	case errors.ErrorProtocol:
		if httpErr.ProtocolErr == errors.ProtocolErrorUnsupportedMethod {
			return protocol.StatusMethodNotAllowed
		}
		return protocol.StatusBadRequest
	case errors.ErrorRange:
		if httpErr.RangeErr == errors.RangeErrorNotSatisfiable {
			return protocol.StatusRangeNotSatisfiable
		}
		return protocol.StatusBadRequest
	case errors.ErrorResource:
		switch httpErr.ResourceErr {
		case errors.ResourceErrorForbiddenPath, errors.ResourceErrorNotFound:
			return protocol.StatusNotFound
		}
		return protocol.StatusInternalServerError
	default:
		return protocol.StatusInternalServerError
	}
}

// rangeBody streams [start, end] of a file from the provider in chunks.
// The first chunk is read up front so that open and read failures surface
// before the status line is committed.
type rangeBody struct {
	provider  resource.Provider
	target    *resource.Target
	next      int64
	end       int64
	chunkSize int64
	first     []byte
}

func (d *Dispatcher) newRangeBody(target *resource.Target, start, end int64) (*rangeBody, error) {
	firstEnd := min(end, start+d.chunkSize-1)
	first, err := d.provider.ReadRange(target, start, firstEnd)
	if err != nil {
		return nil, err
	}
	return &rangeBody{
		provider:  d.provider,
		target:    target,
		next:      firstEnd + 1,
		end:       end,
		chunkSize: d.chunkSize,
		first:     first,
	}, nil
}

func (b *rangeBody) Size() int64 {
	return int64(len(b.first)) + b.end - b.next + 1
}

func (b *rangeBody) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.first)
	written := int64(n)
	if err != nil {
		return written, err
	}

	for start := b.next; start <= b.end; start += b.chunkSize {
		chunk, err := b.provider.ReadRange(b.target, start, min(b.end, start+b.chunkSize-1))
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
