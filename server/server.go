// Package server accepts connections and runs one request/response
// exchange on each, handing requests to a dispatch.Dispatcher.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nczempin/httpd-go/dispatch"
	"github.com/nczempin/httpd-go/errors"
	"github.com/nczempin/httpd-go/logging"
	"github.com/nczempin/httpd-go/protocol"
	"github.com/nczempin/httpd-go/transport"
)

const acceptRetryDelay = 50 * time.Millisecond

// Config holds the connection handling settings
type Config struct {
	MaxRequestBytes int
	MaxConnections  int64
	Transport       transport.Options
	Logger          *slog.Logger
}

// Server serves one request per connection
type Server struct {
	dispatcher      *dispatch.Dispatcher
	maxRequestBytes int
	options         transport.Options
	sem             *semaphore.Weighted
	logger          *slog.Logger
	conns           sync.WaitGroup
}

// New creates a server handing requests to dispatcher
func New(dispatcher *dispatch.Dispatcher, config Config) *Server {
	maxConnections := config.MaxConnections
	if maxConnections <= 0 {
		maxConnections = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher:      dispatcher,
		maxRequestBytes: config.MaxRequestBytes,
		options:         config.Transport,
		sem:             semaphore.NewWeighted(maxConnections),
		logger:          logger,
	}
}

// ListenAndServe listens on network/address and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, network, address string) error {
	l, err := transport.Listen(network, address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is cancelled or accepting fails
// permanently. It closes l and waits for in-flight connections before
// returning. Cancellation is not an error.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.logger.InfoContext(ctx, "Server listening.", slog.String("address", l.Addr().String()))

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errGroup, errGroupCtx := errgroup.WithContext(serveCtx)

	errGroup.Go(func() error {
		<-errGroupCtx.Done()
		if err := l.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
			logging.LogWarning(ctx, s.logger, "An error occurred when closing the listener.", err)
		}
		return nil
	})

	errGroup.Go(func() error {
		// The watcher above only wakes on cancellation.
		defer cancel()
		return s.acceptLoop(errGroupCtx, l)
	})

	err := errGroup.Wait()
	s.conns.Wait()
	s.logger.InfoContext(ctx, "Server stopped.")
	return err
}

func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	connCtx := context.WithoutCancel(ctx)

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		conn, err := l.Accept()
		if err != nil {
			s.sem.Release(1)
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				return nil
			}

			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				logging.LogWarning(ctx, s.logger, "Accept timed out; retrying.", err)
				time.Sleep(acceptRetryDelay)
				continue
			}
			return errors.NewTransportError(errors.TransportErrorAcceptFailure, "accept failed", err)
		}

		t, err := transport.Wrap(conn, s.options)
		if err != nil {
			s.sem.Release(1)
			logging.LogWarning(ctx, s.logger, "A connection could not be set up.", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer s.sem.Release(1)
			s.ServeConn(connCtx, t)
		}()
	}
}

// ServeConn runs a single exchange on t and closes it
func (s *Server) ServeConn(ctx context.Context, t transport.Transport) {
	ctx = logging.WithConnectionId(ctx, uuid.NewString())
	logger := s.logger.With(slog.String("remote_address", t.RemoteAddr()))

	proto := protocol.NewHttp1Protocol(t, s.maxRequestBytes)
	defer func() {
		if err := proto.Close(); err != nil {
			logging.LogDebug(ctx, logger, "An error occurred when closing the connection.", err)
		}
	}()
	// A body that panics while streaming leaves a truncated response; the
	// connection is closed and the slot released.
	defer func() {
		if r := recover(); r != nil {
			logging.LogError(ctx, logger, "A panic occurred while serving the connection.", fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()

	var resp *protocol.HttpResponse
	req, err := proto.ReadRequest()
	if err != nil {
		if httpErr, ok := errors.As(err); ok && httpErr.Type == errors.ErrorTransport {
			// Nothing usable arrived; there is no one to answer.
			logging.LogDebug(ctx, logger, "The request could not be read.", err)
			return
		}
		resp = s.dispatcher.HandleError(ctx, protocol.Version11, err)
	} else {
		resp = s.dispatch(ctx, req)
	}

	written, err := proto.WriteResponse(resp)
	attrs := []any{
		slog.Int("status", resp.StatusCode),
		slog.Int64("bytes", written),
		slog.Duration("duration", time.Since(start)),
	}
	if req != nil {
		attrs = append(attrs, slog.String("method", req.Method.String()), slog.String("path", req.RawPath))
		if rangeValue := req.Headers.Get("Range"); rangeValue != "" {
			attrs = append(attrs, slog.String("range", rangeValue))
		}
	}

	if err != nil {
		logging.LogWarning(ctx, logger, "The response could not be written.", err, attrs...)
		return
	}
	logger.InfoContext(ctx, "Request served.", attrs...)
}

// dispatch shields the connection from panics in the dispatcher or a
// provider; they are answered like any other internal error.
func (s *Server) dispatch(ctx context.Context, req *protocol.HttpRequest) (resp *protocol.HttpResponse) {
	defer func() {
		if r := recover(); r != nil {
			resp = s.dispatcher.HandleError(ctx, req.Version, fmt.Errorf("panic while dispatching: %v", r))
		}
	}()
	return s.dispatcher.Dispatch(ctx, req)
}
