// Package logging builds the server's slog loggers. Records pass through a
// motmedel ContextHandler whose extractors add the connection id and the
// error carried by the context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	motmedelContext "github.com/Motmedel/utils_go/pkg/context"
	motmedelLog "github.com/Motmedel/utils_go/pkg/log"

	"github.com/nczempin/httpd-go/errors"
)

type connectionIdContextType struct{}

var connectionIdContextKey connectionIdContextType

// WithConnectionId returns a context tagged with a connection id
func WithConnectionId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIdContextKey, id)
}

// ConnectionId returns the connection id of ctx, if any
func ConnectionId(ctx context.Context) string {
	id, _ := ctx.Value(connectionIdContextKey).(string)
	return id
}

// WithError returns a context carrying err for the next log record
func WithError(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}
	return motmedelContext.WithErrorContextValue(ctx, err)
}

func ExtractConnectionId(ctx context.Context, record *slog.Record) error {
	if record == nil {
		return nil
	}
	if id := ConnectionId(ctx); id != "" {
		record.AddAttrs(slog.String("connection_id", id))
	}
	return nil
}

// ExtractHttpErrorKind adds the category and kind of the first HttpError in
// the chain of the context's error.
func ExtractHttpErrorKind(ctx context.Context, record *slog.Record) error {
	if record == nil {
		return nil
	}
	err, ok := ctx.Value(motmedelContext.ErrorContextKey).(error)
	if !ok || err == nil {
		return nil
	}
	if httpErr, ok := errors.As(err); ok {
		record.AddAttrs(
			slog.String("error_category", httpErr.Type.String()),
			slog.String("error_kind", httpErr.Kind()),
		)
	}
	return nil
}

var (
	ConnectionIdExtractor  = motmedelLog.ContextExtractorFunction(ExtractConnectionId)
	HttpErrorKindExtractor = motmedelLog.ContextExtractorFunction(ExtractHttpErrorKind)
)

// contextHandler keeps the extractors when attributes or groups are added.
type contextHandler struct {
	*motmedelLog.ContextHandler
}

func newContextHandler(next slog.Handler) slog.Handler {
	return &contextHandler{
		ContextHandler: &motmedelLog.ContextHandler{
			Next: next,
			Extractors: []motmedelLog.ContextExtractor{
				&motmedelLog.ErrorContextExtractor{},
				HttpErrorKindExtractor,
				ConnectionIdExtractor,
			},
		},
	}
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newContextHandler(h.ContextHandler.Next.WithAttrs(attrs))
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return newContextHandler(h.ContextHandler.Next.WithGroup(name))
}

// The motmedel log/error helpers log against context.Background(); these
// keep the caller's context so the connection id survives.

func LogError(ctx context.Context, logger *slog.Logger, message string, err error, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(WithError(ctx, err), message, args...)
}

func LogWarning(ctx context.Context, logger *slog.Logger, message string, err error, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(WithError(ctx, err), message, args...)
}

func LogDebug(ctx context.Context, logger *slog.Logger, message string, err error, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(WithError(ctx, err), message, args...)
}

// ParseLevel accepts debug, info, warn or error
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

// New creates a logger writing "json" or "text" records to w
func New(format string, level slog.Leveler, w io.Writer) (*slog.Logger, error) {
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, options)
	case "text", "":
		handler = slog.NewTextHandler(w, options)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return slog.New(newContextHandler(handler)), nil
}
