package logging

import (
	"bytes"
	"context"
	"log/slog"
)

// Emitter delivers one formatted log line, typically as a DBGMSG envelope.
type Emitter func(ctx context.Context, level slog.Level, text string) error

// ForwardHandler formats records as text and hands them to an Emitter. The
// enabled level is read from a LevelVar so that it can be changed remotely.
type ForwardHandler struct {
	level    *slog.LevelVar
	emit     Emitter
	fallback slog.Handler
	scopes   []func(slog.Handler) slog.Handler
}

// NewForwardHandler creates a handler; records that cannot be emitted go to fallback when set.
func NewForwardHandler(level *slog.LevelVar, emit Emitter, fallback slog.Handler) *ForwardHandler {
	return &ForwardHandler{level: level, emit: emit, fallback: fallback}
}

// Enabled reports whether level passes the current threshold
func (h *ForwardHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and emits the record
func (h *ForwardHandler) Handle(ctx context.Context, record slog.Record) error {
	buf := &bytes.Buffer{}
	var handler slog.Handler = slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	for _, scope := range h.scopes {
		handler = scope(handler)
	}
	if err := handler.Handle(ctx, record); err != nil {
		return err
	}
	err := h.emit(ctx, record.Level, string(bytes.TrimRight(buf.Bytes(), "\n")))
	if err != nil && h.fallback != nil {
		return h.fallback.Handle(ctx, record)
	}
	return err
}

// WithAttrs returns a handler carrying attrs
func (h *ForwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	ret := *h
	ret.scopes = append(append([]func(slog.Handler) slog.Handler{}, h.scopes...), func(handler slog.Handler) slog.Handler {
		return handler.WithAttrs(attrs)
	})
	if h.fallback != nil {
		ret.fallback = h.fallback.WithAttrs(attrs)
	}
	return &ret
}

// WithGroup returns a handler nesting subsequent attributes under name
func (h *ForwardHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	ret := *h
	ret.scopes = append(append([]func(slog.Handler) slog.Handler{}, h.scopes...), func(handler slog.Handler) slog.Handler {
		return handler.WithGroup(name)
	})
	if h.fallback != nil {
		ret.fallback = h.fallback.WithGroup(name)
	}
	return &ret
}

var _ slog.Handler = (*ForwardHandler)(nil)
