package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes describing the current session. It is
// called once per record and receives the record's context.
type ContextProvider func(ctx context.Context) []slog.Attr

// ContextHandler adds the provider's attributes to every record before
// passing it on.
type ContextHandler struct {
	next     slog.Handler
	provider ContextProvider
}

// NewContextHandler wraps next. A nil provider makes it a pass-through.
func NewContextHandler(next slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{next: next, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		if attrs := h.provider(ctx); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.wrap(h.next.WithAttrs(attrs))
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.wrap(h.next.WithGroup(name))
}

func (h *ContextHandler) wrap(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next, provider: h.provider}
}
