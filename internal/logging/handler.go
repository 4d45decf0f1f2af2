package logging

import (
	"context"
	"log/slog"
	"strings"
)

// FuncHandler forwards records at or above a level to a callback as a single
// line of text, and to an optional next handler unchanged.
type FuncHandler struct {
	level slog.Level
	fn    func(slog.Level, string)
	next  slog.Handler
	attrs []slog.Attr
}

// NewFuncHandler returns a handler calling fn for each enabled record. next
// may be nil.
func NewFuncHandler(level slog.Level, fn func(slog.Level, string), next slog.Handler) *FuncHandler {
	return &FuncHandler{level: level, fn: fn, next: next}
}

func (h *FuncHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if l >= h.level {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, l)
}

func (h *FuncHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level {
		var b strings.Builder
		b.WriteString(r.Message)
		write := func(a slog.Attr) bool {
			b.WriteByte(' ')
			b.WriteString(a.Key)
			b.WriteByte('=')
			b.WriteString(a.Value.String())
			return true
		}
		for _, a := range h.attrs {
			write(a)
		}
		r.Attrs(write)
		h.fn(r.Level, b.String())
	}
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *FuncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

// WithGroup is not reflected in the forwarded text.
func (h *FuncHandler) WithGroup(name string) slog.Handler {
	c := *h
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}
