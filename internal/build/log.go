package build

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet fans each log record out to a set of underlying btclog
// handlers, enabling dual-stream logging (console plus rotating file) behind
// a single handler.
type HandlerSet struct {
	level btclog.Level
	set   []btclogv2.Handler
}

// NewHandlerSet constructs a HandlerSet over the given handlers, all
// initialized to the Info level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{set: handlers}
	h.SetLevel(btclog.LevelInfo)

	return h
}

// Enabled reports whether every underlying handler handles records at the
// given level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to every underlying handler.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.set {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new handler with the arguments appended to each
// member's attributes.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(slogSet, len(h.set))
	for i, handler := range h.set {
		next[i] = handler.WithAttrs(attrs)
	}

	return next
}

// WithGroup returns a new handler with the group appended to each member's
// groups.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	next := make(slogSet, len(h.set))
	for i, handler := range h.set {
		next[i] = handler.WithGroup(name)
	}

	return next
}

// SubSystem creates a new handler set tagged with the given sub-system.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	next := &HandlerSet{
		level: h.level,
		set:   make([]btclogv2.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		next.set[i] = handler.SubSystem(tag)
	}

	return next
}

// SetLevel changes the logging level on every underlying handler.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level returns the current logging level.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

// WithPrefix returns a copy of the set with the given string prefixed to
// each log message.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	next := &HandlerSet{
		level: h.level,
		set:   make([]btclogv2.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		next.set[i] = handler.WithPrefix(prefix)
	}

	return next
}

var _ btclogv2.Handler = (*HandlerSet)(nil)

// slogSet is the plain-slog fan-out produced by WithAttrs/WithGroup, which
// return slog.Handlers rather than btclog handlers.
type slogSet []slog.Handler

// Enabled reports whether every member handles records at the given level.
//
// NOTE: this is part of the slog.Handler interface.
func (s slogSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range s {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to every member.
//
// NOTE: this is part of the slog.Handler interface.
func (s slogSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range s {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new fan-out with the arguments appended to each
// member's attributes.
//
// NOTE: this is part of the slog.Handler interface.
func (s slogSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(slogSet, len(s))
	for i, handler := range s {
		next[i] = handler.WithAttrs(attrs)
	}

	return next
}

// WithGroup returns a new fan-out with the group appended to each member's
// groups.
//
// NOTE: this is part of the slog.Handler interface.
func (s slogSet) WithGroup(name string) slog.Handler {
	next := make(slogSet, len(s))
	for i, handler := range s {
		next[i] = handler.WithGroup(name)
	}

	return next
}

var _ slog.Handler = (slogSet)(nil)
