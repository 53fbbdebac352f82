package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler raises the floor for one derived logger without touching
// the shared handler chain. Stage loggers use this to honor the per-stage
// level overrides from config while the daemon logger stays at its own level.
type minLevelHandler struct {
	next  slog.Handler
	floor slog.Level
}

func newLevelOverrideHandler(next slog.Handler, floor slog.Level) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &minLevelHandler{next: next, floor: floor}
}

func (h *minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.floor && h.next.Enabled(ctx, level)
}

func (h *minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.floor {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &minLevelHandler{next: h.next.WithAttrs(attrs), floor: h.floor}
}

func (h *minLevelHandler) WithGroup(name string) slog.Handler {
	return &minLevelHandler{next: h.next.WithGroup(name), floor: h.floor}
}

// CloneWithLevel rebinds the floor without stacking another wrapper.
func (h *minLevelHandler) CloneWithLevel(floor slog.Level) slog.Handler {
	return &minLevelHandler{next: h.next, floor: floor}
}

// WithLevelOverride returns a logger enforcing the provided minimum level
// while keeping the underlying handlers and attributes.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return slog.New(newLevelOverrideHandler(nil, level))
	}
	if cloner, ok := logger.Handler().(interface{ CloneWithLevel(slog.Level) slog.Handler }); ok {
		return slog.New(cloner.CloneWithLevel(level))
	}
	return slog.New(newLevelOverrideHandler(logger.Handler(), level))
}
