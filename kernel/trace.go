package kernel

import (
	"context"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
)

// LevelTrace is the level of per-word and per-cycle records.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Trace logs a record at LevelTrace.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

type named interface {
	Name() string
}

// A LogHook forwards every hook invocation it receives to a logger.
type LogHook struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogHook creates a hook that logs at LevelTrace.
func NewLogHook(logger *slog.Logger) *LogHook {
	return &LogHook{
		logger: logger,
		level:  LevelTrace,
	}
}

// WithLevel returns a copy of the hook that logs at the given level.
func (h *LogHook) WithLevel(level slog.Level) *LogHook {
	return &LogHook{
		logger: h.logger,
		level:  level,
	}
}

// Func implements sim.Hook.
func (h *LogHook) Func(ctx sim.HookCtx) {
	domain := ""
	if n, ok := ctx.Domain.(named); ok {
		domain = n.Name()
	}

	h.logger.Log(context.Background(), h.level, ctx.Pos.Name,
		"domain", domain,
		"item", ctx.Item,
	)
}
