package errors

import (
	"log/slog"
)

// LogHandler is an ErrorHandler that writes structured records through slog.
type LogHandler struct {
	// Logger receives the records. Nil means slog.Default().
	Logger *slog.Logger
	// Verbose adds stack traces to error and panic records.
	Verbose bool
}

func (h *LogHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// HandleError logs a LatticeError at error level.
func (h *LogHandler) HandleError(err *LatticeError) {
	if err == nil {
		return
	}
	attrs := []any{
		slog.String("op", err.Op),
		slog.String("kind", err.Kind.String()),
		slog.Any("err", err.Err),
	}
	if err.Entity != "" {
		attrs = append(attrs, slog.String("entity", err.Entity))
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, slog.String("stack", err.StackTrace))
	}
	h.logger().Error("lattice error", attrs...)
}

// HandleWarning logs a CascadeWarning at warn level.
func (h *LogHandler) HandleWarning(w *CascadeWarning) {
	if w == nil {
		return
	}
	h.logger().Warn("style declaration skipped",
		slog.String("sheet", w.Sheet),
		slog.String("selector", w.Selector),
		slog.String("property", w.Property),
		slog.String("value", w.Value),
		slog.String("reason", w.Reason),
	)
}

// HandlePanic logs a PanicError at error level.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	attrs := []any{slog.Any("value", err.Value)}
	if err.Op != "" {
		attrs = append(attrs, slog.String("op", err.Op))
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, slog.String("stack", err.StackTrace))
	}
	h.logger().Error("lattice panic", attrs...)
}
