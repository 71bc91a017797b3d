package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// fanOutHandler dispatches each record to two handlers. Used by
// NewTargetLogger to write simultaneously to the global handler and a
// target's dedicated log file.
type fanOutHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (h *fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.secondary.Enabled(ctx, level)
}

func (h *fanOutHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.primary.Enabled(ctx, r.Level) {
		if err := h.primary.Handle(ctx, r); err != nil {
			return err
		}
	}
	if h.secondary.Enabled(ctx, r.Level) {
		_ = h.secondary.Handle(ctx, r)
	}
	return nil
}

func (h *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithAttrs(attrs),
		secondary: h.secondary.WithAttrs(attrs),
	}
}

func (h *fanOutHandler) WithGroup(name string) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithGroup(name),
		secondary: h.secondary.WithGroup(name),
	}
}

// NewTargetLogger builds a logger that writes both to baseLogger and to a
// file dedicated to one generator target, created at:
//
//	{logDir}/{targetName}/{runID}.log
//
// It returns the enriched logger, an io.Closer that must be called when the
// run ends, and the path of the created file (absolute only if logDir is).
//
// If logDir is empty, it returns baseLogger unmodified (no-op).
func NewTargetLogger(baseLogger *slog.Logger, logDir, targetName, runID string) (*slog.Logger, io.Closer, string, error) {
	if logDir == "" {
		return baseLogger, io.NopCloser(nil), "", nil
	}

	dir := filepath.Join(logDir, targetName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, "", fmt.Errorf("creating target log directory %s: %w", dir, err)
	}

	logPath := filepath.Join(dir, runID+".log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, "", fmt.Errorf("opening target log file %s: %w", logPath, err)
	}

	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	combined := &fanOutHandler{
		primary:   baseLogger.Handler(),
		secondary: fileHandler,
	}

	return slog.New(combined), f, logPath, nil
}

// RemoveTargetLog removes the log file of a target run that finished
// successfully. It is a no-op if logDir is empty or the file doesn't exist.
func RemoveTargetLog(logDir, targetName, runID string) {
	if logDir == "" {
		return
	}
	logPath := filepath.Join(logDir, targetName, runID+".log")
	os.Remove(logPath)
}
