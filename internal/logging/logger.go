// Package logging builds the structured loggers used across the harness,
// wiring log output into the run's telemetry sink so operators watching a
// metrics dashboard see error volume alongside the raw log stream.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nishisan-dev/loadgen/internal/telemetry"
)

// NewLogger builds a slog.Logger configured with the given level, format and
// output. Supported formats are "json" (default) and "text". Supported
// levels are "debug", "info" (default), "warn" and "error". If filePath is
// non-empty, logs are written to stdout and the file (MultiWriter).
//
// If sink is non-nil, every record at or above slog.LevelError also
// increments a log_errors_total counter on sink, tagged with whatever
// string attributes are bound to the logger at the point the record is
// emitted (e.g. "target" via logger.With("target", name)). That way a spike
// in error logs for one generator target shows up on the same dashboard as
// its connection_failure/request_failure counters, without the core itself
// knowing anything about logging.
//
// It returns the logger and an io.Closer that must be called on shutdown to
// close the file. If filePath is empty, the returned Closer is a no-op.
func NewLogger(level, format, filePath string, sink telemetry.Sink) (*slog.Logger, io.Closer) {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	var w io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(strings.NewReader(""))

	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: could not open log file %q: %v (logging to stdout only)\n", filePath, err)
		} else {
			w = io.MultiWriter(os.Stdout, f)
			closer = f
		}
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	if sink != nil {
		handler = &errorCounterHandler{inner: handler, sink: sink}
	}

	return slog.New(handler), closer
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// errorCounterHandler mirrors every Error-level (or higher) record into a
// telemetry counter, labeled with whatever attributes are bound on the
// logger, so log volume and metric volume agree on how many errors a run
// produced.
type errorCounterHandler struct {
	inner slog.Handler
	sink  telemetry.Sink
	attrs telemetry.Labels
}

func (h *errorCounterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *errorCounterHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		h.sink.IncrCounter("log_errors_total", 1, h.attrs)
	}
	return h.inner.Handle(ctx, r)
}

func (h *errorCounterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &errorCounterHandler{inner: h.inner.WithAttrs(attrs), sink: h.sink, attrs: h.attrs}
	for _, a := range attrs {
		next.attrs = next.attrs.With(a.Key, a.Value.String())
	}
	return next
}

func (h *errorCounterHandler) WithGroup(name string) slog.Handler {
	return &errorCounterHandler{inner: h.inner.WithGroup(name), sink: h.sink, attrs: h.attrs}
}
