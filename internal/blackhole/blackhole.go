// Package blackhole implements an accept-and-discard TCP sink: a target for
// local experiments that need somewhere for the emission loop to point
// without standing up a real collector.
package blackhole

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/nishisan-dev/loadgen/internal/telemetry"
)

// Run accepts connections on ln and discards everything written to them
// until ctx is done. It mirrors the teacher's accept loop: backoff on
// repeated Accept errors, and a watcher goroutine that closes ln when ctx
// is cancelled so Accept unblocks.
func Run(ctx context.Context, ln net.Listener, sink telemetry.Sink, logger *slog.Logger) error {
	if sink == nil {
		sink = telemetry.Multi(nil)
	}
	logger = logger.With("component", "blackhole", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	consecutiveErrors := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				logger.Info("blackhole shutdown complete")
				return nil
			default:
				consecutiveErrors++
				logger.Error("accepting connection", "error", err, "consecutive_errors", consecutiveErrors)
				if consecutiveErrors > 5 {
					delay := time.Duration(consecutiveErrors) * 100 * time.Millisecond
					if delay > 5*time.Second {
						delay = 5 * time.Second
					}
					time.Sleep(delay)
				}
				continue
			}
		}

		consecutiveErrors = 0
		go discard(conn, sink)
	}
}

func discard(conn net.Conn, sink telemetry.Sink) {
	defer conn.Close()
	n, _ := io.Copy(io.Discard, conn)
	sink.IncrCounter("blackhole_bytes_received", uint64(n), nil)
}
