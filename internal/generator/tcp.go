// Package generator implements the emission loop: the engine that holds a
// TCP connection to a target, paces writes through a byte-denominated rate
// bucket, and cycles through a pre-built block cache until shutdown fires.
package generator

import (
	"context"
	"net"
	"time"

	"github.com/nishisan-dev/loadgen/internal/block"
	"github.com/nishisan-dev/loadgen/internal/ratelimiter"
	"github.com/nishisan-dev/loadgen/internal/telemetry"
)

// Dialer abstracts net.Dialer.DialContext so the connection source can be
// replaced (see WithDialer).
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Tcp is the TCP-speaking emission engine. A single Tcp value drives one
// target connection; construct one per configured target.
type Tcp struct {
	addr   string
	dialer Dialer
	bucket *ratelimiter.RateBucket
	cache  *block.Cache
	labels telemetry.Labels
	sink   telemetry.Sink
	logger logger
}

// logger is the minimal surface Tcp needs from *slog.Logger, kept narrow so
// tests can pass a no-op implementation without constructing a real one.
type logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// New builds a Tcp engine targeting addr, paced by bucket, cycling cache.
// labels are attached to every metric this engine reports.
func New(addr string, bucket *ratelimiter.RateBucket, cache *block.Cache, labels telemetry.Labels, sink telemetry.Sink, log logger) *Tcp {
	if sink == nil {
		sink = telemetry.Multi(nil)
	}
	return &Tcp{
		addr:   addr,
		dialer: &net.Dialer{},
		cache:  cache,
		bucket: bucket,
		labels: labels,
		sink:   sink,
		logger: log,
	}
}

// WithDialer overrides the dialer used to establish connections. The default
// is a zero-value net.Dialer.
func (t *Tcp) WithDialer(d Dialer) *Tcp {
	t.dialer = d
	return t
}

// Spin runs the emission loop until ctx is done. It never returns an error:
// transient connect and write failures are counted and retried forever,
// exactly as the rest of this package's callers expect — the only way out
// is shutdown.
func (t *Tcp) Spin(ctx context.Context) {
	var conn net.Conn
	var cursor uint64

	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("emission loop observed shutdown", "addr", t.addr)
			return
		default:
		}

		if conn == nil {
			c, err := t.connect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.sink.IncrCounter("connection_failure", 1, t.labels.With("error", err.Error()))
				continue
			}
			conn = c
			continue
		}

		blk := t.cache.At(cursor)
		cursor++

		if err := t.bucket.WaitN(ctx, blk.TotalBytes); err != nil {
			// The bucket fails only when ctx is done or when ctx has a
			// deadline that would pass before the budget is granted;
			// either way the run is ending.
			return
		}

		if _, err := conn.Write(blk.Payload); err != nil {
			t.sink.IncrCounter("request_failure", 1, t.labels.With("error", err.Error()))
			conn.Close()
			conn = nil
			continue
		}

		t.sink.IncrCounter("bytes_written", uint64(blk.TotalBytes), t.labels)
	}
}

func (t *Tcp) connect(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return t.dialer.DialContext(dialCtx, "tcp", t.addr)
}
