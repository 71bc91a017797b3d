// Package ratelimiter paces the emission loop to a configured
// bytes-per-second ceiling using a token bucket, one token per byte.
package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// maxBurstBytes bounds how many bytes a single WaitN reservation may ask
// for at once. Blocks larger than this are drained in slices so one huge
// block never reserves a burst the limiter can't grant.
const maxBurstBytes = 1 << 20 // 1 MiB

// RateBucket is a byte-denominated token bucket. A RateBucket with a zero
// rate never blocks — the zero value is not usable, construct with New.
type RateBucket struct {
	limiter   *rate.Limiter
	unlimited bool
}

// New builds a RateBucket capped at bytesPerSecond bytes/sec. A
// bytesPerSecond of zero means unlimited: WaitN always returns immediately.
// A negative bytesPerSecond is rejected with an error. Burst is
// min(bytesPerSecond, maxBurstBytes). The bucket starts empty, so a caller
// that keeps it busy from the start is held to the configured rate; only
// after an idle period can a spike of up to one burst go out without
// waiting.
func New(bytesPerSecond int64) (*RateBucket, error) {
	if bytesPerSecond < 0 {
		return nil, fmt.Errorf("ratelimiter: bytes per second must not be negative, got %d", bytesPerSecond)
	}
	if bytesPerSecond == 0 {
		return &RateBucket{unlimited: true}, nil
	}

	burst := bytesPerSecond
	if burst > maxBurstBytes {
		burst = maxBurstBytes
	}

	limiter := rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst))
	// rate.NewLimiter starts full; drain it so the first second is paced
	// like every other.
	limiter.AllowN(time.Now(), int(burst))

	return &RateBucket{
		limiter: limiter,
	}, nil
}

// WaitN blocks until n bytes of budget are available, or ctx is done.
// Requests larger than the bucket's burst are drained in burst-sized
// slices so a single large block never exceeds what the limiter can grant
// in one reservation.
func (b *RateBucket) WaitN(ctx context.Context, n int) error {
	if b.unlimited || n <= 0 {
		return nil
	}

	burst := b.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := b.limiter.WaitN(ctx, chunk); err != nil {
			return fmt.Errorf("ratelimiter: waiting for %d bytes of budget: %w", chunk, err)
		}
		n -= chunk
	}
	return nil
}

// Limit reports the configured bytes-per-second ceiling, or 0 if unlimited.
func (b *RateBucket) Limit() float64 {
	if b.unlimited {
		return 0
	}
	return float64(b.limiter.Limit())
}
