package ratelimiter

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// RateLimiter throttles copy throughput using the token bucket algorithm.
//
// This implementation wraps golang.org/x/time/rate with one token per byte:
//   - Token bucket rate limiting (allows bursts while enforcing sustained rate)
//   - Context-aware waiting (respects cancellation)
//   - Requests larger than the bucket are split into burst-sized waits
//
// Relayouting a large tree rewrites every drifted byte through the cluster, so
// operators cap the rate to keep the recovery-like load off client traffic.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a new RateLimiter with the specified rate and burst capacity.
//
// Parameters:
//   - bytesPerSecond: Maximum sustained rate (tokens added per second)
//   - burst: Maximum burst size (bucket capacity in bytes)
//
// Special cases:
//   - bytesPerSecond = 0: returns nil, meaning "no throttling"
//   - burst = 0: defaults to one second worth of bytes
//
// Example:
//
//	// 100 MiB/s sustained
//	limiter := New(100<<20, 0)
func New(bytesPerSecond, burst uint64) *RateLimiter {
	if bytesPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = bytesPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst)),
	}
}

// WaitN blocks until n bytes may pass or the context is cancelled.
//
// A nil RateLimiter never blocks.
func (r *RateLimiter) WaitN(ctx context.Context, n int) error {
	if r == nil {
		return ctx.Err()
	}

	burst := r.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := r.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Burst returns the bucket capacity in bytes.
func (r *RateLimiter) Burst() int {
	if r == nil {
		return 0
	}
	return r.limiter.Burst()
}

// Reader returns an io.Reader that throttles reads from src through r.
//
// With a nil RateLimiter the reader still honors context cancellation
// between reads.
func (r *RateLimiter) Reader(ctx context.Context, src io.Reader) io.Reader {
	return &throttledReader{ctx: ctx, src: src, limiter: r}
}

type throttledReader struct {
	ctx     context.Context
	src     io.Reader
	limiter *RateLimiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := t.src.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
