package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"
)

// minBucketSize keeps small limits from degenerating into tiny reads
const minBucketSize = 64 * 1024

// Limiter is a token bucket shared by every reader of one scan or merge.
// A nil *Limiter means unlimited and is safe to use.
type Limiter struct {
	bytesPerSecond int64
	bucketSize     int64

	mu         sync.Mutex
	tokens     int64
	lastRefill time.Time
}

// NewLimiter creates a limiter for bytesPerSecond. Non-positive values disable limiting.
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	bucket := bytesPerSecond
	if bucket < minBucketSize {
		bucket = minBucketSize
	}
	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		bucketSize:     bucket,
		tokens:         bucket,
		lastRefill:     time.Now(),
	}
}

// BytesPerSecond returns the configured rate, 0 when unlimited
func (l *Limiter) BytesPerSecond() int64 {
	if l == nil {
		return 0
	}
	return l.bytesPerSecond
}

// Wait blocks until n bytes may be consumed or ctx is done
func (l *Limiter) Wait(ctx context.Context, n int64) error {
	if l == nil || n <= 0 {
		return nil
	}
	if n > l.bucketSize {
		n = l.bucketSize
	}
	for {
		delay := l.reserve(n)
		if delay == 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes n tokens if available, otherwise returns how long to wait
func (l *Limiter) reserve(n int64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(l.lastRefill); elapsed > 0 {
		l.tokens += int64(elapsed.Seconds() * float64(l.bytesPerSecond))
		if l.tokens > l.bucketSize {
			l.tokens = l.bucketSize
		}
		l.lastRefill = now
	}

	if l.tokens >= n {
		l.tokens -= n
		return 0
	}
	wait := time.Duration(float64(n-l.tokens) / float64(l.bytesPerSecond) * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// Wrap returns rc throttled by l. It returns rc unchanged when l is nil.
func (l *Limiter) Wrap(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	if l == nil {
		return rc
	}
	return &reader{ctx: ctx, rc: rc, limiter: l}
}

type reader struct {
	ctx     context.Context
	rc      io.ReadCloser
	limiter *Limiter
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	want := int64(len(p))
	if want > r.limiter.bucketSize {
		want = r.limiter.bucketSize
	}
	if err := r.limiter.Wait(r.ctx, want); err != nil {
		return 0, err
	}
	return r.rc.Read(p[:want])
}

func (r *reader) Close() error {
	return r.rc.Close()
}
