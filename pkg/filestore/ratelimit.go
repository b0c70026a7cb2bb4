package filestore

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Drive 默认每秒 8 个请求，突发 10 个，低于 Google 的单用户配额。
const (
	defaultRequestsPerSecond = 8.0
	defaultBurst             = 10
)

// RateLimiter 是令牌桶限流器，收到 429 后会额外退避一段时间。
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter 创建限流器，参数非法时使用默认值。
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait 阻塞直到可以发出下一个请求。
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// Backoff 记录一次限流响应，之后 d 时间内的请求都会等待。
func (r *RateLimiter) Backoff(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := time.Now().Add(d); until.After(r.retryAt) {
		r.retryAt = until
	}
}
