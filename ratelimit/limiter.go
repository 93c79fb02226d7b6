// Package ratelimit throttles local queue deliveries per destination host.
package ratelimit

import (
	"net/url"
	"sync"
	"time"
)

// Limiter is a token bucket per destination host. Every bucket holds at
// most one second worth of tokens.
type Limiter struct {
	mu        sync.Mutex
	perSecond float64
	buckets   map[string]*bucket
	now       func() time.Time
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// New creates a limiter admitting perSecond deliveries per host. A
// perSecond of zero or less disables limiting.
func New(perSecond int) *Limiter {
	return &Limiter{
		perSecond: float64(perSecond),
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// Enabled reports whether the limiter throttles at all.
func (l *Limiter) Enabled() bool { return l != nil && l.perSecond > 0 }

// Allow takes a token for the host of rawURL. When none is available it
// returns false and the time until the next token.
func (l *Limiter) Allow(rawURL string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	key := hostOf(rawURL)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.perSecond, lastFill: now}
		l.buckets[key] = b
	}
	b.tokens = min(l.perSecond, b.tokens+now.Sub(b.lastFill).Seconds()*l.perSecond)
	b.lastFill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second))
	return false, wait
}

// Reset clears the bucket of the host of rawURL.
func (l *Limiter) Reset(rawURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, hostOf(rawURL))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
