// Package ratelimit throttles clients with a token bucket per key. Each key
// may burst up to the per-minute allowance and refills evenly over a minute.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const staleAge = 10 * time.Minute

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// MutatingOnly exempts GET, HEAD and OPTIONS requests.
	MutatingOnly bool
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		MutatingOnly:      true,
	}
}

type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	now     func() time.Time

	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	mutatingOnly    bool

	rejected     atomic.Int64
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

type Metrics struct {
	Rejected    int64
	ClientCount int64
}

// NewLimiter starts a background sweep of idle clients; call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	l := newLimiter(cfg, time.Now)
	go l.startCleanup()
	return l
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	return &Limiter{
		clients:         make(map[string]*client),
		now:             now,
		limit:           rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:           cfg.RequestsPerMinute,
		cleanupInterval: cfg.CleanupInterval,
		mutatingOnly:    cfg.MutatingOnly,
		stopCleanup:     make(chan struct{}),
	}
}

// Allow takes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.reserve(key)
	return ok
}

// reserve takes a token for key. When none is available the reservation is
// returned to the bucket and the wait until the next token is reported.
func (l *Limiter) reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		c = &client{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	r := c.bucket.ReserveN(now, 1)
	if !r.OK() {
		l.rejected.Add(1)
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		l.rejected.Add(1)
		return false, delay
	}
	return true, 0
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanupStaleEntries() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-staleAge)
	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() { close(l.stopCleanup) })
}

func (l *Limiter) Metrics() Metrics {
	l.mu.Lock()
	count := int64(len(l.clients))
	l.mu.Unlock()
	return Metrics{Rejected: l.rejected.Load(), ClientCount: count}
}

func (l *Limiter) exempt(r *http.Request) bool {
	if !l.mutatingOnly {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// retryAfterSeconds rounds d up to whole seconds for the Retry-After header.
func retryAfterSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// Middleware keys clients by extractIP. onLimit writes the rejection; when
// nil a plain 429 is sent. Retry-After is set before onLimit runs.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.exempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := l.reserve(extractIP(r))
			if !ok {
				if secs := retryAfterSeconds(wait); secs > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
