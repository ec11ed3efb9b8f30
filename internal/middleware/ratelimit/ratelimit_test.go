package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(rpm int, mutatingOnly bool) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	return newLimiter(Config{RequestsPerMinute: rpm, MutatingOnly: mutatingOnly}, clock.Now), clock
}

func TestLimiter_Allow(t *testing.T) {
	l, clock := newTestLimiter(3, false)

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, wait := l.reserve("1.2.3.4")
	if ok {
		t.Fatal("fourth request should be rejected")
	}
	if secs := retryAfterSeconds(wait); secs != 20 {
		t.Errorf("retry after = %ds, want 20", secs)
	}
	if !l.Allow("5.6.7.8") {
		t.Fatal("other client should have its own bucket")
	}

	clock.Advance(21 * time.Second)
	if !l.Allow("1.2.3.4") {
		t.Fatal("one token should refill after 20s")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("only one token should have refilled")
	}

	clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("full burst should be available after a minute, request %d rejected", i+1)
		}
	}

	if m := l.Metrics(); m.Rejected != 2 || m.ClientCount != 2 {
		t.Errorf("Metrics = %+v", m)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{20*time.Second + time.Nanosecond, 21},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLimiter_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	l, clock := newTestLimiter(1, false)
	l.Allow("a")
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		l.Allow("a")
	}
	clock.Advance(11 * time.Second)
	if !l.Allow("a") {
		t.Fatal("continuous rejected traffic must not keep the client locked out")
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	l, clock := newTestLimiter(5, false)
	l.Allow("old")
	clock.Advance(11 * time.Minute)
	l.Allow("fresh")

	if removed := l.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if m := l.Metrics(); m.ClientCount != 1 {
		t.Fatalf("ClientCount = %d, want 1", m.ClientCount)
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(1, true)
	ip := func(*http.Request) string { return "9.9.9.9" }
	var limited bool
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		limited = true
		w.WriteHeader(http.StatusTooManyRequests)
	}
	h := l.Middleware(ip, onLimit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/sync", nil))
		return rec
	}

	if rec := do(http.MethodPost); rec.Code != http.StatusNoContent {
		t.Fatalf("first POST = %d", rec.Code)
	}
	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests || !limited {
		t.Fatalf("second POST = %d, limited=%v", rec.Code, limited)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	for i := 0; i < 3; i++ {
		if rec := do(http.MethodGet); rec.Code != http.StatusNoContent {
			t.Fatalf("GET should be exempt, got %d", rec.Code)
		}
	}
}

func TestMiddleware_DefaultResponse(t *testing.T) {
	l, _ := newTestLimiter(1, false)
	h := l.Middleware(func(*http.Request) string { return "k" }, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	l.Stop()
	l.Stop()
}
