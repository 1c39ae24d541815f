package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitRule gives a class of requests its own budget. Each client has a
// separate counter per rule.
type RateLimitRule struct {
	Name   string
	Match  func(*http.Request) bool
	Max    int
	Window time.Duration
}

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max and Window apply to requests no rule matches.
	Max    int
	Window time.Duration
	// Rules are tried in order; the first match wins.
	Rules []RateLimitRule
	// Skip exempts requests from limiting entirely.
	Skip func(*http.Request) bool
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string

	now func() time.Time
}

// Match returns a rule matcher for the given method and path prefixes.
func Match(method string, prefixes ...string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if method != "" && r.Method != method {
			return false
		}
		for _, p := range prefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				return true
			}
		}
		return false
	}
}

// Paths returns a matcher for exact request paths.
func Paths(paths ...string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		for _, p := range paths {
			if r.URL.Path == p {
				return true
			}
		}
		return false
	}
}

// window is a sliding window counter: the request count of the current fixed
// window plus the previous one weighted by how much of it still overlaps.
type window struct {
	start      time.Time
	curr, prev int
}

func (w *window) advance(now time.Time, size time.Duration) {
	start := now.Truncate(size)
	elapsed := start.Sub(w.start)
	if elapsed <= 0 {
		return
	}
	if elapsed == size {
		w.prev, w.curr = w.curr, 0
	} else {
		w.prev, w.curr = 0, 0
	}
	w.start = start
}

func (w *window) estimate(now time.Time, size time.Duration) float64 {
	overlap := 1 - float64(now.Sub(w.start))/float64(size)
	return float64(w.prev)*overlap + float64(w.curr)
}

type limiter struct {
	name string
	max  int
	size time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

func newLimiter(name string, limit int, size time.Duration) *limiter {
	if size <= 0 {
		size = time.Minute
	}
	return &limiter{name: name, max: limit, size: size, windows: make(map[string]*window)}
}

// take counts a request for key if it fits the budget.
func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil {
		w = &window{}
		l.windows[key] = w
	}
	w.advance(now, l.size)
	reset = w.start.Add(l.size)

	used := w.estimate(now, l.size)
	if used+1 > float64(l.max) {
		return 0, reset, false
	}
	w.curr++
	return max(0, int(float64(l.max)-used-1)), reset, true
}

// evict drops counters that no longer influence any decision.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.windows, key)
		}
	}
}

type rateLimiter struct {
	cfg      RateLimitConfig
	fallback *limiter
	rules    []*limiter
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	rl := &rateLimiter{cfg: cfg, fallback: newLimiter("default", cfg.Max, cfg.Window)}
	for _, r := range cfg.Rules {
		size := r.Window
		if size <= 0 {
			size = cfg.Window
		}
		rl.rules = append(rl.rules, newLimiter(r.Name, r.Max, size))
	}
	return rl
}

func (rl *rateLimiter) limiterFor(r *http.Request) *limiter {
	for i, rule := range rl.cfg.Rules {
		if rule.Match != nil && rule.Match(r) {
			return rl.rules[i]
		}
	}
	return rl.fallback
}

func (rl *rateLimiter) evict(now time.Time) {
	rl.fallback.evict(now)
	for _, l := range rl.rules {
		l.evict(now)
	}
}

// RateLimit returns a middleware that enforces per-client sliding window
// limits. Limited requests get 429 with a Retry-After header and the error
// envelope. Every counted response carries X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset.
//
// Counters are never evicted; long running servers should use
// RateLimitWithCleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newRateLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit plus a goroutine that evicts idle
// counters until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	go func() {
		ticker := time.NewTicker(max(rl.fallback.size, time.Second))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.evict(rl.cfg.now())
			}
		}
	}()
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.Skip != nil && rl.cfg.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		l := rl.limiterFor(r)
		now := rl.cfg.now()
		remaining, reset, ok := l.take(rl.cfg.KeyFunc(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := math.Ceil(reset.Sub(now).Seconds())
			h.Set("Retry-After", strconv.Itoa(int(max(wait, 1))))
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address without its port. The service runs behind a proxy that sets
// these headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
