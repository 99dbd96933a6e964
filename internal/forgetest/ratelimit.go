package forgetest

import (
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimit throttles /api/v1 per token. A zero RPS disables it.
type RateLimit struct {
	RPS   float64
	Burst int
	// RetryAfter is the Retry-After value sent with a 429, in seconds.
	RetryAfter int
}

// tokenLimiter hands out one limiter per API token.
type tokenLimiter struct {
	cfg      RateLimit
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rejected int
}

func newTokenLimiter(cfg RateLimit) *tokenLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &tokenLimiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

func (tl *tokenLimiter) get(key string) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	l, ok := tl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(tl.cfg.RPS), tl.cfg.Burst)
		tl.limiters[key] = l
	}
	return l
}

// middleware answers 429 with Retry-After once a token runs out. Requests
// without a token are left to the handlers, which reject them.
func (tl *tokenLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Authorization")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		l := tl.get(key)
		if !l.Allow() {
			tl.mu.Lock()
			tl.rejected++
			tl.mu.Unlock()
			w.Header().Set("Retry-After", strconv.Itoa(tl.cfg.RetryAfter))
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeError(w, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		remaining := int(l.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}

// Throttled returns how many API requests were answered with 429.
func (f *Forge) Throttled() int {
	if f.limiter == nil {
		return 0
	}
	f.limiter.mu.Lock()
	defer f.limiter.mu.Unlock()
	return f.limiter.rejected
}
