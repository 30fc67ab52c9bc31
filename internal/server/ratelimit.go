package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle caps how often one client may submit a credentials form. Every
// (path, client address) pair owns a token bucket holding perMinute tokens
// and refilling at the same rate per minute.
type throttle struct {
	mu        sync.Mutex
	perMinute int
	idle      time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	tokens *rate.Limiter
	used   time.Time
}

func newThrottle(perMinute int, idle time.Duration) *throttle {
	return &throttle{
		perMinute: perMinute,
		idle:      idle,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// allow takes a token from key's bucket. Buckets left unused for longer
// than idle are dropped, at most once per idle period.
func (t *throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > t.idle {
		t.sweep(now)
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(rate.Every(t.interval()), t.perMinute)}
		t.buckets[key] = b
	}
	b.used = now
	return b.tokens.AllowN(now, 1)
}

// interval is the time it takes to refill one token.
func (t *throttle) interval() time.Duration {
	return time.Minute / time.Duration(t.perMinute)
}

// sweep must be called with mu held.
func (t *throttle) sweep(now time.Time) {
	for key, b := range t.buckets {
		if now.Sub(b.used) > t.idle {
			delete(t.buckets, key)
		}
	}
	t.lastSweep = now
}

// wrap answers 429 once the caller has used up its bucket for this path.
// A non-positive perMinute disables the throttle.
func (t *throttle) wrap(next http.Handler) http.Handler {
	if t.perMinute <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !t.allow(r.URL.Path + " " + host) {
			w.Header().Set("Retry-After", strconv.Itoa(int(t.interval().Seconds())+1))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
