package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults bounding the per-client state of a Limiter.
const (
	DefaultLimiterIdle       = 10 * time.Minute
	DefaultLimiterMaxClients = 10000
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter rate limits requests per client key. Clients idle for longer
// than the idle timeout are forgotten, and at most maxClients are tracked;
// beyond that the least recently seen one is evicted.
type Limiter struct {
	clients    map[string]*client
	mu         sync.Mutex
	rps        rate.Limit
	burst      int
	idle       time.Duration
	maxClients int
	lastSweep  time.Time
	now        func() time.Time
}

// NewLimiter creates a limiter allowing rps requests per second per key,
// with bursts of up to burst requests.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		clients:    make(map[string]*client),
		rps:        rate.Limit(rps),
		burst:      burst,
		idle:       DefaultLimiterIdle,
		maxClients: DefaultLimiterMaxClients,
		now:        time.Now,
	}
}

// SetBounds overrides the idle timeout and the client cap.
func (l *Limiter) SetBounds(idle time.Duration, maxClients int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.idle = idle
	l.maxClients = maxClients
}

// Len returns the number of tracked clients
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	c, ok := l.clients[key]
	if !ok {
		if l.maxClients > 0 && len(l.clients) >= l.maxClients {
			l.sweep(now)
			if len(l.clients) >= l.maxClients {
				l.evictOldest()
			}
		}
		c = &client{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// sweep drops clients idle for longer than the idle timeout. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idle {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

func (l *Limiter) evictOldest() {
	var oldest string
	var seen time.Time
	for key, c := range l.clients {
		if oldest == "" || c.lastSeen.Before(seen) {
			oldest, seen = key, c.lastSeen
		}
	}
	delete(l.clients, oldest)
}

// Allow reports whether a request for key may proceed now
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Middleware rejects requests over the limit with 429
func (l *Limiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(keyFunc(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RemoteKeyFunc keys requests by the host of the connection's remote
// address.
func RemoteKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPKeyFunc keys requests by the first X-Forwarded-For hop, falling back
// to the remote address. Only use it behind a proxy that sets the header.
func IPKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return RemoteKeyFunc(r)
}
