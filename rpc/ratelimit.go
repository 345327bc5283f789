package rpc

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorIdleTTL = 10 * time.Minute

// RateLimit bounds requests per caller identity, or per client address for
// anonymous reads.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	limit     RateLimit
	mu        sync.Mutex
	visitors  map[string]*rateEntry
	lastSweep time.Time
	clockNow  func() time.Time
}

func newRateLimiter(limit RateLimit) *rateLimiter {
	return &rateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

// allow reports whether the visitor may proceed. A zero limit disables
// throttling.
func (r *rateLimiter) allow(id string) bool {
	if r == nil || r.limit.RequestsPerMinute <= 0 {
		return true
	}
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastSweep) > visitorIdleTTL {
		for key, entry := range r.visitors {
			if now.Sub(entry.lastSeen) > visitorIdleTTL {
				delete(r.visitors, key)
			}
		}
		r.lastSweep = now
	}
	entry, ok := r.visitors[id]
	if !ok {
		burst := r.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(r.limit.RequestsPerMinute/60.0), burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
