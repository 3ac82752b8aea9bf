package redisserver

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// pruneThreshold is the number of tracked clients above which idle
// limiters are dropped.
const pruneThreshold = 4096

// ipLimiter applies a token bucket per client IP.
type ipLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// newIPLimiter returns nil when perSecond is not positive, which disables
// limiting.
func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &ipLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *ipLimiter) allow(remote string) bool {
	if l == nil {
		return true
	}
	ip := hostOf(remote)

	l.mu.Lock()
	lim, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= pruneThreshold {
			l.prune()
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// prune drops limiters whose bucket has refilled. Callers hold l.mu.
func (l *ipLimiter) prune() {
	for ip, lim := range l.limiters {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.limiters, ip)
		}
	}
}

func (l *ipLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func hostOf(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
