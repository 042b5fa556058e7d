package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ipLimiter stores per-IP rate limiters with automatic cleanup.
type ipLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(r rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

func (ipl *ipLimiter) allow(ip string) bool {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	now := ipl.now()
	entry, ok := ipl.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(ipl.rate, ipl.burst)}
		ipl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// prune drops limiters not seen within the idle window and returns how many
// were removed.
func (ipl *ipLimiter) prune() int {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	cutoff := ipl.now().Add(-ipl.idle)
	n := 0
	for ip, entry := range ipl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(ipl.limiters, ip)
			n++
		}
	}
	return n
}

func (ipl *ipLimiter) cleanup(done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ipl.prune()
		case <-done:
			return
		}
	}
}

// RateLimit returns middleware that limits requests per client IP. perSecond
// is the sustained rate, burst the bucket size. Stale limiters are pruned
// until done is closed.
//
// Example: RateLimit(0.2, 5, ...) allows a burst of 5 logins, then one every
// 5 seconds.
func RateLimit(perSecond float64, burst int, done <-chan struct{}, logger *logrus.Logger) func(http.Handler) http.Handler {
	ipl := newIPLimiter(rate.Limit(perSecond), burst)
	go ipl.cleanup(done)

	retryAfter := "60"
	if perSecond > 0 {
		retryAfter = strconv.Itoa(int(1/perSecond) + 1)
	}
	log := logger.WithField("component", "ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)
			if !ipl.allow(ip) {
				log.WithFields(logrus.Fields{"ip": ip, "path": r.URL.Path}).Warn("rate limited")
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "Too many requests", "Too many attempts. Please wait a moment and try again.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractIP gets the client IP, respecting X-Forwarded-For from a reverse
// proxy. The first address in the header is the original client.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
