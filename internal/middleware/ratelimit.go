package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/andersoncleaning/telemetry/internal/logging"
	"github.com/andersoncleaning/telemetry/internal/metrics"
)

const (
	visitorIdleTTL  = 3 * time.Minute
	cleanupInterval = time.Minute
)

// visitor tracks rate limiting state for a single client IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client-IP token bucket. Clients idle for three
// minutes are forgotten. The name labels logs and the rate_limited metric.
type RateLimiter struct {
	name    string
	metrics *metrics.Metrics

	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	// retryAfter is the time to earn one token, in whole seconds.
	retryAfter string

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per client,
// with bursts of the same size, and starts its cleanup goroutine. Call Stop
// to end it. m may be nil.
func NewRateLimiter(name string, requestsPerMinute int, m *metrics.Metrics) *RateLimiter {
	requestsPerMinute = max(requestsPerMinute, 1)
	rl := &RateLimiter{
		name:       name,
		metrics:    m,
		visitors:   make(map[string]*visitor),
		rate:       rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:      requestsPerMinute,
		retryAfter: strconv.Itoa(int(math.Ceil(60 / float64(requestsPerMinute)))),
		stop:       make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// allow takes a token for ip.
func (rl *RateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

// evictIdle forgets visitors not seen within visitorIdleTTL of now.
func (rl *RateLimiter) evictIdle(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(rl.visitors, ip)
			n++
		}
	}
	if n > 0 {
		slog.Debug("rate limiter evicted idle clients", slog.String("limiter", rl.name), slog.Int("count", n))
	}
	return n
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. The client key is X-Real-IP as set by RealIPMiddleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(logging.ExtractClientIP(r), time.Now()) {
			rl.metrics.RateLimited(rl.name)
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventRateLimited, rl.name+" rate limit exceeded")
			w.Header().Set("Retry-After", rl.retryAfter)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
