package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server/metrics"
	"golang.org/x/time/rate"
)

// idle visitors are forgotten after this long
const visitorTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	retryAfter int
	metrics    *metrics.Metrics

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter builds a limiter from cfg. m may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	rl := &RateLimiter{
		burst:     cfg.Burst,
		metrics:   m,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
	if cfg.RequestsPerMinute > 0 {
		rl.limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		rl.retryAfter = int(math.Ceil(60 / float64(cfg.RequestsPerMinute)))
	} else {
		rl.limit = rate.Inf
	}
	if rl.burst <= 0 {
		rl.burst = 1
	}
	return rl
}

func (rl *RateLimiter) get(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > time.Minute {
		for ip, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, ip)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[client] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Handler rejects clients over their budget with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		if rl.get(client).Allow() {
			next.ServeHTTP(w, r)
			return
		}

		if rl.metrics != nil {
			rl.metrics.RateLimitHits.WithLabelValues(client).Inc()
		}
		w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter))
		errors.WriteError(w, errors.NewRateLimitError(GetRequestID(r.Context()), rl.retryAfter))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
