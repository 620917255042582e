package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         20,
	}
}

// RateLimit limits each client IP to a token bucket. Limits are per instance.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	limiter := NewClientRateLimiter(cfg.RequestsPerMinute, cfg.BurstSize)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			if !limiter.Allow(clientIP) {
				log.Warn().
					Str("client_ip", clientIP).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"code":      http.StatusTooManyRequests,
					"message":   "请求过于频繁，请稍后再试",
					"data":      nil,
					"timestamp": time.Now().Unix(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP returns the host part of RemoteAddr, which RealIP has already
// replaced with the forwarded address when present.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

const (
	idleClientTTL = 5 * time.Minute
	sweepInterval = time.Minute
)

// ClientRateLimiter keeps one token bucket per client.
type ClientRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimit
	lastSweep time.Time
	now       func() time.Time
}

type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewClientRateLimiter(requestsPerMinute, burstSize int) *ClientRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRateLimitConfig().RequestsPerMinute
	}
	if burstSize <= 0 {
		burstSize = DefaultRateLimitConfig().BurstSize
	}
	return &ClientRateLimiter{
		limit:     rate.Limit(float64(requestsPerMinute) / 60),
		burst:     burstSize,
		clients:   make(map[string]*clientLimit),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *ClientRateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > sweepInterval {
		for ip, c := range rl.clients {
			if now.Sub(c.lastSeen) > idleClientTTL {
				delete(rl.clients, ip)
			}
		}
		rl.lastSweep = now
	}

	client, ok := rl.clients[clientIP]
	if !ok {
		client = &clientLimit{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientIP] = client
	}
	client.lastSeen = now

	return client.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked clients.
func (rl *ClientRateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
