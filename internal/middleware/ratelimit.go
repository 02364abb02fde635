// Package middleware holds the HTTP middleware for the rendition server.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// RateLimiter implements a token bucket per client IP. Renditions are
// expensive to generate, so the bucket sits in front of the rendition
// routes, not the whole server.
type RateLimiter struct {
	mu                sync.RWMutex
	requestsPerMin    int
	clients           map[string]*clientBucket
	cleanupInterval   time.Duration
	lockoutDuration   time.Duration
	maxViolations     int
	trustedProxyCIDRs []netip.Prefix
	logger            hclog.Logger
}

// clientBucket tracks tokens and violations for a single client (IP)
type clientBucket struct {
	tokens      int
	lastRefill  time.Time
	violations  int
	lockedUntil time.Time
	mu          sync.Mutex
}

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	LockoutDuration   time.Duration
	MaxViolations     int
	TrustedProxyCIDRs []netip.Prefix
	Logger            hclog.Logger
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.MaxViolations == 0 {
		config.MaxViolations = 10 // default: lockout after 10 violations
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	rl := &RateLimiter{
		requestsPerMin:    config.RequestsPerMinute,
		clients:           make(map[string]*clientBucket),
		cleanupInterval:   config.CleanupInterval,
		lockoutDuration:   config.LockoutDuration,
		maxViolations:     config.MaxViolations,
		trustedProxyCIDRs: config.TrustedProxyCIDRs,
		logger:            config.Logger,
	}

	// Start background cleanup goroutine
	go rl.cleanupLoop()

	return rl
}

// RateLimit creates middleware with specified requests per minute
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		LockoutDuration:   5 * time.Minute,
		MaxViolations:     10,
	})
	return limiter.Middleware()
}

// Middleware returns an HTTP middleware function
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r, rl.trustedProxyCIDRs)

			allowed, remaining, resetTime := rl.Allow(clientIP)

			// Set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requestsPerMin))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))

			if !allowed {
				rl.logger.Info("rate limit exceeded", "ip", clientIP, "path", r.URL.Path)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(time.Until(resetTime).Seconds())))
				http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Allow checks if a request from the given client IP is allowed
// Returns: (allowed bool, remaining tokens, reset time)
func (rl *RateLimiter) Allow(clientIP string) (bool, int, time.Time) {
	rl.mu.Lock()
	bucket, exists := rl.clients[clientIP]
	if !exists {
		bucket = &clientBucket{
			tokens:     rl.requestsPerMin,
			lastRefill: time.Now().UTC(),
		}
		rl.clients[clientIP] = bucket
	}
	rl.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	// Check if client is locked out
	if !bucket.lockedUntil.IsZero() && time.Now().UTC().Before(bucket.lockedUntil) {
		return false, 0, bucket.lockedUntil
	}

	// Reset lockout if expired
	if !bucket.lockedUntil.IsZero() && time.Now().UTC().After(bucket.lockedUntil) {
		bucket.lockedUntil = time.Time{}
		bucket.violations = 0
	}

	// Refill tokens based on time elapsed
	now := time.Now().UTC()
	elapsed := now.Sub(bucket.lastRefill)

	// Token bucket: refill proportionally to time elapsed
	// Full refill happens every minute
	if elapsed >= time.Minute {
		bucket.tokens = rl.requestsPerMin
		bucket.lastRefill = now
	} else {
		// Partial refill based on elapsed time
		tokensToAdd := int(float64(rl.requestsPerMin) * (elapsed.Seconds() / 60.0))
		bucket.tokens += tokensToAdd
		if bucket.tokens > rl.requestsPerMin {
			bucket.tokens = rl.requestsPerMin
		}
		// Update lastRefill only if we added tokens
		if tokensToAdd > 0 {
			bucket.lastRefill = now
		}
	}

	// Check if tokens available
	if bucket.tokens > 0 {
		bucket.tokens--
		nextRefill := bucket.lastRefill.Add(time.Minute)
		return true, bucket.tokens, nextRefill
	}

	// No tokens available - record violation
	bucket.violations++

	// Apply lockout if too many violations
	if rl.lockoutDuration > 0 && bucket.violations >= rl.maxViolations {
		bucket.lockedUntil = now.Add(rl.lockoutDuration)
		rl.logger.Warn("client locked out", "ip", clientIP,
			"until", bucket.lockedUntil, "violations", bucket.violations)
		return false, 0, bucket.lockedUntil
	}

	nextRefill := bucket.lastRefill.Add(time.Minute)
	return false, 0, nextRefill
}

// cleanupLoop periodically removes stale client buckets to prevent memory leaks
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		rl.cleanup()
	}
}

// cleanup removes client buckets that haven't been used recently
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UTC()
	staleThreshold := 10 * time.Minute

	for ip, bucket := range rl.clients {
		bucket.mu.Lock()
		lastActivity := bucket.lastRefill
		isLocked := !bucket.lockedUntil.IsZero() && now.Before(bucket.lockedUntil)
		bucket.mu.Unlock()

		// Remove if inactive for too long and not locked out
		if !isLocked && now.Sub(lastActivity) > staleThreshold {
			delete(rl.clients, ip)
		}
	}
}

// getClientIP extracts the client IP from the request. Forwarded headers
// are only honored when the direct peer is inside a trusted proxy range;
// otherwise anyone could spoof a fresh bucket per request.
func getClientIP(r *http.Request, trustedProxyCIDRs []netip.Prefix) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}

	if !peerIsTrusted(peer, trustedProxyCIDRs) {
		return peer
	}

	// X-Forwarded-For can contain multiple IPs, use the first one
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	return peer
}

func peerIsTrusted(peer string, trustedProxyCIDRs []netip.Prefix) bool {
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	for _, cidr := range trustedProxyCIDRs {
		if cidr.Contains(addr) {
			return true
		}
	}
	return false
}
