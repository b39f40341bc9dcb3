package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
)

// Config holds rate limiting configuration
type Config struct {
	// Per-IP limit applied to every request through the middleware.
	PerIPCapacity   int
	PerIPRefillRate float64 // requests per second

	// BucketTTL is how long to keep inactive buckets in memory.
	BucketTTL time.Duration

	// TrustProxyHeaders makes X-Forwarded-For and X-Real-IP decide the
	// client address.
	TrustProxyHeaders bool
}

// DefaultConfig allows 10 login attempts per minute per IP.
func DefaultConfig() *Config {
	return &Config{
		PerIPCapacity:     10,
		PerIPRefillRate:   10.0 / 60.0,
		BucketTTL:         time.Hour,
		TrustProxyHeaders: true,
	}
}

// Middleware limits requests per client IP.
type Middleware struct {
	config    *Config
	ipLimiter *RateLimiter
	logger    *slog.Logger
}

func NewMiddleware(config *Config, logger *slog.Logger) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		config:    config,
		ipLimiter: NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL),
		logger:    logger,
	}
}

// ErrorResponse is the body of a 429 answer.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Allow(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow takes a token for the caller's IP. When none is left it writes the
// 429 answer and returns false.
func (m *Middleware) Allow(w http.ResponseWriter, r *http.Request) bool {
	ip := m.ClientIP(r)
	if ip != "" && !m.ipLimiter.Allow(ip) {
		m.rateLimitExceeded(w, r, ip)
		return false
	}
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.config.PerIPCapacity))
	return true
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, ip string) {
	wait := int(math.Ceil(m.ipLimiter.RetryAfter(ip).Seconds()))
	if wait < 1 {
		wait = 1
	}
	m.logger.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path, "method", r.Method)

	w.Header().Set("Retry-After", fmt.Sprintf("%d", wait))
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, ErrorResponse{
		Code:       "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: wait,
	})
}

// ClientIP extracts the client IP address from the request.
func (m *Middleware) ClientIP(r *http.Request) string {
	if m.config.TrustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (m *Middleware) Reset(ip string) {
	m.ipLimiter.Reset(ip)
}

func (m *Middleware) GetStats() Stats {
	return m.ipLimiter.GetStats()
}

// Close stops background cleanup.
func (m *Middleware) Close() {
	m.ipLimiter.Close()
}
