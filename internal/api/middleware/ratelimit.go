package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"loan-manager/internal/config"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type RateLimiterMiddleware struct {
	limiter Limiter
	cfg     config.RateLimitConfig
	logger  *slog.Logger
}

func NewRateLimiterMiddleware(cfg config.RateLimitConfig, limiter Limiter, logger *slog.Logger) *RateLimiterMiddleware {
	logger = logger.With("component", "RateLimiter")
	if cfg.Enabled && limiter == nil {
		logger.Warn("Rate limiting enabled but no limiter provided; disabling.")
		cfg.Enabled = false
	}
	return &RateLimiterMiddleware{limiter: limiter, cfg: cfg, logger: logger}
}

func (rl *RateLimiterMiddleware) IsEnabled() bool {
	return rl.cfg.Enabled && rl.limiter != nil
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.IsEnabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if ip == "" {
			rl.logger.ErrorContext(r.Context(), "Blocking request with unknown client IP", "remoteAddr", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		allowed, err := rl.limiter.Allow(r.Context(), ip)
		if err != nil {
			// fail open
			rl.logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded", "ip", ip, "limit", rl.cfg.RPS)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"message": fmt.Sprintf("Rate limit exceeded. Limit is %.0f requests per second.", rl.cfg.RPS),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); xRealIP != "" && net.ParseIP(xRealIP) != nil {
		return xRealIP
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
		return parsed.String()
	}
	return ""
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	limiters sync.Map
	rps      rate.Limit
	burst    int
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{rps: rate.Limit(rps), burst: burst}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	return m.get(key).Allow(), nil
}

func (m *MemoryLimiter) get(key string) *rate.Limiter {
	if l, ok := m.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	l, _ := m.limiters.LoadOrStore(key, rate.NewLimiter(m.rps, m.burst))
	return l.(*rate.Limiter)
}

// Sweep drops buckets that have refilled completely.
func (m *MemoryLimiter) Sweep(now time.Time) {
	m.limiters.Range(func(key, value interface{}) bool {
		l := value.(*rate.Limiter)
		if l.TokensAt(now) >= float64(m.burst) {
			m.limiters.Delete(key)
		}
		return true
	})
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}
