package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dynalinks/dynalinks/internal/analytics"
	"github.com/dynalinks/dynalinks/internal/cache"
	"github.com/dynalinks/dynalinks/internal/metrics"
)

// Limiter decides whether a client may proceed in the current window.
type Limiter interface {
	Allow(ctx context.Context, clientKey string, limitPerMinute int) (*cache.Decision, error)
}

// RateLimitConfig holds configuration for the rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Metrics metrics.Recorder

	Enabled   bool
	PerMinute int

	// Scope namespaces the limiter key so different route groups
	// meter independent budgets for the same client.
	Scope string

	// HashSecret keys the client-address hash used as the limiter key,
	// so Redis never stores raw addresses.
	HashSecret string
}

// RateLimit returns middleware enforcing a fixed per-minute window per
// client address. Redis failures fail open: the request proceeds and
// the decision is logged.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.PerMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := analytics.HashIP(ClientIP(r), cfg.HashSecret)
			if cfg.Scope != "" {
				clientKey = cfg.Scope + ":" + clientKey
			}

			decision, err := cfg.Limiter.Allow(r.Context(), clientKey, cfg.PerMinute)
			if decision == nil {
				// Defensive: a limiter returning neither decision nor
				// denial must not take down the request path.
				next.ServeHTTP(w, r)
				return
			}

			if decision.FailedOpen {
				cfg.Logger.Warn("rate limiter unavailable, failing open",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.Any("error", err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.PerMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

			if !decision.Allowed {
				recorder.IncRateLimited()
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("path", r.URL.Path),
					slog.Int64("retry_after_seconds", int64(decision.RetryAfter.Seconds())),
				)

				retryAfter := int(decision.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"Too many requests"}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client address, trusting proxy headers in the
// order X-Forwarded-For, X-Real-IP, then the connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
