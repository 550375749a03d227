package httpserver

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/ratelimit"
)

// requestLogger logs one structured line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

// requestMetrics records request counters and latency histograms. The chi
// route pattern is used instead of the raw path to bound cardinality.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// clientIP keys rate limiting: first X-Forwarded-For token, else peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// rateLimited is the 429 payload.
type rateLimited struct {
	Error          string `json:"error"`
	Limit          int    `json:"limit"`
	Remaining      int    `json:"remaining"`
	RetryAfterSecs int64  `json:"retry_after_secs"`
}

// rateLimit gates a route group on one limiter bucket, attaching the
// X-RateLimit headers on every response.
func rateLimit(limiter *ratelimit.Limiter, bucket ratelimit.Bucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Allow(clientIP(r), bucket)
			if res.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			}
			if !res.Allowed {
				metrics.RateLimitHits.WithLabelValues(string(bucket)).Inc()
				w.Header().Set("Retry-After", strconv.FormatInt(res.RetryAfterSecs, 10))
				writeJSON(w, http.StatusTooManyRequests, rateLimited{
					Error:          fmt.Sprintf("rate limit exceeded for %s", bucket),
					Limit:          res.Limit,
					Remaining:      res.Remaining,
					RetryAfterSecs: res.RetryAfterSecs,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
