package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/filegate-project/filegate/internal/core"
	"github.com/rs/zerolog"
)

func loggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// rateLimitMiddleware caps upload requests per client IP in a fixed one
// minute window. The counter lives in the injected TTLStore, so swapping
// the store for a shared backend rate-limits across replicas without
// touching this code. Retrievals and health checks are not limited.
func rateLimitMiddleware(store core.TTLStore, perMinute int, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r, trustProxy)
			if store.Increment("ratelimit:"+ip, time.Minute) > int64(perMinute) {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error": "too many uploads, try again shortly",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// recoverMiddleware converts handler panics into a 500 without leaking the
// panic value to the client.
func recoverMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Str("path", r.URL.Path).
						Interface("panic", rec).
						Msg("handler panicked")
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"error": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller address. X-Forwarded-For is honored only
// when the deployment declares a trusted proxy in front; otherwise anyone
// could spoof the address their tokens bind to.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			// First hop is the original client.
			if idx := strings.IndexByte(fwd, ','); idx != -1 {
				fwd = fwd[:idx]
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
