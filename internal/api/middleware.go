package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/http/response"
	"github.com/alquilibros/alquilibros-server/internal/logger"
	"github.com/alquilibros/alquilibros-server/internal/ratelimit"
)

// requestLogger logs one line per request and stores a request-scoped logger in the context.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.With("request_id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			reqLog.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		})
	}
}

// isWrite reports whether the method changes state.
func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// writeGuard refuses state-changing requests without a valid token. The auth endpoints handle their own
// credentials and are exempt.
func writeGuard(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) || strings.HasPrefix(r.URL.Path, "/api/auth/") {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := RequireClaims(r.Context()); err != nil {
				response.HandleError(w, err, log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitPaths limits POST requests to the given paths per client IP.
// Returns 429 Too Many Requests when limit is exceeded.
func rateLimitPaths(limiter *ratelimit.KeyedRateLimiter, log *slog.Logger, paths ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(paths))
	for _, p := range paths {
		limited[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !limited[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := clientIP(r)
			if !limiter.Allow(key) {
				log.Warn("Rate limit exceeded", "ip", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				response.Error(w, http.StatusTooManyRequests, domainerrors.CodeRateLimited,
					domainerrors.ErrRateLimited.Message, nil, log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr, which middleware.RealIP has already replaced with the
// forwarded client address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func notFound(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, domainerrors.CodeNotFound, domainerrors.MsgNotFound, nil, log)
	}
}

func methodNotAllowed(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método no permitido", nil, log)
	}
}
