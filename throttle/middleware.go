package throttle

import (
	"net"
	"net/http"
	"strings"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/metrics"
	"github.com/rs/zerolog/log"
)

// RejectionMessage is the body written with every 429.
const RejectionMessage = "Too many requests. Please try again later."

// Authentication entry points guarded by the throttle.
const (
	EntryLogin    = "/auth/login"
	EntryRegister = "/auth/register"
	EntryRefresh  = "/auth/refresh"
)

var entryPoints = []string{EntryLogin, EntryRegister, EntryRefresh}

// EntryPoint returns the authentication entry point path falls under.
func EntryPoint(path string) (string, bool) {
	for _, p := range entryPoints {
		if strings.Contains(path, p) {
			return p, true
		}
	}
	return "", false
}

// IsThrottledPath reports whether path is an authentication entry point.
func IsThrottledPath(path string) bool {
	_, ok := EntryPoint(path)
	return ok
}

// ClientIP returns the first X-Forwarded-For entry, or the remote address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RejectFunc writes the response for a throttled request. err is always
// ErrRateLimited.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	reject RejectFunc
}

// WithRejectFunc replaces the default plain-text 429 response.
func WithRejectFunc(reject RejectFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.reject = reject
	}
}

func writeRejection(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(RejectionMessage))
}

// Middleware throttles the authentication entry points and passes every
// other request through. When the limiter itself fails the request is let
// through and the failure logged.
func Middleware(limiter Limiter, options ...MiddlewareOption) func(http.Handler) http.Handler {
	config := &middlewareConfig{reject: writeRejection}
	for _, opt := range options {
		opt(config)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry, throttled := EntryPoint(r.URL.Path)
			if limiter == nil || !throttled {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.AllowRequest(r.Context(), ClientIP(r))
			if err != nil {
				log.Error().Err(err).Str("path", r.URL.Path).Msg("throttle unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				// Labelled by entry point so the series count stays fixed.
				metrics.IncrementThrottleRejection(entry)
				config.reject(w, r, autherrors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
