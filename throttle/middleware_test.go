package throttle_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/metrics"
	"github.com/jrsteele09/recrutech-auth/throttle"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	require.Equal(t, "192.0.2.10", throttle.ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	require.Equal(t, "203.0.113.7", throttle.ClientIP(r))
}

func TestIsThrottledPath(t *testing.T) {
	require.True(t, throttle.IsThrottledPath("/api/auth/login"))
	require.True(t, throttle.IsThrottledPath("/api/auth/register/hr"))
	require.True(t, throttle.IsThrottledPath("/api/auth/refresh"))
	require.False(t, throttle.IsThrottledPath("/api/auth/logout"))
	require.False(t, throttle.IsThrottledPath("/api/oauth2/jwks"))

	entry, ok := throttle.EntryPoint("/api/auth/register/hr")
	require.True(t, ok)
	require.Equal(t, throttle.EntryRegister, entry)
}

func TestMiddleware(t *testing.T) {
	th := throttle.New(throttle.Config{Limit: 2, RefreshPeriod: 60e9, Timeout: 30e9})
	handler := throttle.Middleware(th)(okHandler())

	do := func(path string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		r.RemoteAddr = "192.0.2.10:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	require.Equal(t, http.StatusOK, do("/api/auth/login").Code)
	require.Equal(t, http.StatusOK, do("/api/auth/refresh").Code)

	rejected := do("/api/auth/login")
	require.Equal(t, http.StatusTooManyRequests, rejected.Code)
	require.Equal(t, throttle.RejectionMessage, rejected.Body.String())

	// untouched paths bypass the throttle
	require.Equal(t, http.StatusOK, do("/api/oauth2/jwks").Code)
}

type brokenLimiter struct{}

func (brokenLimiter) AllowRequest(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestMiddleware_LimiterFailureAllows(t *testing.T) {
	handler := throttle.Middleware(brokenLimiter{})(okHandler())
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_RejectionSeriesBounded(t *testing.T) {
	th := throttle.New(throttle.Config{Limit: 1, RefreshPeriod: 60e9, Timeout: 30e9})
	handler := throttle.Middleware(th)(okHandler())

	for i := 0; i < 50; i++ {
		for _, base := range []string{"/api/auth/login", "/api/auth/register", "/api/auth/refresh"} {
			r := httptest.NewRequest(http.MethodPost, fmt.Sprintf("%s/%d", base, i), nil)
			r.RemoteAddr = "192.0.2.44:5555"
			handler.ServeHTTP(httptest.NewRecorder(), r)
		}
	}

	require.LessOrEqual(t, testutil.CollectAndCount(metrics.ThrottleRejectionsTotal), 3)
	require.Positive(t, testutil.ToFloat64(metrics.ThrottleRejectionsTotal.WithLabelValues(throttle.EntryLogin)))
}

func TestMiddleware_RejectFunc(t *testing.T) {
	th := throttle.New(throttle.Config{Limit: 1, RefreshPeriod: 60e9, Timeout: 30e9})
	var got error
	handler := throttle.Middleware(th, throttle.WithRejectFunc(func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}))(okHandler())

	for _, want := range []int{http.StatusOK, http.StatusTeapot} {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = "192.0.2.45:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		require.Equal(t, want, w.Code)
	}
	require.ErrorIs(t, got, autherrors.ErrRateLimited)
}
