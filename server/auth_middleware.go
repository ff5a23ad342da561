package server

import (
	"context"
	"net/http"
	"strings"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/verifier"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipal stores the verified access token principal
	ContextKeyPrincipal ContextKey = "principal"
	// ContextKeyAccessToken stores the raw bearer token
	ContextKeyAccessToken ContextKey = "access_token"
)

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// RequireAuth is middleware that validates a Bearer access token
// Used for API routes that act on behalf of the signed-in user
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="recrutech"`)
			writeError(w, autherrors.ErrInvalidToken)
			return
		}

		principal, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="recrutech", error="invalid_token"`)
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
		ctx = context.WithValue(ctx, ContextKeyAccessToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principalFromContext returns the principal stored by RequireAuth.
func principalFromContext(ctx context.Context) (*verifier.Principal, bool) {
	principal, ok := ctx.Value(ContextKeyPrincipal).(*verifier.Principal)
	return principal, ok
}
