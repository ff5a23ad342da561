package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/recrutech-auth/auth"
)

// Register creates a ROLE_USER account and returns its first token pair.
func (s *Server) Register() http.HandlerFunc {
	return s.registerHandler(s.auth.Register)
}

// RegisterHR creates a ROLE_HR account and returns its first token pair.
func (s *Server) RegisterHR() http.HandlerFunc {
	return s.registerHandler(s.auth.RegisterHR)
}

func (s *Server) registerHandler(register func(context.Context, auth.RegisterRequest) (*auth.AuthResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		resp, err := register(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Login exchanges a username and password for a token pair.
func (s *Server) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		resp, err := s.auth.Login(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Refresh rotates the presented refresh token.
func (s *Server) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RefreshTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		resp, err := s.auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Logout revokes the presented refresh token.
func (s *Server) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RefreshTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type logoutAllResponse struct {
	Revoked int `json:"revoked"`
}

// LogoutAll revokes every refresh token of the signed-in user.
func (s *Server) LogoutAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := r.Context().Value(ContextKeyAccessToken).(string)
		n, err := s.auth.LogoutAll(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, logoutAllResponse{Revoked: n})
	}
}

type introspectRequest struct {
	Token string `json:"token"`
}

// Introspect reports whether a token is active, RFC 7662 style.
func (s *Server) Introspect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req introspectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Token == "" {
			writeError(w, &auth.ValidationError{Field: "token", Message: "is required"})
			return
		}

		introspection, err := s.auth.IntrospectToken(r.Context(), req.Token)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, introspection)
	}
}

type meResponse struct {
	Subject   string    `json:"subject"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Me describes the caller's access token.
func (s *Server) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, meResponse{
			Subject:   principal.Subject,
			Roles:     principal.Roles,
			ExpiresAt: principal.Expiry,
		})
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		writeJSON(w, http.StatusOK, s.keys.JWKS())
	}
}
