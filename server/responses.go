package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/recrutech-auth/auth"
	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/throttle"
	"github.com/rs/zerolog/log"
)

const maxRequestBodyBytes = 1 << 20

type errorResponse struct {
	Error       string   `json:"error"`
	Description string   `json:"error_description,omitempty"`
	Violations  []string `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorStatus maps an error kind to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case autherrors.Is(err, autherrors.ErrWeakPassword):
		return http.StatusBadRequest, "weak_password"
	case autherrors.Is(err, autherrors.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case autherrors.Is(err, autherrors.ErrUsernameTaken), autherrors.Is(err, autherrors.ErrEmailTaken):
		return http.StatusConflict, "conflict"
	case autherrors.Is(err, autherrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case autherrors.Is(err, autherrors.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired"
	case autherrors.Is(err, autherrors.ErrTokenRevoked):
		return http.StatusUnauthorized, "token_revoked"
	case autherrors.Is(err, autherrors.ErrInvalidToken),
		autherrors.Is(err, autherrors.ErrNotARefreshToken),
		autherrors.Is(err, autherrors.ErrNotAnAccessToken),
		autherrors.Is(err, autherrors.ErrUserNotFound):
		return http.StatusUnauthorized, "invalid_token"
	case autherrors.Is(err, autherrors.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case autherrors.Is(err, autherrors.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable, "temporarily_unavailable"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

// writeError writes err as a JSON error body. Only the error kind is exposed;
// the wrapped detail goes to the log.
func writeError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	resp := errorResponse{Error: code}

	var policyErr *autherrors.PasswordPolicyError
	var validationErr *auth.ValidationError
	switch {
	case autherrors.As(err, &policyErr):
		resp.Description = autherrors.ErrWeakPassword.Error()
		resp.Violations = policyErr.Violations
	case autherrors.As(err, &validationErr):
		resp.Description = validationErr.Error()
	case status == http.StatusInternalServerError:
		resp.Description = autherrors.ErrInternal.Error()
	case status == http.StatusTooManyRequests:
		resp.Description = throttle.RejectionMessage
	default:
		resp.Description = rootCause(err).Error()
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, resp)
}

func writeRateLimited(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, err)
}

// rootCause returns the sentinel at the bottom of a wrap chain.
func rootCause(err error) error {
	for {
		next := unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func unwrap(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		return e.Cause()
	}
	return nil
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &auth.ValidationError{Field: "body", Message: "is not valid JSON"}
	}
	return nil
}
