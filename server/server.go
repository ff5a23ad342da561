package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/recrutech-auth/auth"
	"github.com/jrsteele09/recrutech-auth/internal/config"
	"github.com/jrsteele09/recrutech-auth/throttle"
	"github.com/jrsteele09/recrutech-auth/token/keys"
	"github.com/jrsteele09/recrutech-auth/verifier"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   *chi.Mux
	config   config.Config
	auth     *auth.AuthService
	keys     *keys.Provider
	verifier *verifier.Verifier
	limiter  throttle.Limiter // nil disables throttling
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithLimiter throttles the authentication entry points with limiter.
func WithLimiter(limiter throttle.Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

func New(config config.Config, authService *auth.AuthService, provider *keys.Provider, options ...Option) (*Server, error) {
	if authService == nil {
		return nil, fmt.Errorf("[Server New] auth service is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("[Server New] key provider is required")
	}

	s := &Server{
		env:      config.GetEnv(),
		router:   chi.NewRouter(),
		config:   config,
		auth:     authService,
		keys:     provider,
		verifier: verifier.NewStaticVerifier(provider, config.GetIssuer(), config.GetAudience()),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logRoute(method, strings.TrimSuffix(route, "/*"))
		return nil
	})
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
