package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jrsteele09/recrutech-auth/throttle"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	r := s.router

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(s.LoggingMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.SecurityHeadersMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.GetAllowedOrigins().List(),
		AllowedMethods:   s.config.GetAllowedMethods(),
		AllowedHeaders:   s.config.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	r.Use(throttle.Middleware(s.limiter, throttle.WithRejectFunc(writeRateLimited)))

	r.Get(RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, RouteMetrics, promhttp.Handler())

	// Key discovery for resource servers
	r.Route(RouteAPIOAuth2, func(r chi.Router) {
		r.Get(RouteJWKS, s.JWKS())
	})

	r.Route(RouteAPIAuth, func(r chi.Router) {
		r.Post(RouteRegister, s.Register())
		r.Post(RouteRegisterHR, s.RegisterHR())
		r.Post(RouteLogin, s.Login())
		r.Post(RouteRefresh, s.Refresh())
		r.Post(RouteLogout, s.Logout())
		r.Post(RouteIntrospect, s.Introspect())

		// Bearer-protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.RequireAuth)
			r.Post(RouteLogoutAll, s.LogoutAll())
			r.Get(RouteMe, s.Me())
		})
	})
}
