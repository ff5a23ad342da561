package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteAPIAuth   = "/api/auth"
	RouteAPIOAuth2 = "/api/oauth2"
	RouteHealth    = "/health"
	RouteMetrics   = "/metrics"
	RouteJWKS      = "/jwks"

	// Auth Routes, relative to RouteAPIAuth
	RouteRegister   = "/register"
	RouteRegisterHR = "/register/hr"
	RouteLogin      = "/login"
	RouteRefresh    = "/refresh"
	RouteLogout     = "/logout"
	RouteLogoutAll  = "/logout-all"
	RouteIntrospect = "/introspect"
	RouteMe         = "/me"
)
