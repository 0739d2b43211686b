package server

const (
	RouteAuthRegister = "/auth/register"
	RouteAuthLogin    = "/auth/login"
	RouteAuthRefresh  = "/auth/refresh"
	RouteAuthLogout   = "/auth/logout"

	// Invoked by the infrastructure scheduler only; not exposed publicly.
	RouteCronCleanupTokens = "/cron/cleanup-tokens"
)
