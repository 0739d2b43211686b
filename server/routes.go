package server

func (s *Server) initRoutes() {
	// Credential issuance and rotation
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), append(s.APIMiddleware(), s.RequireAuth())...))

	// Maintenance sweep; restricted to the scheduler at the network layer
	s.RegisterRouteFunc("POST "+RouteCronCleanupTokens, ChainMiddleware(s.CleanupTokensHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
	s.RegisterRouteFunc("GET "+RouteCronCleanupTokens, ChainMiddleware(s.CleanupStatsHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
}
