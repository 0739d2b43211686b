// Package server is the HTTP boundary of the back office: route
// registration, the session boundary middleware, and the JSON handlers for
// credential issuance, rotation, and the scheduled token cleanup.
package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wanderport/backoffice/auth"
	"github.com/wanderport/backoffice/internal/config"
	"github.com/wanderport/backoffice/token"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	auth    *auth.Service
	cleaner *auth.Cleaner
	codec   *token.Codec
}

func New(config config.Config, authService *auth.Service, cleaner *auth.Cleaner, codec *token.Codec) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if cleaner == nil {
		return nil, errors.New("[Server New] cleaner is required")
	}
	if codec == nil {
		return nil, errors.New("[Server New] codec is required")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  config,
		auth:    authService,
		cleaner: cleaner,
		codec:   codec,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("Registered route")
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
