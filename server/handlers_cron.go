package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// CleanupTokensHandler runs one maintenance sweep and returns the per-step
// counters. Idempotent and safe to retry; a partially failed sweep reports
// success=false with 200, since the next scheduled run picks up the rest.
func (s *Server) CleanupTokensHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := s.cleaner.Run(r.Context())
		writeJSON(w, http.StatusOK, report)
	}
}

// CleanupStatsHandler is the read-only diagnostic view of the token store.
func (s *Server) CleanupStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.cleaner.Stats(r.Context())
		if err != nil {
			log.Err(err).Msg("Token stats failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
