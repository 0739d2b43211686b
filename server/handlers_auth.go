package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	errs "github.com/wanderport/backoffice/internal/errors"
	"github.com/wanderport/backoffice/users"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID    string         `json:"id"`
	Email string         `json:"email"`
	Role  users.RoleType `json:"role"`
}

// authResponse carries the access token in the body; the refresh token
// travels only in the HTTP-only cookie.
type authResponse struct {
	AccessToken string       `json:"accessToken"`
	User        *userPayload `json:"user,omitempty"`
}

// RegisterHandler creates a customer account and issues the first pair.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, pair, err := s.auth.Register(r.Context(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, errs.ErrEmailTaken):
				writeError(w, http.StatusConflict, "email already registered")
			case errors.Is(err, errs.ErrStoreWrite):
				log.Err(err).Msg("Registration failed")
				writeError(w, http.StatusInternalServerError, "internal error")
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}

		s.setRefreshCookie(w, r, pair.RefreshToken)
		writeJSON(w, http.StatusCreated, authResponse{
			AccessToken: pair.AccessToken,
			User:        &userPayload{ID: user.ID, Email: user.Email, Role: user.Role},
		})
	}
}

// LoginHandler checks credentials and issues a fresh pair.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, errs.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			log.Err(err).Msg("Login failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		s.setRefreshCookie(w, r, pair.RefreshToken)
		writeJSON(w, http.StatusOK, authResponse{
			AccessToken: pair.AccessToken,
			User:        &userPayload{ID: user.ID, Email: user.Email, Role: user.Role},
		})
	}
}

// RefreshHandler rotates the refresh token presented in the cookie. Any
// rotation failure is a generic 401 forcing re-login; the detailed error
// class stays in the server log.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(refreshCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "not authorized")
			return
		}

		pair, err := s.auth.Refresh(r.Context(), cookie.Value)
		if err != nil {
			if isRotationRejection(err) {
				log.Warn().Err(err).Msg("Refresh rejected")
				writeError(w, http.StatusUnauthorized, "not authorized")
				return
			}
			log.Err(err).Msg("Refresh failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		s.setRefreshCookie(w, r, pair.RefreshToken)
		writeJSON(w, http.StatusOK, authResponse{AccessToken: pair.AccessToken})
	}
}

// LogoutHandler clears the caller's token store and the refresh cookie.
// Best-effort: a cleared cookie is the minimum acceptable outcome, so store
// failures are logged and swallowed.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authorized")
			return
		}

		if err := s.auth.Logout(r.Context(), userID); err != nil {
			log.Err(err).Str("userId", userID).Msg("Logout failed to clear token store")
		}

		s.clearRefreshCookie(w, r)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func isRotationRejection(err error) bool {
	return errors.Is(err, errs.ErrInvalidToken) ||
		errors.Is(err, errs.ErrUnknownUser) ||
		errors.Is(err, errs.ErrUnknownToken) ||
		errors.Is(err, errs.ErrTokenExpired) ||
		errors.Is(err, errs.ErrTokenReused)
}
