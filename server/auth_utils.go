package server

import (
	"net/http"
)

const (
	// refreshCookieName is the HTTP-only cookie carrying the refresh token.
	// The rotation endpoint reads it from here and never from the body.
	refreshCookieName = "refreshToken"
)

func (s *Server) setRefreshCookie(w http.ResponseWriter, r *http.Request, refreshToken string) {
	isProd := s.env == "PROD"

	// Cross-site dashboard in production requires SameSite=None, which in
	// turn requires Secure.
	sameSite := http.SameSiteLaxMode
	if isProd {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   isProd || getScheme(r) == "https",
		SameSite: sameSite,
		MaxAge:   int(s.config.GetRefreshTokenExpiry().Seconds()),
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		HttpOnly: true,
		Secure:   s.env == "PROD" || getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
